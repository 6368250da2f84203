package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

type command func(ctx context.Context, s *session, args []string) error

var commands = map[string]command{
	"ingest":          runIngest,
	"get":             runGet,
	"query":           runQuery,
	"profile":         runProfile,
	"search-profiles": runSearchProfiles,
	"shell":           runShell,
}

func flagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func runIngest(ctx context.Context, s *session, args []string) error {
	fs := flagSet("ingest", "ingest [file...]")
	if err := fs.Parse(args); err != nil {
		return err
	}

	files := fs.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}
	total := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			data []byte
			err  error
		)
		if f == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(f)
		}
		if err != nil {
			return err
		}
		n, err := s.ingestBatch(data)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", f, err)
		}
		s.log.Info("ingested", "file", f, "events", n)
		total += n
	}
	fmt.Printf("ingested %d events\n", total)
	return nil
}

func runGet(_ context.Context, s *session, args []string) error {
	fs := flagSet("get", "get [options] <id-hex|key>")
	format := fs.StringP("format", "f", formatJSON, "output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected one note id or key")
	}

	return s.read(func(txn int64) error {
		doc, err := s.note(txn, fs.Arg(0))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("note %s not found", fs.Arg(0))
		}
		n, err := noteValue(doc)
		if err != nil {
			return err
		}
		out, err := encode(*format, n)
		if err != nil {
			return err
		}
		return emit(os.Stdout, "", out)
	})
}

func runQuery(_ context.Context, s *session, args []string) error {
	fs := flagSet("query", "query [options]")
	filterPath := fs.StringP("filter", "F", "-", "JSONC filter file, - for stdin")
	limit := fs.IntP("limit", "n", 100, "maximum number of notes")
	format := fs.StringP("format", "f", formatJSON, "output format: json, yaml or keys")
	outPath := fs.StringP("out", "o", "", "write the result to this file atomically")
	if err := fs.Parse(args); err != nil {
		return err
	}

	spec, err := readFilter(*filterPath)
	if err != nil {
		return fmt.Errorf("filter %s: %w", *filterPath, err)
	}

	return s.read(func(txn int64) error {
		keys, err := s.query(txn, spec, *limit)
		if err != nil {
			return err
		}
		s.log.Debug("query done", "matches", len(keys))
		if *format == formatKeys {
			return emit(os.Stdout, *outPath, formatKeyList(keys))
		}
		notes, err := s.notes(txn, keys)
		if err != nil {
			return err
		}
		out, err := encode(*format, notes)
		if err != nil {
			return err
		}
		return emit(os.Stdout, *outPath, out)
	})
}

func runProfile(_ context.Context, s *session, args []string) error {
	fs := flagSet("profile", "profile [options] <pubkey-hex>")
	format := fs.StringP("format", "f", formatJSON, "output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected one pubkey")
	}

	return s.read(func(txn int64) error {
		doc, err := s.profile(txn, fs.Arg(0))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("no profile for %s", fs.Arg(0))
		}
		p, err := profileValue(doc)
		if err != nil {
			return err
		}
		out, err := encode(*format, p)
		if err != nil {
			return err
		}
		return emit(os.Stdout, "", out)
	})
}

func runSearchProfiles(_ context.Context, s *session, args []string) error {
	fs := flagSet("search-profiles", "search-profiles [options] <prefix>")
	limit := fs.IntP("limit", "n", 20, "maximum number of pubkeys")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected one search prefix")
	}

	return s.read(func(txn int64) error {
		pks, err := s.searchProfiles(txn, fs.Arg(0), *limit)
		if err != nil {
			return err
		}
		return emit(os.Stdout, "", formatPubkeys(pks))
	})
}
