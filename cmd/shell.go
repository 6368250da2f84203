package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

var shellCommands = []string{"ingest", "get", "query", "keys", "profile", "search", "handles", "help", "exit"}

// shell is the interactive command loop.
type shell struct {
	s      *session
	out    io.Writer
	format string
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".brewery-nostrdb_history")
}

func runShell(ctx context.Context, s *session, args []string) error {
	fs := flagSet("shell", "shell [options]")
	format := fs.StringP("format", "f", formatJSON, "output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sh := &shell{s: s, out: os.Stdout, format: *format, liner: liner.NewLiner()}
	defer sh.liner.Close()
	sh.liner.SetCtrlCAborts(true)
	sh.liner.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range shellCommands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	})
	if f, err := os.Open(historyFile()); err == nil {
		_, _ = sh.liner.ReadHistory(f)
		f.Close()
	}
	defer sh.saveHistory()

	fmt.Fprintln(sh.out, "Type 'help' for available commands.")
	for ctx.Err() == nil {
		line, err := sh.liner.Prompt("nostrdb> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.liner.AppendHistory(line)

		done, err := sh.exec(line)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
		if done {
			return nil
		}
	}
	return ctx.Err()
}

func (sh *shell) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = sh.liner.WriteHistory(f)
		f.Close()
	}
}

// exec runs one shell line and reports whether the shell should exit.
func (sh *shell) exec(line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "exit", "quit", "q":
		return true, nil
	case "help", "?":
		sh.help()
		return false, nil
	case "ingest":
		if rest == "" {
			return false, errors.New("usage: ingest <event-json>")
		}
		if err := sh.s.ingest([]byte(rest)); err != nil {
			return false, err
		}
		fmt.Fprintln(sh.out, "ok")
		return false, nil
	case "handles":
		live := sh.s.bridge.Live()
		fmt.Fprintf(sh.out, "databases=%d transactions=%d builders=%d filters=%d\n",
			live.Databases, live.Transactions, live.Builders, live.Filters)
		return false, nil
	case "get":
		return false, sh.get(rest)
	case "query", "keys":
		return false, sh.query(rest, cmd == "keys")
	case "profile":
		return false, sh.profile(rest)
	case "search":
		return false, sh.search(rest)
	default:
		return false, fmt.Errorf("unknown command %q (type 'help' for commands)", cmd)
	}
}

func (sh *shell) help() {
	fmt.Fprint(sh.out, `Commands:
  ingest <event-json>        Ingest one event (bare or ["EVENT", ...] form)
  get <id-hex|key>           Print a note
  query <filter-jsonc>       Print notes matching an inline filter
  keys <filter-jsonc>        Print note keys matching an inline filter
  profile <pubkey-hex>       Print a profile
  search <prefix> [limit]    List pubkeys by profile name prefix
  handles                    Show live handle counts
  help                       Show this help
  exit / quit / q            Exit
`)
}

func (sh *shell) print(v any) error {
	out, err := encode(sh.format, v)
	if err != nil {
		return err
	}
	_, err = sh.out.Write(out)
	return err
}

func (sh *shell) get(ref string) error {
	if ref == "" {
		return errors.New("usage: get <id-hex|key>")
	}
	return sh.s.read(func(txn int64) error {
		doc, err := sh.s.note(txn, ref)
		if err != nil {
			return err
		}
		if doc == nil {
			fmt.Fprintln(sh.out, "not found")
			return nil
		}
		n, err := noteValue(doc)
		if err != nil {
			return err
		}
		return sh.print(n)
	})
}

func (sh *shell) query(filter string, keysOnly bool) error {
	if filter == "" {
		filter = "{}"
	}
	spec, err := parseFilter([]byte(filter))
	if err != nil {
		return err
	}
	return sh.s.read(func(txn int64) error {
		keys, err := sh.s.query(txn, spec, 100)
		if err != nil {
			return err
		}
		if keysOnly {
			_, err := sh.out.Write(formatKeyList(keys))
			return err
		}
		notes, err := sh.s.notes(txn, keys)
		if err != nil {
			return err
		}
		return sh.print(notes)
	})
}

func (sh *shell) profile(pubkey string) error {
	return sh.s.read(func(txn int64) error {
		doc, err := sh.s.profile(txn, pubkey)
		if err != nil {
			return err
		}
		if doc == nil {
			fmt.Fprintln(sh.out, "not found")
			return nil
		}
		p, err := profileValue(doc)
		if err != nil {
			return err
		}
		return sh.print(p)
	})
}

func (sh *shell) search(args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return errors.New("usage: search <prefix> [limit]")
	}
	limit := 20
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid limit %q", fields[1])
		}
		limit = n
	}
	return sh.s.read(func(txn int64) error {
		pks, err := sh.s.searchProfiles(txn, fields[0], limit)
		if err != nil {
			return err
		}
		_, err = sh.out.Write(formatPubkeys(pks))
		return err
	})
}
