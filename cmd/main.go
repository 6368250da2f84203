// brewery-nostrdb is the command line front end of a local nostr event
// database. Every command goes through the same handle bridge a foreign
// host uses.
//
// Usage:
//
//	brewery-nostrdb [global flags] <command> [args]
//
// Commands:
//
//	ingest [file...]            Ingest line-delimited events (stdin without files)
//	get <id-hex|key>            Print one note
//	query [flags]               Run a NIP-01 filter read from a JSONC file
//	profile <pubkey-hex>        Print the profile of a pubkey
//	search-profiles <prefix>    List pubkeys whose profile name starts with prefix
//	shell                       Interactive shell
//
// Configuration comes from nostrdb.{yaml,toml,json,env} in the working
// directory (or --config), NOSTRDB_* environment variables and flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/beyondbrewing/brewery-nostrdb/config"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := pflag.NewFlagSet(config.AppName, pflag.ContinueOnError)
	global.SetInterspersed(false)
	cfgFile := global.StringP("config", "c", "", "config file")
	global.StringP("data-dir", "d", "", "database directory")
	global.String("log-level", "", "log level: debug, info, warn or error")
	global.Bool("verify-signatures", true, "verify event ids and signatures on ingest")
	global.String("compression", "", "record compression: zstd, lz4 or none")
	version := global.Bool("version", false, "print the version and exit")
	global.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %s [global flags] <command> [args]

Commands:
  ingest [file...]            Ingest line-delimited events (stdin without files)
  get <id-hex|key>            Print one note
  query [flags]               Run a NIP-01 filter read from a JSONC file
  profile <pubkey-hex>        Print the profile of a pubkey
  search-profiles <prefix>    List pubkeys whose profile name starts with prefix
  shell                       Interactive shell

Global flags:
`, config.AppName)
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *version {
		fmt.Println(config.AppName, config.AppVersion)
		return nil
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	v := viper.New()
	if err := config.BindFlags(v, global); err != nil {
		return err
	}
	cfg, err := config.Load(v, *cfgFile)
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	logger.SetDefault(log)
	defer logger.SyncDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		global.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	s, err := openSession(cfg, logger.Default())
	if err != nil {
		return err
	}
	defer s.Close()

	return cmd(ctx, s, rest)
}
