package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"churchbook/internal/cli"
	"churchbook/internal/ctl"
	"churchbook/internal/log"
)

func main() {
	cli.LoadEnvFile()

	env := &ctl.Env{
		Open: func(ctx context.Context) (ctl.Ledger, error) {
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return nil, err
			}
			// Logs go to stderr so that export output on stdout stays clean.
			logCfg := log.DefaultConfig()
			logCfg.Component = log.ComponentCLI
			logCfg.Output = os.Stderr
			if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
				logCfg.Level = lvl
			}
			return cli.OpenLedger(ctx, cfg, log.New(logCfg), nil)
		},
		Out:      os.Stdout,
		Err:      os.Stderr,
		Currency: os.Getenv("LEDGER_CURRENCY"),
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	ctl.Register(commander, env)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
