// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// rigchat - a terminal chat client for hosted language models.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/cli"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	args, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.DisplayError(os.Stderr, err, false)
		cli.PrintUsage(os.Stderr)
		return cli.ExitCode(err)
	}
	if args.NoColor {
		cli.DisableColors()
	}

	switch args.Command {
	case cli.CmdVersion:
		cli.PrintVersion(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	}

	// A .env in the working directory may carry RIGCHAT_* settings.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitConfigError
	}

	cfg, err := config.Load()
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitConfigError
	}

	closer, err := setupLogging(cfg, args)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitConfigError
	}
	defer closer.Close()

	// The REPL handles Ctrl+C itself so it can cancel a single reply.
	var (
		ctx  context.Context
		stop context.CancelFunc
	)
	if args.Command == cli.CmdREPL {
		ctx, stop = context.WithCancel(context.Background())
	} else {
		ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
	defer stop()

	a, err := app.New(ctx, app.Options{Config: cfg})
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCode(err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to save sessions on exit")
			cli.DisplayError(os.Stderr, err, false)
		}
	}()

	if args.Command == cli.CmdREPL {
		go func() {
			if err := a.WatchConfig(ctx); err != nil {
				log.Warn().Err(err).Msg("config watch disabled")
			}
		}()
	}

	env := &cli.Env{
		App:  a,
		Args: args,
		Out:  os.Stdout,
		Err:  os.Stderr,
		In:   os.Stdin,
	}
	if err := cli.Run(ctx, env); err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCode(err)
	}
	return cli.ExitSuccess
}

// setupLogging routes logs to the configured file. The interactive chat
// logs to a rotated file by default so output stays clean; one-shot
// commands log warnings to stderr unless --verbose.
func setupLogging(cfg *config.Config, args cli.Args) (io.Closer, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		File:   cfg.Logging.File,
		MaxAge: time.Duration(cfg.Logging.MaxAgeDays) * 24 * time.Hour,
		Out:    os.Stderr,
	}

	switch {
	case args.Verbose:
		opts.Level = "debug"
	case args.Quiet:
		opts.Level = "error"
	}

	if opts.File == "" {
		if args.Command == cli.CmdREPL {
			dir, err := config.Dir()
			if err != nil {
				return nil, err
			}
			opts.File = logging.DefaultFile(dir)
		} else if !args.Verbose && !args.Quiet {
			opts.Level = "warn"
		}
	}
	return logging.Setup(opts)
}
