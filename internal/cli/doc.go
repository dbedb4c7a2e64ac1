// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the commands of rigchat.
//
// Without a subcommand rigchat starts an interactive chat (RunREPL) backed
// by liner. The other commands run once against the same app:
//
//   - ask: One question in a new session, with optional attachments
//   - sessions, search, stats: Listing, filtering and analytics
//   - models: Models offered by the provider
//   - export, import: JSON backups and single-session exports
//   - config: show, get, set, keys and path
//
// # Key Types
//
//   - Args: Parsed command line
//   - Env: The app plus the streams a command writes to
//   - REPL: Executes chat lines and slash commands; testable without a TTY
//
// # Usage
//
//	args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, false)
//	    os.Exit(cli.ExitCode(err))
//	}
//	env := &cli.Env{App: a, Args: args, Out: os.Stdout, Err: os.Stderr, In: os.Stdin}
//	if err := cli.Run(ctx, env); err != nil {
//	    os.Exit(cli.ExitCode(err))
//	}
//
// Commands accept --json for machine-readable output. Colors follow
// NO_COLOR and FORCE_COLOR and are off when stdout is not a terminal.
package cli
