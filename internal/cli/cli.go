// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies a top-level subcommand.
type Command int

const (
	CmdREPL Command = iota
	CmdAsk
	CmdSessions
	CmdSearch
	CmdStats
	CmdModels
	CmdExport
	CmdImport
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[string]Command{
	"chat":     CmdREPL,
	"ask":      CmdAsk,
	"sessions": CmdSessions,
	"ls":       CmdSessions,
	"search":   CmdSearch,
	"stats":    CmdStats,
	"models":   CmdModels,
	"export":   CmdExport,
	"import":   CmdImport,
	"config":   CmdConfig,
	"version":  CmdVersion,
	"help":     CmdHelp,
}

func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c && name != "ls" {
			return name
		}
	}
	return "unknown"
}

// Args holds parsed command line arguments.
type Args struct {
	Command Command

	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool
	Model   string
	NoColor bool

	// Files to attach (ask).
	Files []string

	// All includes archived sessions (sessions).
	All bool

	// Messages switches search to message-level hits.
	Messages bool

	// Session is a 1-based index into the session list (export).
	Session int
	Format  string
	Dir     string

	// Rest are the positional arguments after the command.
	Rest []string
}

// Text joins the positional arguments into one line.
func (a Args) Text() string {
	return strings.Join(a.Rest, " ")
}

// knownBoolFlags lists the flags that never take a value, so "--json foo"
// keeps foo as a positional argument.
var knownBoolFlags = []string{
	"quiet", "q", "verbose", "v", "json", "no-color",
	"all", "a", "messages", "help", "h", "version",
}

// Parse parses argv (without the program name).
func Parse(argv []string) (Args, error) {
	p := NewArgParser(argv, knownBoolFlags...)

	var args Args
	args.Quiet = p.BoolFlag("quiet") || p.BoolFlag("q")
	args.Verbose = p.BoolFlag("verbose") || p.BoolFlag("v")
	args.JSON = p.BoolFlag("json")
	args.NoColor = p.BoolFlag("no-color")
	args.Model = p.FlagOrDefault("model", p.Flag("m"))
	args.All = p.BoolFlag("all") || p.BoolFlag("a")
	args.Messages = p.BoolFlag("messages")
	args.Files = append(p.Flags("file"), p.Flags("f")...)
	args.Format = p.Flag("format")
	args.Dir = p.Flag("dir")

	if p.BoolFlag("version") {
		args.Command = CmdVersion
		return args, nil
	}
	if p.BoolFlag("help") || p.BoolFlag("h") {
		args.Command = CmdHelp
		return args, nil
	}

	if s := p.Flag("session"); s != "" {
		n, err := ParseIntWithValidation(s, "--session")
		if err != nil {
			return args, &UsageError{Reason: err.Error()}
		}
		args.Session = n
	}

	sub := p.Subcommand()
	if sub == "" {
		args.Command = CmdREPL
		return args, nil
	}
	cmd, ok := commandNames[strings.ToLower(sub)]
	if !ok {
		return args, &UsageError{Reason: fmt.Sprintf("unknown command %q", sub)}
	}
	args.Command = cmd
	args.Rest = p.PositionalFrom(1)
	return args, nil
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `rigchat - chat with hosted models from the terminal

Usage:
  rigchat [flags]                    Start the interactive chat
  rigchat ask [-f FILE]... QUESTION  Ask once in a new session
  rigchat sessions [--all]           List sessions
  rigchat search QUERY [--messages]  Search sessions (tag:, category:, role:,
                                     has:file, sentiment:, from:, to:)
  rigchat stats                      Show usage analytics
  rigchat models                     List available models
  rigchat export FILE                Export all sessions as JSON ("-" = stdout)
  rigchat export --session N [--format md|html|json] [--dir DIR]
  rigchat import FILE                Import sessions from JSON ("-" = stdin)
  rigchat config [show|get|set|keys|path]
  rigchat version

Flags:
  -m, --model ID    Model for new sessions
  -f, --file PATH   Attach a file (repeatable)
  --json            Machine-readable output
  --no-color        Disable colors
  -q, --quiet       Less output
  -v, --verbose     Debug logging
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "rigchat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
