// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
)

var promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

// =============================================================================
// REPL
// =============================================================================

// REPL executes chat input against the app. Plain lines are sent to the
// selected session; lines starting with "/" are commands.
type REPL struct {
	env *Env

	// Attachments queued by /attach for the next message.
	pending []model.AttachedFile

	lastSaveErr error

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewREPL returns a REPL writing to env.Out.
func NewREPL(env *Env) *REPL {
	return &REPL{env: env}
}

// Interrupt cancels the send in flight, if any. It reports whether there
// was one.
func (r *REPL) Interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// Execute runs one line of input. It returns quit=true for /quit.
func (r *REPL) Execute(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil
	case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
		return true, nil
	case strings.HasPrefix(line, "/"):
		return r.command(ctx, line)
	}
	return false, r.send(ctx, line)
}

func (r *REPL) send(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	files := r.pending
	_, err := streamReply(ctx, r.env, func(onChunk func(string)) (model.Message, error) {
		return r.env.App.Send(ctx, text, files, onChunk)
	})
	if !errors.Is(err, app.ErrEmptyMessage) {
		r.pending = nil
	}
	r.checkAutosave()

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(r.env.Out, WarningStyle.Render("[Cancelled]"))
		return nil
	}
	return err
}

// checkAutosave reports a background save failure once.
func (r *REPL) checkAutosave() {
	err := r.env.App.AutosaveError()
	if err != nil && (r.lastSaveErr == nil || err.Error() != r.lastSaveErr.Error()) {
		fmt.Fprintf(r.env.Err, "%s autosave failed: %v\n", WarningStyle.Render("[WARN]"), err)
	}
	r.lastSaveErr = err
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const replHelp = `Commands:
  /new                 Start a new session
  /list [all]          List sessions
  /switch N            Switch to session N from /list
  /history             Show the current session
  /rename TITLE        Rename the current session
  /tag TAG...          Replace the current session's tags
  /category NAME       Set the current session's category
  /fav                 Toggle favorite
  /archive             Toggle archived
  /delete [N]          Delete the current session, or session N
  /attach [PATH...]    Queue files for the next message, or list queued
  /detach              Drop queued files
  /edit N TEXT         Replace the text of message N
  /react N EMOJI       Toggle a reaction on message N
  /search QUERY        Search messages
  /stats               Usage analytics
  /export FORMAT [DIR] Export the current session (md, html, json)
  /import FILE         Import sessions from a JSON export
  /models              List models
  /model ID            Model for new sessions
  /quit                Exit
`

func (r *REPL) command(ctx context.Context, line string) (bool, error) {
	name, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	rest = strings.TrimSpace(rest)
	fields := strings.Fields(rest)

	a := r.env.App
	out := r.env.Out
	id := a.SelectedID()
	store := a.Store()

	switch strings.ToLower(name) {
	case "quit", "exit", "q":
		return true, nil

	case "help", "?":
		fmt.Fprint(out, replHelp)

	case "new":
		s := a.NewSession()
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("New session"), s.Title)

	case "list", "ls":
		all := rest == "all" || a.Config().Chat.ShowArchived
		writeSessionTable(out, a.Sessions(all), id)

	case "switch":
		s, err := r.sessionAt(rest)
		if err != nil {
			return false, err
		}
		if err := a.Select(s.ID); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s %s\n", InfoStyle.Render("Switched to"), s.Title)

	case "history":
		s, ok := a.Selected()
		if !ok {
			return false, app.ErrNoSession
		}
		fmt.Fprintln(out, TitleStyle.Render(s.Title))
		markdown := isTerminalWriter(out)
		for i, m := range s.Messages {
			writeMessage(out, i+1, m, markdown)
		}

	case "rename":
		if rest == "" {
			return false, &UsageError{Reason: "rename needs a title", Usage: "/rename TITLE"}
		}
		if _, ok := store.Rename(id, rest); !ok {
			return false, app.ErrNoSession
		}

	case "tag", "tags":
		var tags []string
		for _, f := range fields {
			for _, t := range strings.Split(f, ",") {
				if t = strings.TrimPrefix(strings.TrimSpace(t), "#"); t != "" {
					tags = append(tags, t)
				}
			}
		}
		s, ok := store.SetTags(id, tags)
		if !ok {
			return false, app.ErrNoSession
		}
		fmt.Fprintf(out, "Tags: %s\n", strings.Join(s.Tags, ", "))

	case "category":
		if _, ok := store.SetCategory(id, rest); !ok {
			return false, app.ErrNoSession
		}

	case "fav", "favorite":
		s, ok := store.ToggleFavorite(id)
		if !ok {
			return false, app.ErrNoSession
		}
		fmt.Fprintf(out, "Favorite: %v\n", s.IsFavorite)

	case "archive":
		s, ok := store.ToggleArchive(id)
		if !ok {
			return false, app.ErrNoSession
		}
		fmt.Fprintf(out, "Archived: %v\n", s.IsArchived)

	case "delete":
		target := id
		if rest != "" {
			s, err := r.sessionAt(rest)
			if err != nil {
				return false, err
			}
			target = s.ID
		}
		if err := a.DeleteSession(target); err != nil {
			return false, err
		}
		if s, ok := a.Selected(); ok {
			fmt.Fprintf(out, "%s now on %s\n", WarningStyle.Render("Deleted;"), s.Title)
		}

	case "attach":
		if len(fields) == 0 {
			for _, f := range r.pending {
				fmt.Fprintf(out, "  %s (%s)\n", f.Name, f.Type)
			}
			return false, nil
		}
		files, rejected := a.Attach(ctx, fields)
		for _, rj := range rejected {
			fmt.Fprintf(r.env.Err, "%s %s: %v\n", WarningStyle.Render("[SKIP]"), rj.Name, rj.Err)
		}
		r.pending = append(r.pending, files...)
		fmt.Fprintf(out, "%d file(s) queued\n", len(r.pending))

	case "detach":
		r.pending = nil

	case "edit":
		m, err := r.messageAt(fields)
		if err != nil {
			return false, err
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))
		if text == "" {
			return false, &UsageError{Reason: "edit needs text", Usage: "/edit N TEXT"}
		}
		store.EditMessage(id, m.ID, text)

	case "react":
		m, err := r.messageAt(fields)
		if err != nil {
			return false, err
		}
		if len(fields) < 2 {
			return false, &UsageError{Reason: "react needs an emoji", Usage: "/react N EMOJI"}
		}
		store.React(id, m.ID, fields[1])

	case "search":
		writeHits(out, a.SearchMessages(rest))

	case "stats":
		writeAnalytics(out, a.Analytics())

	case "export":
		if len(fields) == 0 {
			return false, &UsageError{Reason: "export needs a format", Usage: "/export md|html|json [DIR]"}
		}
		dir := ""
		if len(fields) > 1 {
			dir = fields[1]
		}
		path, err := a.ExportSession(id, fields[0], dir)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Exported"), path)

	case "import":
		if rest == "" {
			return false, &UsageError{Reason: "import needs a file", Usage: "/import FILE"}
		}
		data, err := os.ReadFile(rest)
		if err != nil {
			return false, err
		}
		ids, err := a.Import(data)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s %d sessions\n", SuccessStyle.Render("Imported"), len(ids))

	case "models":
		current := a.Config().Model.ID
		for _, m := range a.Models(ctx) {
			marker := " "
			if m == current {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, m)
		}

	case "model":
		if rest == "" {
			fmt.Fprintln(out, a.Config().Model.ID)
			return false, nil
		}
		cfg := a.Config()
		cfg.Model.ID = rest
		if err := cfg.Validate(); err != nil {
			return false, err
		}
		a.ApplyConfig(cfg)
		fmt.Fprintf(out, "New sessions will use %s\n", rest)

	default:
		return false, &UsageError{Reason: fmt.Sprintf("unknown command /%s (try /help)", name)}
	}

	r.checkAutosave()
	return false, nil
}

// sessionAt resolves a 1-based index into the current session listing.
func (r *REPL) sessionAt(arg string) (model.ChatSession, error) {
	n, err := ParseIntWithValidation(arg, "session number")
	if err != nil {
		return model.ChatSession{}, &UsageError{Reason: err.Error()}
	}
	sessions := r.env.App.Sessions(true)
	if n > len(sessions) {
		return model.ChatSession{}, &NotFoundError{Resource: "session", ID: arg}
	}
	return sessions[n-1], nil
}

// messageAt resolves fields[0] as a 1-based message number in the
// selected session.
func (r *REPL) messageAt(fields []string) (model.Message, error) {
	if len(fields) == 0 {
		return model.Message{}, &UsageError{Reason: "missing message number"}
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return model.Message{}, &UsageError{Reason: fmt.Sprintf("invalid message number %q", fields[0])}
	}
	s, ok := r.env.App.Selected()
	if !ok {
		return model.Message{}, app.ErrNoSession
	}
	if n > len(s.Messages) {
		return model.Message{}, &NotFoundError{Resource: "message", ID: fields[0]}
	}
	return s.Messages[n-1], nil
}

// =============================================================================
// INTERACTIVE LOOP
// =============================================================================

// RunREPL reads lines with liner until EOF, Ctrl+C at the prompt, or /quit.
// Ctrl+C while a reply is streaming cancels only that reply.
func RunREPL(ctx context.Context, env *Env) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	historyFile := historyPath()
	loadHistory(line, historyFile)
	defer saveHistory(line, historyFile)

	r := NewREPL(env)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			r.Interrupt()
		}
	}()

	if !env.Args.Quiet {
		printWelcome(env.Out, env.App)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := line.Prompt("rigchat> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Msg("prompt failed")
			}
			fmt.Fprintln(env.Out)
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		quit, err := r.Execute(ctx, input)
		if err != nil {
			DisplayError(env.Err, err, false)
		}
		if quit {
			return nil
		}
	}
}

func printWelcome(w io.Writer, a *app.App) {
	cfg := a.Config()
	fmt.Fprintln(w, promptStyle.Render("rigchat "+Version))
	if s, ok := a.Selected(); ok {
		fmt.Fprintln(w, RenderLabel("Session", s.Title))
	}
	fmt.Fprintln(w, RenderLabel("Model", cfg.Model.ID))
	if !a.Client().IsConfigured() {
		fmt.Fprintln(w, WarningStyle.Render("No API key set. Use RIGCHAT_API_KEY or: rigchat config set api.key KEY"))
	}
	fmt.Fprintln(w, DimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(w)
}

func historyPath() string {
	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "chat_history")
}

func loadHistory(line *liner.State, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := line.ReadHistory(f); err != nil {
		log.Debug().Err(err).Msg("read history")
	}
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		log.Debug().Err(err).Msg("write history")
	}
}
