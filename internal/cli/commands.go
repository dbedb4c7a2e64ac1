// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/search"
	"github.com/jeranaias/rigchat/internal/util"
)

// Env is what a command runs against.
type Env struct {
	App  *app.App
	Args Args

	Out io.Writer
	Err io.Writer
	In  io.Reader

	// ConfigPath overrides where "config set" writes. Empty means the
	// file the config was loaded from.
	ConfigPath string
}

// Run dispatches the parsed command.
func Run(ctx context.Context, env *Env) error {
	switch env.Args.Command {
	case CmdREPL:
		return RunREPL(ctx, env)
	case CmdAsk:
		return HandleAsk(ctx, env)
	case CmdSessions:
		return HandleSessions(env)
	case CmdSearch:
		return HandleSearch(env)
	case CmdStats:
		return HandleStats(env)
	case CmdModels:
		return HandleModels(ctx, env)
	case CmdExport:
		return HandleExport(env)
	case CmdImport:
		return HandleImport(env)
	case CmdConfig:
		return HandleConfig(env)
	case CmdVersion:
		PrintVersion(env.Out)
		return nil
	default:
		PrintUsage(env.Out)
		return nil
	}
}

// =============================================================================
// ASK
// =============================================================================

// HandleAsk sends one question, with optional attachments, in a new session.
func HandleAsk(ctx context.Context, env *Env) error {
	text := strings.TrimSpace(env.Args.Text())
	if text == "" && len(env.Args.Files) == 0 {
		return &UsageError{Reason: "ask needs a question", Usage: "rigchat ask [-f FILE]... QUESTION"}
	}

	a := env.App
	if env.Args.Model != "" {
		cfg := a.Config()
		cfg.Model.ID = env.Args.Model
		a.ApplyConfig(cfg)
	}
	a.NewSession()

	var files []model.AttachedFile
	if len(env.Args.Files) > 0 {
		accepted, rejected := a.Attach(ctx, env.Args.Files)
		for _, r := range rejected {
			fmt.Fprintf(env.Err, "%s %s: %v\n", WarningStyle.Render("[SKIP]"), r.Name, r.Err)
		}
		if len(accepted) == 0 && text == "" {
			return wrap("ask", "attach", fmt.Errorf("no usable files"))
		}
		files = accepted
	}

	reply, err := streamReply(ctx, env, func(onChunk func(string)) (model.Message, error) {
		return a.Send(ctx, text, files, onChunk)
	})
	if err != nil {
		return wrap("ask", "", err)
	}

	if env.Args.JSON {
		return writeJSON(env.Out, "ask", map[string]interface{}{
			"session": a.SelectedID(),
			"model":   modelOf(reply),
			"content": reply.Content,
			"tokens":  reply.Tokens,
		})
	}
	return nil
}

// streamReply runs send and prints the reply. Deltas are written as they
// arrive unless output is JSON, or a terminal in buffered mode, where the
// finished reply is rendered as markdown instead.
func streamReply(ctx context.Context, env *Env, send func(onChunk func(string)) (model.Message, error)) (model.Message, error) {
	stream := env.App.Config().Model.Stream
	markdown := !env.Args.JSON && !stream && isTerminalWriter(env.Out)
	live := !env.Args.JSON && !markdown

	var onChunk func(string)
	if live {
		onChunk = func(delta string) { fmt.Fprint(env.Out, delta) }
	}

	reply, err := send(onChunk)
	if err != nil {
		if live {
			fmt.Fprintln(env.Out)
		}
		return reply, err
	}

	switch {
	case markdown:
		fmt.Fprint(env.Out, renderMarkdown(reply.Content))
	case live:
		fmt.Fprintln(env.Out)
	}
	return reply, nil
}

func modelOf(m model.Message) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Model
}

// =============================================================================
// SESSIONS / SEARCH / STATS / MODELS
// =============================================================================

type sessionSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Messages int      `json:"messages"`
	Updated  string   `json:"updated_at"`
	Tags     []string `json:"tags,omitempty"`
	Category string   `json:"category,omitempty"`
	Favorite bool     `json:"favorite,omitempty"`
	Archived bool     `json:"archived,omitempty"`
}

func summarize(sessions []model.ChatSession) []sessionSummary {
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			ID:       s.ID,
			Title:    s.Title,
			Messages: len(s.Messages),
			Updated:  s.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Tags:     s.Tags,
			Category: s.Category,
			Favorite: s.IsFavorite,
			Archived: s.IsArchived,
		})
	}
	return out
}

// HandleSessions lists sessions, newest first.
func HandleSessions(env *Env) error {
	sessions := env.App.Sessions(env.Args.All || env.App.Config().Chat.ShowArchived)
	if env.Args.JSON {
		return writeJSON(env.Out, "sessions", summarize(sessions))
	}
	writeSessionTable(env.Out, sessions, env.App.SelectedID())
	return nil
}

// HandleSearch filters sessions, or lists matching messages with --messages.
func HandleSearch(env *Env) error {
	spec, err := search.Parse(env.Args.Text())
	if err != nil {
		return &UsageError{Reason: err.Error(), Usage: "rigchat search [tag:X] [category:X] [role:X] [has:file] [from:DATE] [to:DATE] [TEXT]"}
	}

	if env.Args.Messages {
		hits := env.App.SearchMessages(spec.Query)
		if env.Args.JSON {
			type hit struct {
				Session string `json:"session"`
				Message string `json:"message"`
				Role    string `json:"role"`
				Content string `json:"content"`
			}
			out := make([]hit, 0, len(hits))
			for _, h := range hits {
				out = append(out, hit{h.Session.ID, h.Message.ID, string(h.Message.Role), h.Message.Content})
			}
			return writeJSON(env.Out, "search", out)
		}
		writeHits(env.Out, hits)
		return nil
	}

	sessions := env.App.Search(spec)
	if env.Args.JSON {
		return writeJSON(env.Out, "search", summarize(sessions))
	}
	writeSessionTable(env.Out, sessions, env.App.SelectedID())
	return nil
}

// HandleStats prints aggregate analytics.
func HandleStats(env *Env) error {
	a := env.App.Analytics()
	if env.Args.JSON {
		return writeJSON(env.Out, "stats", a)
	}
	writeAnalytics(env.Out, a)
	return nil
}

// HandleModels lists the provider's models.
func HandleModels(ctx context.Context, env *Env) error {
	models := env.App.Models(ctx)
	if env.Args.JSON {
		return writeJSON(env.Out, "models", models)
	}
	current := env.App.Config().Model.ID
	for _, m := range models {
		if m == current {
			fmt.Fprintf(env.Out, "%s %s\n", HighlightStyle.Render("*"), m)
			continue
		}
		fmt.Fprintf(env.Out, "  %s\n", m)
	}
	return nil
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

// HandleExport writes every session as JSON to FILE ("-" for stdout), or
// one session (--session N) in --format to --dir.
func HandleExport(env *Env) error {
	if env.Args.Session > 0 {
		sessions := env.App.Sessions(true)
		if env.Args.Session > len(sessions) {
			return &NotFoundError{Resource: "session", ID: fmt.Sprint(env.Args.Session)}
		}
		format := env.Args.Format
		if format == "" {
			format = "md"
		}
		path, err := env.App.ExportSession(sessions[env.Args.Session-1].ID, format, env.Args.Dir)
		if err != nil {
			return wrap("export", format, err)
		}
		fmt.Fprintf(env.Out, "%s %s\n", SuccessStyle.Render("Exported"), path)
		return nil
	}

	if len(env.Args.Rest) == 0 {
		return &UsageError{Reason: "export needs a file", Usage: "rigchat export FILE | --session N [--format md|html|json] [--dir DIR]"}
	}
	data, err := env.App.ExportAll()
	if err != nil {
		return wrap("export", "encode", err)
	}

	target := env.Args.Rest[0]
	if target == "-" {
		_, err := env.Out.Write(append(data, '\n'))
		return err
	}
	if err := util.AtomicWriteFile(target, data, 0600); err != nil {
		return wrap("export", "write", err)
	}
	if !env.Args.Quiet {
		fmt.Fprintf(env.Out, "%s %d sessions to %s\n", SuccessStyle.Render("Exported"), len(env.App.Sessions(true)), target)
	}
	return nil
}

// HandleImport reads a JSON export from FILE ("-" for stdin).
func HandleImport(env *Env) error {
	if len(env.Args.Rest) == 0 {
		return &UsageError{Reason: "import needs a file", Usage: "rigchat import FILE"}
	}

	var (
		data []byte
		err  error
	)
	if src := env.Args.Rest[0]; src == "-" {
		data, err = io.ReadAll(env.In)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return wrap("import", "read", err)
	}

	ids, err := env.App.Import(data)
	if err != nil {
		return wrap("import", "", err)
	}
	if env.Args.JSON {
		return writeJSON(env.Out, "import", ids)
	}
	fmt.Fprintf(env.Out, "%s %d sessions\n", SuccessStyle.Render("Imported"), len(ids))
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

var secretKeys = map[string]bool{
	"api.key":                true,
	"storage.redis_password": true,
}

// HandleConfig implements show, get, set, keys and path.
func HandleConfig(env *Env) error {
	action := "show"
	if len(env.Args.Rest) > 0 {
		action = strings.ToLower(env.Args.Rest[0])
	}
	cfg := env.App.Config()

	switch action {
	case "show":
		fmt.Fprint(env.Out, cfg.String())
		return nil

	case "get":
		if len(env.Args.Rest) < 2 {
			return &UsageError{Reason: "config get needs a key", Usage: "rigchat config get KEY"}
		}
		key := strings.ToLower(env.Args.Rest[1])
		v, err := cfg.Get(key)
		if err != nil {
			return wrap("config", "get", err)
		}
		if secretKeys[key] && fmt.Sprint(v) != "" {
			v = "********"
		}
		fmt.Fprintln(env.Out, v)
		return nil

	case "set":
		if len(env.Args.Rest) < 3 {
			return &UsageError{Reason: "config set needs a key and a value", Usage: "rigchat config set KEY VALUE"}
		}
		key, value := env.Args.Rest[1], strings.Join(env.Args.Rest[2:], " ")
		if err := cfg.Set(key, value); err != nil {
			return wrap("config", "set", err)
		}
		var err error
		if env.ConfigPath != "" {
			err = cfg.SaveAs(env.ConfigPath)
		} else {
			err = cfg.Save()
		}
		if err != nil {
			return wrap("config", "save", err)
		}
		env.App.ApplyConfig(cfg)
		log.Info().Str("key", key).Msg("config updated")
		if !env.Args.Quiet {
			fmt.Fprintf(env.Out, "%s %s\n", SuccessStyle.Render("Set"), key)
		}
		return nil

	case "keys":
		for _, k := range config.Keys() {
			fmt.Fprintln(env.Out, k)
		}
		return nil

	case "path":
		path := cfg.Path()
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return wrap("config", "path", err)
			}
			path = p
		}
		fmt.Fprintln(env.Out, path)
		return nil

	default:
		return &UsageError{Reason: fmt.Sprintf("unknown config action %q", action), Usage: "rigchat config [show|get|set|keys|path]"}
	}
}
