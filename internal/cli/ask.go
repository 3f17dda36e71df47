// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Usage:
//
//	shraga ask "What changed in release 4?" --flow docs
//	shraga ask --rtl "מה חדש?"
//
// The answer is rendered as markdown on a terminal and printed raw
// otherwise. Ctrl+C aborts the request.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/session"
	"github.com/jeranaias/shraga-tui/internal/turn"
	"github.com/jeranaias/shraga-tui/internal/util"
)

// =============================================================================
// MARKDOWN
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders content for the terminal, falling back to the raw
// text when no renderer is available.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}
	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// rich reports whether output goes to a color terminal.
func (a *App) rich() bool {
	return a.Out == os.Stdout && ColorsEnabled()
}

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAsk handles "shraga ask".
func HandleAsk(ctx context.Context, app *App, args Args) error {
	if strings.TrimSpace(args.Query) == "" {
		return ErrMissingArgument("question", `shraga ask "your question" --flow ID`)
	}

	flow, err := resolveFlow(ctx, app, args.Flow)
	if err != nil {
		return err
	}
	id := app.Sessions.CreateSession(flow)

	outcome, reply, err := runQuestion(ctx, app, id, args.Query, args.RTL)
	if args.JSON {
		if err != nil {
			return NewJSONErrorResponse("ask", err).Write(app.Out)
		}
		return NewJSONResponse("ask", askData(id, flow.ID, outcome, reply)).Write(app.Out)
	}
	if err != nil {
		return err
	}

	printReply(app, outcome, reply, args.Quiet)
	if outcome != turn.OutcomeReplied {
		return NewCommandError("ask", "run", outcome.String(), nil)
	}
	return nil
}

// resolveFlow picks the flow named by id, or the server's single default
// flow when id is empty.
func resolveFlow(ctx context.Context, app *App, id string) (model.Flow, error) {
	rctx, cancel := app.requestContext(ctx)
	defer cancel()

	if _, err := app.Catalog.Fetch(rctx); err != nil {
		return model.Flow{}, fmt.Errorf("load flows: %w", err)
	}

	if id == "" {
		cfg, err := app.Catalog.Configs(rctx)
		if err != nil {
			return model.Flow{}, fmt.Errorf("load UI configs: %w", err)
		}
		def, ok := cfg.SingleDefaultFlow()
		if !ok {
			return model.Flow{}, ErrMissingArgument("flow", "--flow ID (see 'shraga flows')")
		}
		id = def
	}

	flow, ok := app.Catalog.Lookup(id)
	if !ok {
		return model.Flow{}, NewNotFoundError("flow", id)
	}
	return flow, nil
}

// runQuestion sends text on session id and returns the message the run
// appended. Ctrl+C aborts the run.
func runQuestion(ctx context.Context, app *App, id, text string, rtl bool) (turn.Outcome, model.Message, error) {
	stop := abortOnInterrupt(app.Sessions)
	defer stop()

	outcome, err := app.Sessions.Send(ctx, text, id, session.SendOptions{RTL: rtl || util.IsRTL(text)})
	if err != nil {
		return outcome, model.Message{}, err
	}
	if !outcome.Succeeded() {
		return outcome, model.Message{}, nil
	}

	s, ok := app.Sessions.Session(id)
	if !ok {
		return turn.OutcomeDiscarded, model.Message{}, nil
	}
	last := s.LastMessage()
	if last == nil {
		return outcome, model.Message{}, nil
	}
	return outcome, *last, nil
}

// abortOnInterrupt aborts the in-flight run on SIGINT until stop is called.
func abortOnInterrupt(m *session.Manager) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			m.Abort()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func printReply(app *App, outcome turn.Outcome, reply model.Message, quiet bool) {
	switch outcome {
	case turn.OutcomeReplied:
	case turn.OutcomeDiscarded:
		fmt.Fprintln(app.Err, WarningStyle.Render("[WARN]")+" session was removed before the reply arrived")
		return
	default:
		fmt.Fprintln(app.Out, ErrorStyle.Render("[ERROR]")+" "+reply.Text)
		return
	}

	if app.rich() {
		app.println(renderMarkdown(reply.Text))
	} else {
		app.println(reply.Text)
	}

	if quiet || len(reply.RetrievalResults) == 0 {
		return
	}
	app.println()
	app.println(DimStyle.Render("Sources:"))
	for i, r := range reply.RetrievalResults {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		line := fmt.Sprintf("  %d. %s", i+1, util.TruncateWidth(title, 70))
		if r.Link != "" {
			line += " " + LinkStyle.Render(r.Link)
		}
		app.println(line)
	}
}

func askData(sessionID, flowID string, outcome turn.Outcome, reply model.Message) AskData {
	data := AskData{
		SessionID: sessionID,
		FlowID:    flowID,
		Outcome:   outcome.String(),
		Answer:    reply.Text,
		Trace:     reply.Trace,
	}
	for _, r := range reply.RetrievalResults {
		data.Sources = append(data.Sources, SourceData{Title: r.Title, Link: r.Link})
	}
	return data
}
