// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-editing chat REPL.
//
// Usage:
//
//	shraga chat [--flow ID] [--rtl]
//
// Slash commands are the same as in the TUI. Ctrl+C during a request
// aborts it; Ctrl+C or Ctrl+D at the prompt exits.

package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/peterh/liner"

	"github.com/jeranaias/shraga-tui/internal/commands"
	"github.com/jeranaias/shraga-tui/internal/config"
	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/session"
	"github.com/jeranaias/shraga-tui/internal/turn"
	"github.com/jeranaias/shraga-tui/internal/util"
)

// =============================================================================
// INPUT
// =============================================================================

// LineReader reads one line of input.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// ChatCLI provides input history and line editing for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with persisted input history and
// slash-command completion.
func NewChatCLI(completer *commands.Completer) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	if completer != nil {
		line.SetWordCompleter(func(input string, pos int) (string, []string, string) {
			return completeWord(completer, input, pos)
		})
	}

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	c.loadHistory()
	return c
}

// completeWord adapts the command completer to liner's word completion.
func completeWord(completer *commands.Completer, input string, pos int) (string, []string, string) {
	head, tail := input[:pos], input[pos:]
	start := strings.LastIndexAny(head, " \t") + 1

	var words []string
	for _, c := range completer.Complete(head, len(head)) {
		words = append(words, c.Value+" ")
	}
	return head[:start], words, tail
}

func (c *ChatCLI) loadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// Prompt reads a line and records it in the history.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history (0600) and restores the terminal.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

// HandleChat handles "shraga chat".
func HandleChat(ctx context.Context, app *App, args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	repl := newREPL(ctx, app, args)
	input := NewChatCLI(repl.completer)
	defer input.Close()

	return repl.run(ctx, input)
}

// repl is the chat loop state.
type repl struct {
	app       *App
	args      Args
	registry  *commands.Registry
	cmdCtx    *commands.Context
	completer *commands.Completer
	showTrace bool
}

func newREPL(ctx context.Context, app *App, args Args) *repl {
	registry := commands.NewRegistry()
	cmdCtx := commands.NewContext(ctx, app.Config, app.Sessions, app.Catalog, app.Feedback, app.Marks)

	completer := commands.NewCompleter(registry)
	completer.SessionsFn = func() []model.Session { return app.Sessions.Snapshot().Sessions }
	completer.FlowsFn = func() []model.Flow {
		if !app.Catalog.Loaded() {
			return nil
		}
		list, _ := app.Catalog.Fetch(ctx)
		return list
	}

	return &repl{
		app:       app,
		args:      args,
		registry:  registry,
		cmdCtx:    cmdCtx,
		completer: completer,
		showTrace: app.Config.UI.ShowTrace,
	}
}

// run drives the loop until EOF, Ctrl+C at the prompt, or /quit.
func (r *repl) run(ctx context.Context, in LineReader) error {
	if err := r.start(ctx); err != nil {
		return err
	}

	for {
		line, err := in.Prompt(PromptStyle.Render(r.prompt()))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.app.println()
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		case commands.IsCommand(line):
			if quit := r.command(line); quit {
				return nil
			}
		default:
			r.send(ctx, commands.Unescape(line))
		}
	}
}

// start picks the starting session: a new one on --flow, or whatever
// hydration chooses.
func (r *repl) start(ctx context.Context) error {
	if r.args.Flow != "" {
		flow, err := resolveFlow(ctx, r.app, r.args.Flow)
		if err != nil {
			return err
		}
		r.app.Sessions.CreateSession(flow)
		if !r.args.Quiet {
			r.app.printf("%s %s\n", DimStyle.Render("Flow:"), flow.ID)
		}
		return nil
	}

	rctx, cancel := r.app.requestContext(ctx)
	defer cancel()
	h, err := r.app.Sessions.Hydrate(rctx)
	if err != nil {
		return err
	}

	if r.args.Quiet {
		return nil
	}
	switch h.Result {
	case session.HydrateCreated:
		if s, ok := r.app.Sessions.Session(h.SessionID); ok {
			r.app.printf("%s %s\n", DimStyle.Render("Flow:"), s.Flow.ID)
		}
	case session.HydrateNeedsEditor:
		r.app.println(WarningStyle.Render("No default flow. Start a session with /new <flow>; /flows lists them."))
	}
	r.app.println(DimStyle.Render("Type /help for commands, exit to quit."))
	return nil
}

func (r *repl) prompt() string {
	if s, ok := r.app.Sessions.Selected(); ok {
		return s.Flow.ID + "> "
	}
	return "shraga> "
}

// =============================================================================
// MESSAGES
// =============================================================================

func (r *repl) send(ctx context.Context, text string) {
	s, ok := r.app.Sessions.Selected()
	if !ok {
		r.app.println(WarningStyle.Render("No session. Start one with /new <flow>"))
		return
	}

	outcome, reply, err := runQuestion(ctx, r.app, s.ID, text, r.args.RTL)
	if err != nil {
		r.app.printf("%s %v\n", ErrorStyle.Render("[ERROR]"), err)
		return
	}
	if outcome == turn.OutcomeDiscarded {
		return
	}

	r.app.println()
	printReply(r.app, outcome, reply, r.args.Quiet)
	if r.showTrace && len(reply.Trace) > 0 {
		r.app.println(DimStyle.Render(util.TruncateRunes(string(reply.Trace), 4000)))
	}
	if outcome == turn.OutcomeReplied && !r.app.Sessions.CanReplyToBot() {
		r.app.println(WarningStyle.Render("Follow up questions are not supported. Start a new session with /new."))
	}
	r.app.println()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and prints its result. It reports whether
// the REPL should exit.
func (r *repl) command(line string) bool {
	cmd := r.registry.Execute(r.cmdCtx, line)
	if cmd == nil {
		return false
	}
	return r.show(cmd())
}

func (r *repl) show(msg tea.Msg) bool {
	a := r.app
	switch msg := msg.(type) {
	case tea.QuitMsg:
		return true
	case tea.BatchMsg:
		for _, c := range msg {
			if c != nil && r.show(c()) {
				return true
			}
		}
	case commands.ShowHelpMsg:
		a.println(commands.GenerateHelpText(r.registry, msg.Topic))
	case commands.StatusMsg:
		a.println(DimStyle.Render(msg.Text))
	case commands.ErrorMsg:
		text := msg.Title
		if msg.Message != "" {
			text += ": " + msg.Message
		}
		a.printf("%s %s\n", ErrorStyle.Render("[ERROR]"), text)
		if msg.Tip != "" {
			a.println(DimStyle.Render(msg.Tip))
		}
	case commands.SessionCreatedMsg:
		a.printf("%s New session on %s\n", SuccessStyle.Render("[OK]"), msg.FlowID)
	case commands.SessionSelectedMsg:
		if s, ok := a.Sessions.Session(msg.ID); ok {
			printTranscript(a, s)
		}
	case commands.SessionRemovedMsg:
		if msg.Error != nil {
			a.printf("%s %v\n", ErrorStyle.Render("[ERROR]"), msg.Error)
		} else {
			a.printf("%s Removed %s\n", SuccessStyle.Render("[OK]"), shortID(msg.ID))
		}
	case commands.SessionListMsg:
		printGroups(a, msg.Groups, msg.SelectedID)
	case commands.HistoryRefreshedMsg:
		if msg.Error != nil {
			a.printf("%s %v\n", ErrorStyle.Render("[ERROR]"), msg.Error)
		} else {
			a.printf("%d sessions\n", msg.Count)
		}
	case commands.ShowFlowsMsg:
		if msg.Error != nil {
			a.printf("%s %v\n", ErrorStyle.Render("[ERROR]"), msg.Error)
		} else {
			printFlows(a, msg.Flows, "")
		}
	case commands.PrefsMsg:
		a.printf("%s %s\n", DimStyle.Render("Flow:"), msg.Flow.ID)
		for _, k := range msg.Preferences.Keys() {
			a.printf("  %s = %v\n", k, msg.Preferences[k])
		}
	case commands.ExportCompleteMsg:
		if msg.Error != nil {
			a.printf("%s %v\n", ErrorStyle.Render("[ERROR]"), msg.Error)
		} else {
			a.printf("%s Exported to %s\n", SuccessStyle.Render("[OK]"), msg.Path)
		}
	case commands.FeedbackCompleteMsg:
		if msg.Error != nil {
			a.printf("%s %v\n", ErrorStyle.Render("[ERROR]"), msg.Error)
		} else {
			a.println(SuccessStyle.Render("Thanks for the feedback"))
		}
	case commands.ToggleTraceMsg:
		r.showTrace = !r.showTrace
		if r.showTrace {
			a.println("Trace on")
		} else {
			a.println("Trace off")
		}
	}
	return false
}

// printTranscript prints every message of s.
func printTranscript(a *App, s model.Session) {
	a.println(TitleStyle.Render(util.TruncateWidth(s.Title(), 60)))
	a.println(RenderSeparator(GetTerminalWidth() - 2))
	for _, m := range s.Messages {
		label := BotStyle.Render("bot:")
		if m.IsUser() {
			label = UserStyle.Render("you:")
		}
		text := m.Text
		if m.Error {
			text = ErrorStyle.Render(text)
		}
		a.printf("%s %s\n", label, text)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
