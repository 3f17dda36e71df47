// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shraga-tui/internal/commands"
	"github.com/jeranaias/shraga-tui/internal/config"
	"github.com/jeranaias/shraga-tui/internal/feedback"
	"github.com/jeranaias/shraga-tui/internal/flows"
	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/session"
	"github.com/jeranaias/shraga-tui/internal/turn"
	"github.com/jeranaias/shraga-tui/internal/ui/styles"
)

// loadingInterval is how long each loading message stays up.
const loadingInterval = 3 * time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// StateChangedMsg is delivered after the session manager changed.
type StateChangedMsg struct{}

// HydratedMsg carries the result of startup hydration.
type HydratedMsg struct {
	Hydration session.Hydration
	Err       error
}

// ConfigsMsg carries the backend UI configuration.
type ConfigsMsg struct {
	Config *model.UIConfig
}

// SendDoneMsg is delivered when a flow run finished.
type SendDoneMsg struct {
	SessionID string
	Outcome   turn.Outcome
	Err       error
}

type loadingTickMsg struct{ gen int }

// =============================================================================
// CHAT MODEL
// =============================================================================

// Deps are the collaborators the chat view drives.
type Deps struct {
	Ctx      context.Context
	Config   *config.Config
	Sessions *session.Manager
	Catalog  *flows.Catalog
	Feedback *feedback.Orchestrator
	Marks    *feedback.Marks
	Logger   *slog.Logger

	// User is the display name shown in the header.
	User string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	deps   Deps
	logger *slog.Logger
	theme  *styles.Theme
	keys   KeyMap

	// Commands
	registry   *commands.Registry
	cmdCtx     *commands.Context
	completer  *commands.Completer
	completion *commands.CompletionState

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	markdown *markdownCache

	width  int
	height int
	ready  bool

	// Session state mirrored from the manager
	state    session.State
	canReply bool
	uiConfig *model.UIConfig
	changes  chan struct{}

	// Pending request
	pending     bool
	pendingID   string
	loadingGen  int
	loadingStep int

	// Panels and notices
	panel      string
	notice     string
	noticeErr  bool
	showTrace  bool
	atBottom   bool
	lastRender string
}

// New creates the chat model and subscribes it to session changes.
func New(theme *styles.Theme, deps Deps) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	if deps.Marks == nil {
		deps.Marks = feedback.NewMarks()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = (*model.UIConfig)(nil).Placeholder()
	ti.CharLimit = model.DefaultInputMaxLength
	if deps.Config.UI.MaxInputLength > 0 {
		ti.CharLimit = deps.Config.UI.MaxInputLength
	}
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	registry := commands.NewRegistry()
	cmdCtx := commands.NewContext(deps.Ctx, deps.Config, deps.Sessions, deps.Catalog, deps.Feedback, deps.Marks)

	completer := commands.NewCompleter(registry)
	completer.SessionsFn = func() []model.Session { return deps.Sessions.Snapshot().Sessions }
	completer.FlowsFn = func() []model.Flow {
		if !deps.Catalog.Loaded() {
			return nil
		}
		list, _ := deps.Catalog.Fetch(deps.Ctx)
		return list
	}

	// One pending notification is enough: the handler re-reads the snapshot.
	changes := make(chan struct{}, 1)
	deps.Sessions.SetChangeCallback(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	return Model{
		deps:       deps,
		logger:     logging.OrDefault(deps.Logger).With("component", "chat"),
		theme:      theme,
		keys:       DefaultKeyMap(),
		registry:   registry,
		cmdCtx:     cmdCtx,
		completer:  completer,
		completion: commands.NewCompletionState(),
		viewport:   vp,
		input:      ti,
		spinner:    sp,
		markdown:   newMarkdownCache(theme),
		state:      deps.Sessions.Snapshot(),
		changes:    changes,
		showTrace:  deps.Config.UI.ShowTrace,
		atBottom:   true,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts hydration and the change listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.hydrate(),
		m.loadConfigs(),
		waitForChange(m.changes),
	)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return StateChangedMsg{}
	}
}

func (m Model) hydrate() tea.Cmd {
	ctx := m.deps.Ctx
	sessions := m.deps.Sessions
	return func() tea.Msg {
		h, err := sessions.Hydrate(ctx)
		return HydratedMsg{Hydration: h, Err: err}
	}
}

func (m Model) loadConfigs() tea.Cmd {
	ctx := m.deps.Ctx
	catalog := m.deps.Catalog
	return func() tea.Msg {
		cfg, err := catalog.Configs(ctx)
		if err != nil {
			return nil
		}
		return ConfigsMsg{Config: cfg}
	}
}

// send runs text on the selected session in the background.
func (m Model) send(id, text string, rtl bool) tea.Cmd {
	ctx := m.deps.Ctx
	sessions := m.deps.Sessions
	return func() tea.Msg {
		outcome, err := sessions.Send(ctx, text, id, session.SendOptions{RTL: rtl})
		return SendDoneMsg{SessionID: id, Outcome: outcome, Err: err}
	}
}

func loadingTick(gen int) tea.Cmd {
	return tea.Tick(loadingInterval, func(time.Time) tea.Msg {
		return loadingTickMsg{gen: gen}
	})
}

// Pending reports whether a flow run is in flight.
func (m Model) Pending() bool { return m.pending }

// Notice returns the current status line text.
func (m Model) Notice() string { return m.notice }
