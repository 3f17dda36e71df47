// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shraga-tui/internal/config"
	"github.com/jeranaias/shraga-tui/internal/feedback"
	"github.com/jeranaias/shraga-tui/internal/flows"
	"github.com/jeranaias/shraga-tui/internal/session"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/select <session>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler func(ctx *Context, args []string) tea.Cmd

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString  ArgType = iota // Free-form string
	ArgTypeSession                // Session ID from the session list
	ArgTypeFlow                   // Flow ID from the catalog
	ArgTypeEnum                   // One of predefined values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// Execute parses input and runs the matching handler. Unknown commands and
// argument errors come back as an ErrorMsg command.
func (r *Registry) Execute(ctx *Context, input string) tea.Cmd {
	result := NewParser(r).Parse(input)
	if !result.IsCommand {
		return nil
	}
	if result.Command == nil {
		return errorCmd("Unknown command", result.CommandName, "Type /help for available commands")
	}
	if err := ValidateArgs(result.Command, result.Args); err != nil {
		return errorCmd("Invalid arguments", err.Error(), result.Command.Usage)
	}
	if result.Command.Handler == nil {
		return nil
	}
	return result.Command.Handler(ctx, result.Args)
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Navigation
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show help and available commands",
		Usage:       "/help [command]",
		Args: []ArgDef{
			{Name: "command", Type: ArgTypeString, Description: "Command to explain"},
		},
		Category: "Navigation",
		Handler:  handleHelp,
	})
	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit shraga",
		Category:    "Navigation",
		Handler:     handleQuit,
	})

	// Sessions
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new session on a flow",
		Usage:       "/new [flow] [key=value ...]",
		Args: []ArgDef{
			{Name: "flow", Type: ArgTypeFlow, Description: "Flow to use"},
		},
		Category: "Sessions",
		Handler:  handleNew,
	})
	r.Register(&Command{
		Name:        "/sessions",
		Aliases:     []string{"/ls"},
		Description: "List sessions grouped by date",
		Category:    "Sessions",
		Handler:     handleSessions,
	})
	r.Register(&Command{
		Name:        "/select",
		Aliases:     []string{"/open"},
		Description: "Switch to another session",
		Usage:       "/select <session>",
		Args: []ArgDef{
			{Name: "session", Required: true, Type: ArgTypeSession, Description: "Session ID or prefix"},
		},
		Category: "Sessions",
		Handler:  handleSelect,
	})
	r.Register(&Command{
		Name:        "/remove",
		Aliases:     []string{"/rm"},
		Description: "Delete a session",
		Usage:       "/remove <session>",
		Args: []ArgDef{
			{Name: "session", Required: true, Type: ArgTypeSession, Description: "Session ID or prefix"},
		},
		Category: "Sessions",
		Handler:  handleRemove,
	})
	r.Register(&Command{
		Name:        "/refresh",
		Description: "Reload history from the server",
		Category:    "Sessions",
		Handler:     handleRefresh,
	})
	r.Register(&Command{
		Name:        "/export",
		Description: "Export the current session",
		Usage:       "/export [md|json]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"md", "json"}, Description: "Export format"},
		},
		Category: "Sessions",
		Handler:  handleExport,
	})

	// Conversation
	r.Register(&Command{
		Name:        "/abort",
		Aliases:     []string{"/stop"},
		Description: "Abort the pending request",
		Category:    "Conversation",
		Handler:     handleAbort,
	})
	r.Register(&Command{
		Name:        "/feedback",
		Aliases:     []string{"/fb"},
		Description: "Rate the latest bot reply",
		Usage:       "/feedback <up|down> [comment]",
		Args: []ArgDef{
			{Name: "verdict", Required: true, Type: ArgTypeEnum, Values: []string{"up", "down"}, Description: "Thumbs up or down"},
			{Name: "comment", Type: ArgTypeString, Description: "Optional comment"},
		},
		Category: "Conversation",
		Handler:  handleFeedback,
	})
	r.Register(&Command{
		Name:        "/trace",
		Description: "Toggle diagnostic traces on bot replies",
		Category:    "Conversation",
		Handler:     handleTrace,
	})

	// Flows
	r.Register(&Command{
		Name:        "/flows",
		Description: "List available flows",
		Category:    "Flows",
		Handler:     handleFlows,
	})
	r.Register(&Command{
		Name:        "/prefs",
		Description: "Show the effective preferences of the session",
		Category:    "Flows",
		Handler:     handlePrefs,
	})
}

// =============================================================================
// COMMAND CONTEXT
// =============================================================================

// Context provides access to application state for command handlers.
type Context struct {
	// Ctx bounds network calls made by handlers.
	Ctx context.Context

	// Config provides access to application configuration
	Config *config.Config

	// Sessions is the session state owner
	Sessions *session.Manager

	// Catalog lists flows
	Catalog *flows.Catalog

	// Feedback submits verdicts; Marks holds the optimistic ones
	Feedback *feedback.Orchestrator
	Marks    *feedback.Marks

	// ExportDir receives /export output (empty = working directory)
	ExportDir string
}

// NewContext creates a new command context with the given dependencies.
func NewContext(ctx context.Context, cfg *config.Config, sessions *session.Manager, catalog *flows.Catalog, fb *feedback.Orchestrator, marks *feedback.Marks) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Ctx:      ctx,
		Config:   cfg,
		Sessions: sessions,
		Catalog:  catalog,
		Feedback: fb,
		Marks:    marks,
	}
}

// =============================================================================
// COMPLETION TYPE
// =============================================================================

// Completion represents a completion suggestion.
type Completion struct {
	// Value to insert
	Value string

	// Display text (may include formatting)
	Display string

	// Description shown alongside
	Description string

	// Score for ranking (higher = better match)
	Score int
}
