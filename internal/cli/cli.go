// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and top-level help for shraga.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdHistory
	CmdFlows
	CmdAuth
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdHistory:
		return "history"
	case CmdFlows:
		return "flows"
	case CmdAuth:
		return "auth"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigPath string

	// Command-specific
	Flow       string
	RTL        bool
	Query      string
	Subcommand string

	// Unknown is set when the first word was not a command.
	Unknown string

	// Raw args after the command word
	Raw []string
}

const usageText = `shraga - terminal client for the Shraga chat backend

Usage:
  shraga                          Start the TUI (default)
  shraga chat [--flow ID]         Interactive line-editing chat
  shraga ask "question" [--flow ID] [--rtl]
                                  Ask a single question
  shraga history [subcommand]     Chat history
  shraga flows                    List available flows
  shraga auth [subcommand]        Credential management
  shraga config [subcommand]      Configuration
  shraga version                  Show version

History Commands:
  shraga history list             List your sessions grouped by date
  shraga history show <id>        Print a transcript
  shraga history delete <id>      Delete a session
    --confirm                     Skip the confirmation prompt
  shraga history export <id>      Export a session transcript
    --format md|json              Export format (default: md)
    --output DIR                  Output directory (default: .)
  shraga history analytics        All users' sessions (admin)
    --since YYYY-MM-DD            Start date (default: 7 days ago)
    --until YYYY-MM-DD            End date
  shraga history stats            Usage statistics (admin)
    --since YYYY-MM-DD --until YYYY-MM-DD

Auth Commands:
  shraga auth set [CREDENTIAL]    Store a credential (prompts when omitted)
    --no-verify                   Skip the server check
  shraga auth clear               Remove the stored credential
  shraga auth status              Show the credential and signed-in user

Config Commands:
  shraga config show              Effective configuration
    --format toml|json|yaml       Output format (default: toml)
  shraga config path              Config file locations
  shraga config init [--force]    Write the default config file
  shraga config set KEY VALUE     Change one setting

Global Flags:
  --config PATH                   Use a specific config file
  --json                          Output in JSON format
  -q, --quiet                     Minimal output
  -v, --verbose                   Verbose logging

Environment:
  SHRAGA_SERVER_URL               Backend base URL
  SHRAGA_AUTH                     Credential (overrides the stored one)
  SHRAGA_AUTH_STORE               Credential store path
  SHRAGA_HOME                     Config directory (default: ~/.shraga)
  SHRAGA_LOG_LEVEL                Log level (debug, info, warn, error)

Examples:
  shraga ask "What changed in release 4?" --flow docs
  shraga history export 3f2a --format json --output ./exports
  shraga auth set "Bearer eyJhbGciOi..."

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "shraga version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments and returns the command and args.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "ask", "a":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "chat", "c":
		parseAskArgs(&parsedArgs, remaining)
		return CmdChat, parsedArgs

	case "history", "hist", "sessions":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdHistory, parsedArgs

	case "flows", "flow":
		return CmdFlows, parsedArgs

	case "auth", "login":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdAuth, parsedArgs

	case "config", "cfg":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = remaining[0]
		}
		return CmdConfig, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Unknown = cmd
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// parseAskArgs parses the flags shared by ask and chat.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-f", "--flow":
			if i+1 < len(remaining) {
				i++
				args.Flow = remaining[i]
			}
		case "--rtl":
			args.RTL = true
		default:
			if strings.HasPrefix(arg, "--flow=") {
				args.Flow = strings.TrimPrefix(arg, "--flow=")
			} else if !strings.HasPrefix(arg, "-") {
				query = append(query, arg)
			}
		}
	}

	args.Query = strings.Join(query, " ")
}

// =============================================================================
// SIMPLE HANDLERS
// =============================================================================

// VersionData is the JSON form of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// HandleVersion handles the "version" command.
func HandleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	PrintVersion(w)
	return nil
}

// HandleHelp handles the "help" command and unknown commands.
func HandleHelp(args Args) error {
	if args.Unknown == "" {
		PrintUsage()
		return nil
	}
	msg := fmt.Sprintf("unknown command %q", args.Unknown)
	if s := SuggestCommand(args.Unknown); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return NewValidationErrorWithExample("command", args.Unknown, msg, "shraga help")
}
