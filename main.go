// shraga - A terminal client for Shraga chat flows.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shraga-tui/internal/cli"
	"github.com/jeranaias/shraga-tui/internal/config"
	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/ui/chat"
	"github.com/jeranaias/shraga-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	if err := run(cmd, args); err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

func run(cmd cli.Command, args cli.Args) error {
	// Commands that need neither the server nor the credential store.
	switch cmd {
	case cli.CmdVersion:
		return cli.HandleVersion(os.Stdout, args)
	case cli.CmdHelp:
		return cli.HandleHelp(args)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if cmd == cli.CmdConfig {
		return cli.HandleConfig(os.Stdout, cfg, args)
	}

	if cmd == cli.CmdTUI {
		if err := cli.RequiresTTY("start the interactive UI"); err != nil {
			return err
		}
	}

	logDir, err := cfg.LogDir()
	if err != nil {
		return &cli.ConfigError{Err: err}
	}
	// The TUI owns the terminal, so its logs go to a file.
	logger, closeLog, err := logging.Setup(cfg.Logging, logDir, cmd == cli.CmdTUI)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.WatchStore(ctx); err != nil {
		logger.Warn("credential watcher unavailable", "error", err)
	}

	switch cmd {
	case cli.CmdTUI:
		return runTUI(ctx, app)
	case cli.CmdAsk:
		return cli.HandleAsk(ctx, app, args)
	case cli.CmdChat:
		return cli.HandleChat(ctx, app, args)
	case cli.CmdHistory:
		return cli.HandleHistory(ctx, app, args)
	case cli.CmdFlows:
		return cli.HandleFlows(ctx, app, args)
	case cli.CmdAuth:
		return cli.HandleAuth(ctx, app, args)
	default:
		return cli.HandleHelp(args)
	}
}

// loadConfig reads --config when given, otherwise the first config file
// found in the shraga home directory.
func loadConfig(args cli.Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &cli.ConfigError{Path: args.ConfigPath, Err: err}
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// runTUI starts the full-screen chat interface.
func runTUI(ctx context.Context, app *cli.App) error {
	user := ""
	whoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if u, err := app.Client.WhoAmI(whoCtx); err == nil {
		user = u.DisplayName
	} else {
		app.Logger.Debug("whoami failed", "error", err)
	}
	cancel()

	m := chat.New(styles.NewTheme(app.Config.UI.Theme), chat.Deps{
		Ctx:      ctx,
		Config:   app.Config,
		Sessions: app.Sessions,
		Catalog:  app.Catalog,
		Feedback: app.Feedback,
		Marks:    app.Marks,
		Logger:   app.Logger,
		User:     user,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
