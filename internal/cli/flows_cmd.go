// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// flows_cmd.go - Flow catalog listing.
//
// Usage:
//
//	shraga flows            List flows; the default flow is starred
//	shraga flows <id>       Show one flow and its preferences

package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/util"
)

// HandleFlows handles "shraga flows".
func HandleFlows(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	rctx, cancel := app.requestContext(ctx)
	defer cancel()

	list, err := app.Catalog.Refresh(rctx)
	if err != nil {
		return err
	}
	defaultID := ""
	if cfg, err := app.Catalog.Configs(rctx); err == nil {
		defaultID, _ = cfg.SingleDefaultFlow()
	} else {
		app.Logger.Debug("ui configs unavailable", "error", err)
	}

	if id := p.Subcommand(); id != "" {
		flow, ok := app.Catalog.Lookup(id)
		if !ok {
			return NewNotFoundError("flow", id)
		}
		if jsonMode {
			return NewJSONResponse("flows", flowData(flow, defaultID)).Write(app.Out)
		}
		printFlow(app, flow)
		return nil
	}

	if jsonMode {
		rows := make([]FlowData, 0, len(list))
		for _, f := range list {
			rows = append(rows, flowData(f, defaultID))
		}
		return NewJSONResponse("flows", rows).Write(app.Out)
	}
	printFlows(app, list, defaultID)
	return nil
}

func flowData(f model.Flow, defaultID string) FlowData {
	return FlowData{
		ID:          f.ID,
		Description: f.Description,
		Preferences: model.ResolvePreferences(f.Preferences),
		Default:     f.ID == defaultID,
	}
}

// printFlows prints one line per flow. defaultID is starred.
func printFlows(app *App, list []model.Flow, defaultID string) {
	if len(list) == 0 {
		app.println(DimStyle.Render("No flows available."))
		return
	}
	sorted := append([]model.Flow(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, f := range sorted {
		mark := " "
		if f.ID == defaultID {
			mark = "*"
		}
		app.printf("%s %-20s %s\n", mark, f.ID, DimStyle.Render(util.TruncateWidth(util.FirstLine(f.Description), 56)))
	}
}

func printFlow(app *App, f model.Flow) {
	app.println(TitleStyle.Render(f.ID))
	if f.Description != "" {
		app.println(WrapText(f.Description, 0))
	}
	if len(f.Preferences) == 0 {
		return
	}
	app.println(SectionStyle.Render("Preferences"))
	names := make([]string, 0, len(f.Preferences))
	for name := range f.Preferences {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := f.Preferences[name]
		line := fmt.Sprintf("  %s = %v", name, spec.Default)
		if spec.Type != "" {
			line += DimStyle.Render(" (" + spec.Type + ")")
		}
		if spec.Required {
			line += WarningStyle.Render(" required")
		}
		app.println(line)
		if spec.Description != "" {
			app.println("    " + DimStyle.Render(spec.Description))
		}
	}
}
