// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Chat history commands.
//
// Usage:
//
//	shraga history [list]                  List sessions grouped by date
//	shraga history show <id>               Print one transcript
//	shraga history delete <id> [--confirm] Delete a session
//	shraga history export <id> [--format md|json] [--output DIR]
//	shraga history analytics [--since D] [--until D]
//	shraga history stats [--since D] [--until D]
//
// Session references may be a unique ID prefix.

package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/export"
	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/util"
)

// analyticsDefaultRange is how far back analytics look without --since.
const analyticsDefaultRange = 7 * 24 * time.Hour

// now is replaced in tests.
var now = time.Now

// HandleHistory handles "shraga history".
func HandleHistory(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw, "confirm", "json", "trace")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch p.Subcommand() {
	case "", "list", "ls":
		return historyList(ctx, app, jsonMode)
	case "show", "view":
		return historyShow(ctx, app, p, jsonMode)
	case "delete", "rm":
		return historyDelete(ctx, app, p, jsonMode)
	case "export":
		return historyExport(ctx, app, p, jsonMode)
	case "analytics":
		return historyAnalytics(ctx, app, p, jsonMode)
	case "stats", "statistics":
		return historyStats(ctx, app, p, jsonMode)
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(),
			"unknown history subcommand", "shraga history list|show|delete|export|analytics|stats")
	}
}

// fetchHistory loads the caller's sessions, most recent first.
func fetchHistory(ctx context.Context, app *App) ([]model.Session, error) {
	rctx, cancel := app.requestContext(ctx)
	defer cancel()
	sessions, err := app.History.Fetch(rctx)
	if err != nil {
		return nil, err
	}
	model.SortByRecency(sessions)
	return sessions, nil
}

// findSession resolves ref to a session by exact ID or unique prefix.
func findSession(sessions []model.Session, ref string) (model.Session, error) {
	if ref == "" {
		return model.Session{}, ErrMissingArgument("id", "shraga history show <id>")
	}
	var matches []model.Session
	for _, s := range sessions {
		if s.ID == ref {
			return s, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return model.Session{}, NewNotFoundError("session", ref)
	case 1:
		return matches[0], nil
	default:
		return model.Session{}, NewValidationError("id", ref,
			fmt.Sprintf("ambiguous, matches %d sessions", len(matches)))
	}
}

// =============================================================================
// LIST / SHOW
// =============================================================================

func historyList(ctx context.Context, app *App, jsonMode bool) error {
	sessions, err := fetchHistory(ctx, app)
	if err != nil {
		return err
	}
	groups := model.GroupByDate(sessions, now())

	if jsonMode {
		rows := []SessionSummary{}
		for _, g := range groups {
			for _, s := range g.Sessions {
				rows = append(rows, summarize(s, g.Label))
			}
		}
		return NewJSONResponse("history list", rows).Write(app.Out)
	}

	if len(sessions) == 0 {
		app.println(DimStyle.Render("No sessions yet."))
		return nil
	}
	printGroups(app, groups, "")
	return nil
}

func summarize(s model.Session, group string) SessionSummary {
	return SessionSummary{
		ID:        s.ID,
		Title:     util.FirstLine(s.Title()),
		FlowID:    s.Flow.ID,
		Group:     group,
		Messages:  len(s.Messages),
		UpdatedAt: s.LastActivity(),
	}
}

// printGroups prints sessions under their date labels. The selected
// session is marked with an asterisk.
func printGroups(app *App, groups []model.DateGroup, selectedID string) {
	for _, g := range groups {
		app.println(SectionStyle.Render(g.Label))
		for _, s := range g.Sessions {
			mark := " "
			if s.ID == selectedID {
				mark = "*"
			}
			app.printf("%s %s  %-12s %s\n", mark, DimStyle.Render(shortID(s.ID)),
				util.TruncateWidth(s.Flow.ID, 12), util.TruncateWidth(util.FirstLine(s.Title()), 50))
		}
	}
}

func historyShow(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	sessions, err := fetchHistory(ctx, app)
	if err != nil {
		return err
	}
	s, err := findSession(sessions, p.Positional(1))
	if err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("history show", s).Write(app.Out)
	}
	printTranscript(app, s)
	return nil
}

// =============================================================================
// DELETE / EXPORT
// =============================================================================

func historyDelete(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	sessions, err := fetchHistory(ctx, app)
	if err != nil {
		return err
	}
	s, err := findSession(sessions, p.Positional(1))
	if err != nil {
		return err
	}

	ok, err := RequireConfirmation(fmt.Sprintf("delete session %q", util.TruncateWidth(s.Title(), 40)),
		ConfirmationOptions{ConfirmFlag: p.BoolFlag("confirm"), JSONMode: jsonMode, Out: app.Out})
	if err != nil {
		return err
	}
	if !ok {
		app.println("Cancelled.")
		return nil
	}

	rctx, cancel := app.requestContext(ctx)
	defer cancel()
	if err := app.History.Remove(rctx, s.ID); err != nil {
		return NewCommandError("history", "delete", s.ID, err)
	}

	if jsonMode {
		return NewJSONResponse("history delete", map[string]string{"id": s.ID}).Write(app.Out)
	}
	app.printf("%s Deleted %s\n", SuccessStyle.Render("[OK]"), s.ID)
	return nil
}

func historyExport(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	format := strings.ToLower(p.FirstFlag("format", "f"))
	if format == "" {
		format = "md"
	}
	opts := export.DefaultOptions()
	opts.IncludeTrace = app.Config.UI.ShowTrace || p.BoolFlag("trace")
	if dir := p.FirstFlag("output", "o"); dir != "" {
		opts.OutputDir = dir
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return ErrUnsupportedFormat(format, []string{"md", "json"})
	}

	sessions, err := fetchHistory(ctx, app)
	if err != nil {
		return err
	}
	s, err := findSession(sessions, p.Positional(1))
	if err != nil {
		return err
	}

	path, err := export.ToFile(s, exporter, opts)
	if err != nil {
		return NewCommandError("history", "export", s.ID, err)
	}
	if jsonMode {
		return NewJSONResponse("history export", map[string]string{"id": s.ID, "path": path}).Write(app.Out)
	}
	app.printf("%s Exported to %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

// =============================================================================
// ANALYTICS
// =============================================================================

// dateRange reads --since and --until. Without --since the range starts
// seven days ago.
func dateRange(p *ArgParser) (api.DateRange, error) {
	since, err := p.FlagDate("since")
	if err != nil {
		return api.DateRange{}, err
	}
	until, err := p.FlagDate("until")
	if err != nil {
		return api.DateRange{}, err
	}
	if since.IsZero() {
		since = now().Add(-analyticsDefaultRange)
	}
	if !until.IsZero() && until.Before(since) {
		return api.DateRange{}, NewValidationError("until", until.Format(DateLayout), "is before --since")
	}
	return api.DateRange{Start: since, End: until}, nil
}

// AnalyticsRow is one session of `history analytics`.
type AnalyticsRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	FlowID    string    `json:"flow_id"`
	Timestamp time.Time `json:"timestamp"`
	Questions int       `json:"questions"`
	Answers   int       `json:"answers"`
	ThumbsUp  int       `json:"thumbs_up"`
	ThumbsDn  int       `json:"thumbs_down"`
	Title     string    `json:"title"`
}

func analyticsRow(s model.Session) AnalyticsRow {
	row := AnalyticsRow{
		ID:        s.ID,
		UserID:    s.UserID,
		FlowID:    s.Flow.ID,
		Timestamp: s.Timestamp,
		Title:     util.FirstLine(s.Title()),
	}
	for _, m := range s.Messages {
		// Records from the analytics index carry positions but not always
		// a reliable type; odd positions are bot replies.
		if m.BotByPosition() || (m.Position == nil && m.IsSystem()) {
			row.Answers++
		} else {
			row.Questions++
		}
		switch m.Feedback {
		case model.VerdictThumbsUp:
			row.ThumbsUp++
		case model.VerdictThumbsDown:
			row.ThumbsDn++
		}
	}
	return row
}

func historyAnalytics(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	r, err := dateRange(p)
	if err != nil {
		return err
	}

	rctx, cancel := app.requestContext(ctx)
	defer cancel()
	records, err := app.Client.AnalyticsHistory(rctx, r)
	if err != nil {
		return err
	}

	sessions := model.NormalizeRecords(records)
	model.SortByRecency(sessions)
	rows := make([]AnalyticsRow, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, analyticsRow(s))
	}

	if jsonMode {
		return NewJSONResponse("history analytics", rows).Write(app.Out)
	}

	app.println(TitleStyle.Render(fmt.Sprintf("Sessions since %s", r.Start.Format(DateLayout))))
	if len(rows) == 0 {
		app.println(DimStyle.Render("No sessions in range."))
		return nil
	}
	for _, row := range rows {
		app.printf("%s  %-16s %-12s %2dq %2da  +%d -%d  %s\n",
			DimStyle.Render(shortID(row.ID)),
			util.TruncateWidth(row.UserID, 16),
			util.TruncateWidth(row.FlowID, 12),
			row.Questions, row.Answers, row.ThumbsUp, row.ThumbsDn,
			util.TruncateWidth(row.Title, 40))
	}
	return nil
}

func historyStats(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	r, err := dateRange(p)
	if err != nil {
		return err
	}

	rctx, cancel := app.requestContext(ctx)
	defer cancel()
	stats, err := app.Client.Statistics(rctx, r)
	if err != nil {
		return err
	}

	if jsonMode {
		return NewJSONResponse("history stats", stats).Write(app.Out)
	}

	o := stats.Overall
	app.println(TitleStyle.Render("Usage"))
	app.printf("%s%d\n", RenderLabel("Chats:"), o.TotalChats)
	app.printf("%s%d\n", RenderLabel("Users:"), o.TotalUsers)
	app.printf("%s%d\n", RenderLabel("Questions:"), o.TotalMessages.User)
	app.printf("%s%d\n", RenderLabel("Answers:"), o.TotalMessages.Assistant)

	if len(stats.Daily) == 0 {
		return nil
	}
	daily := append([]api.DailyStats(nil), stats.Daily...)
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	app.println(SectionStyle.Render("Daily median"))
	app.printf("  %-12s %10s %10s %10s\n", "date", "latency", "in tok", "out tok")
	for _, d := range daily {
		app.printf("  %-12s %10.2f %10.0f %10.0f\n", d.Date,
			d.Latency["50.0"], d.InputTokens["50.0"], d.OutputTokens["50.0"])
	}
	return nil
}
