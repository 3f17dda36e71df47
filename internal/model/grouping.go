// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Date group labels used by the history sidebar.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupLastWeek  = "Last Week"
	GroupLastMonth = "Last Month"
	GroupLastYear  = "Last Year"
	GroupEarlier   = "Earlier"
)

// DateGroup is a labelled run of sessions.
type DateGroup struct {
	Label    string
	Sessions []Session
}

// DateLabel buckets t relative to now. Weeks start on Sunday. Dates in the
// current week, month or year that are not today or yesterday are labelled
// with their month and year.
func DateLabel(t, now time.Time) string {
	t = t.In(now.Location())
	today := startOfDay(now)

	switch {
	case !t.Before(today) && t.Before(today.AddDate(0, 0, 1)):
		return GroupToday
	case !t.Before(today.AddDate(0, 0, -1)) && t.Before(today):
		return GroupYesterday
	}

	week := today.AddDate(0, 0, -int(today.Weekday()))
	if t.After(week.AddDate(0, 0, -7)) && t.Before(week) {
		return GroupLastWeek
	}

	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if t.After(month.AddDate(0, -1, 0)) && t.Before(month) {
		return GroupLastMonth
	}

	year := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	if t.After(year.AddDate(-1, 0, 0)) && t.Before(year) {
		return GroupLastYear
	}
	if t.Before(year) {
		return GroupEarlier
	}

	return t.Format("January 2006")
}

// GroupByDate buckets sessions by DateLabel, keeping the input order
// within and across groups.
func GroupByDate(sessions []Session, now time.Time) []DateGroup {
	var groups []DateGroup
	index := make(map[string]int)

	for _, s := range sessions {
		label := DateLabel(s.Timestamp, now)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, DateGroup{Label: label})
		}
		groups[i].Sessions = append(groups[i].Sessions, s)
	}
	return groups
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
