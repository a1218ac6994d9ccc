package projections

import (
	"strings"
	"time"

	"courtside/internal/application/rosterview"
	"courtside/internal/domain/roster"
)

// GetRosterViewQuery carries query parameters. Anchor is the student the
// coach's viewport is pinned to; its position in the filtered result is
// reported back so the page can keep the row in view across resorts.
type GetRosterViewQuery struct {
	Search string
	Anchor string // student ID, optional
}

// RosterRowView is one roster entry shaped for display.
type RosterRowView struct {
	StudentID      string
	Name           string
	Email          string
	Status         string
	Label          string // display label, "Already Present" for repeat scans
	CheckedInAt    time.Time
	AlreadyPresent bool
}

// GetRosterViewResult carries the query result.
type GetRosterViewResult struct {
	Rows        []RosterRowView
	Total       int // entry count before filtering
	AnchorIndex int // position of Anchor in Rows, -1 when absent
}

// GetRosterViewDeps holds dependencies for GetRosterView.
type GetRosterViewDeps struct {
	Roster *rosterview.View
}

// QueryGetRosterView shapes the current roster for display: filtered by the
// search term, already sorted by status, with the anchor row located.
// POST: Rows keep the view's status order; filtering never reorders
func QueryGetRosterView(query GetRosterViewQuery, deps GetRosterViewDeps) GetRosterViewResult {
	entries := deps.Roster.Snapshot()
	term := strings.TrimSpace(query.Search)

	result := GetRosterViewResult{Total: len(entries), AnchorIndex: -1}
	for _, e := range entries {
		if term != "" && !e.Matches(term) {
			continue
		}
		if e.StudentID == query.Anchor {
			result.AnchorIndex = len(result.Rows)
		}
		result.Rows = append(result.Rows, rowView(e))
	}
	return result
}

func rowView(e roster.Entry) RosterRowView {
	return RosterRowView{
		StudentID:      e.StudentID,
		Name:           e.Name,
		Email:          e.Email,
		Status:         string(e.Status),
		Label:          e.Label(),
		CheckedInAt:    e.CheckedInAt,
		AlreadyPresent: e.AlreadyPresent,
	}
}
