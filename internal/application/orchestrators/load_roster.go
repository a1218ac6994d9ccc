package orchestrators

import (
	"context"
	"log/slog"

	"courtside/internal/adapters/academy"
	"courtside/internal/application/rosterview"
	"courtside/internal/domain/class"
	"courtside/internal/domain/roster"
)

// RosterAPI defines the academy client surface needed to load a roster.
type RosterAPI interface {
	ComprehensiveRoster(ctx context.Context, classID string) ([]academy.RosterRow, error)
}

// LoadRosterInput carries input for the roster load orchestrator.
type LoadRosterInput struct {
	Class class.Context
}

// LoadRosterDeps holds dependencies for LoadRoster.
type LoadRosterDeps struct {
	Academy RosterAPI
	Roster  *rosterview.View
}

// LoadRosterResult carries the loaded roster size.
type LoadRosterResult struct {
	Students int
}

// ExecuteLoadRoster fetches the comprehensive roster and replaces the local
// view wholesale. Safe to call repeatedly; the latest response wins.
// PRE: Class has been resolved
// POST: The view holds server truth for every enrolled student
func ExecuteLoadRoster(ctx context.Context, input LoadRosterInput, deps LoadRosterDeps) (LoadRosterResult, error) {
	if err := input.Class.Validate(); err != nil {
		return LoadRosterResult{}, invalidInput(err.Error())
	}

	rows, err := deps.Academy.ComprehensiveRoster(ctx, input.Class.ClassID)
	if err != nil {
		return LoadRosterResult{}, err
	}

	entries := make([]roster.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rosterEntryFromRow(row))
	}
	deps.Roster.Replace(input.Class, entries)

	slog.Info("attendance_event", "event", "roster_loaded", "class_id", input.Class.ClassID, "students", len(entries))
	return LoadRosterResult{Students: len(entries)}, nil
}

// rosterEntryFromRow maps an API row to a roster entry. Rows without an
// attendance record are unchecked no matter what placeholder status the
// backend reports for them.
func rosterEntryFromRow(row academy.RosterRow) roster.Entry {
	entry := roster.Entry{
		StudentID: row.StudentID,
		Name:      row.Name,
		Email:     row.Email,
		Status:    roster.StatusUnchecked,
	}
	if !row.Marked {
		return entry
	}
	if status := roster.Status(row.Status); status.Valid() && status != roster.StatusUnchecked {
		entry.Status = status
		entry.CheckedInAt = row.CheckedInAt
	}
	return entry
}
