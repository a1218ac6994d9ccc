package projections

import (
	"context"
	"time"

	domainJournal "courtside/internal/domain/journal"
)

// JournalStore defines the journal interface needed by history queries.
type JournalStore interface {
	ListByClass(ctx context.Context, classID string, limit int) ([]domainJournal.Entry, error)
}

// GetScanHistoryQuery carries query parameters.
type GetScanHistoryQuery struct {
	ClassID string
	Limit   int // <= 0 falls back to DefaultHistoryLimit
}

// DefaultHistoryLimit bounds the journal page shown on the portal.
const DefaultHistoryLimit = 50

// ScanHistoryRow is one journal line shaped for display.
type ScanHistoryRow struct {
	StudentID   string
	StudentName string
	Status      string
	Outcome     string
	RecordedAt  time.Time
}

// GetScanHistoryResult carries the query result, newest first.
type GetScanHistoryResult struct {
	Rows []ScanHistoryRow
}

// GetScanHistoryDeps holds dependencies for GetScanHistory.
type GetScanHistoryDeps struct {
	JournalStore JournalStore
}

// QueryGetScanHistory retrieves the device's scan journal for a class.
// PRE: ClassID is non-empty
// POST: Rows are newest first, at most Limit of them
func QueryGetScanHistory(ctx context.Context, query GetScanHistoryQuery, deps GetScanHistoryDeps) (GetScanHistoryResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	entries, err := deps.JournalStore.ListByClass(ctx, query.ClassID, limit)
	if err != nil {
		return GetScanHistoryResult{}, err
	}

	result := GetScanHistoryResult{Rows: make([]ScanHistoryRow, 0, len(entries))}
	for _, e := range entries {
		result.Rows = append(result.Rows, ScanHistoryRow{
			StudentID:   e.StudentID,
			StudentName: e.StudentName,
			Status:      e.Status,
			Outcome:     e.Outcome,
			RecordedAt:  e.RecordedAt,
		})
	}
	return result, nil
}
