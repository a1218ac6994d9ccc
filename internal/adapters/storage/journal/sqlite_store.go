package journal

import (
	"context"
	"fmt"
	"time"

	"courtside/internal/adapters/storage"
	domain "courtside/internal/domain/journal"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new journal store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append persists one journal entry.
// PRE: entry has been validated
// POST: Entry is persisted
func (s *SQLiteStore) Append(ctx context.Context, entry domain.Entry) error {
	query := `INSERT INTO scan_journal (id, class_id, token, student_id, student_name, status, outcome, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.ClassID,
		entry.Token,
		entry.StudentID,
		entry.StudentName,
		entry.Status,
		entry.Outcome,
		entry.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// ListByClass returns the most recent entries for a class, newest first.
// PRE: classID is non-empty; limit <= 0 means no limit
func (s *SQLiteStore) ListByClass(ctx context.Context, classID string, limit int) ([]domain.Entry, error) {
	query := `SELECT id, class_id, token, student_id, student_name, status, outcome, recorded_at
		FROM scan_journal WHERE class_id = ? ORDER BY recorded_at DESC`
	args := []any{classID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var entry domain.Entry
		var recordedAt string
		if err := rows.Scan(
			&entry.ID,
			&entry.ClassID,
			&entry.Token,
			&entry.StudentID,
			&entry.StudentName,
			&entry.Status,
			&entry.Outcome,
			&recordedAt,
		); err != nil {
			return nil, err
		}
		entry.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteByClass removes all journal entries for a class and returns how many
// were deleted.
func (s *SQLiteStore) DeleteByClass(ctx context.Context, classID string) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM scan_journal WHERE class_id = ?", classID)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}
