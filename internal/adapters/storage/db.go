package storage

import (
	"database/sql"
	"fmt"
)

// InitDB initializes the local journal schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// The journal is device-local history only; the roster itself lives
	// behind the academy API and is never stored here.
	schema := `
	CREATE TABLE IF NOT EXISTS scan_journal (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL,
		token TEXT NOT NULL DEFAULT '',
		student_id TEXT NOT NULL DEFAULT '',
		student_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scan_journal_class ON scan_journal(class_id, recorded_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
