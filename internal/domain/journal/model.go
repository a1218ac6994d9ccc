package journal

import (
	"errors"
	"time"
)

// Outcomes recorded for a processed scan or manual mark.
const (
	OutcomeCheckedIn      = "checked_in"
	OutcomeAlreadyPresent = "already_present"
	OutcomeRejected       = "rejected"
	OutcomeUnmarked       = "unmarked"
)

// Entry is one line in the local scan journal: what was scanned or marked,
// who it resolved to, and how the backend answered. The journal is a local
// device history for coach review, not an attendance store — the roster stays
// server-authoritative.
type Entry struct {
	ID          string
	ClassID     string
	Token       string // raw decoded payload; empty for manual marks
	StudentID   string
	StudentName string
	Status      string
	Outcome     string
	RecordedAt  time.Time
}

// Validate checks if the Entry has valid data.
// PRE: Entry struct is initialized
// POST: Returns error if validation fails, nil otherwise
func (e *Entry) Validate() error {
	if e.ID == "" {
		return errors.New("journal entry must have an ID")
	}
	if e.ClassID == "" {
		return errors.New("journal entry must be tied to a class")
	}
	switch e.Outcome {
	case OutcomeCheckedIn, OutcomeAlreadyPresent, OutcomeRejected, OutcomeUnmarked:
	default:
		return errors.New("invalid journal outcome")
	}
	if e.RecordedAt.IsZero() {
		return errors.New("journal entry must carry a timestamp")
	}
	return nil
}
