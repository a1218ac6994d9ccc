package roster

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Status is a student's attendance state for one class.
type Status string

const (
	StatusUnchecked Status = "unchecked"
	StatusPresent   Status = "present"
	StatusLate      Status = "late"
	StatusMissing   Status = "missing"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnchecked, StatusPresent, StatusLate, StatusMissing:
		return true
	}
	return false
}

// rank orders statuses for display: unchecked entries first, then present,
// late, and missing.
func (s Status) rank() int {
	switch s {
	case StatusUnchecked:
		return 0
	case StatusPresent:
		return 1
	case StatusLate:
		return 2
	case StatusMissing:
		return 3
	}
	return 4
}

// Entry holds one student's attendance state for the active class.
type Entry struct {
	StudentID   string
	Name        string
	Email       string
	Status      Status
	CheckedInAt time.Time
	// AlreadyPresent marks an entry whose most recent scan found the student
	// already checked in, so the UI can label it "Already Present" instead of
	// announcing a fresh mark.
	AlreadyPresent bool
}

// Validate checks if the Entry has valid data.
// PRE: Entry struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: StudentID must not be empty; CheckedInAt is set only when checked
func (e *Entry) Validate() error {
	if e.StudentID == "" {
		return errors.New("roster entry must be associated with a student")
	}
	if !e.Status.Valid() {
		return errors.New("invalid attendance status")
	}
	if e.Status == StatusUnchecked && !e.CheckedInAt.IsZero() {
		return errors.New("unchecked entry cannot carry a check-in time")
	}
	return nil
}

// Label returns the display label for the entry's state.
// POST: Returns "Already Present" for repeat scans, else the status name
func (e *Entry) Label() string {
	if e.AlreadyPresent {
		return "Already Present"
	}
	switch e.Status {
	case StatusPresent:
		return "Present"
	case StatusLate:
		return "Late"
	case StatusMissing:
		return "Missing"
	}
	return "Unchecked"
}

// Matches reports whether the entry matches a case-insensitive substring
// search over name and email. An empty term matches everything.
func (e *Entry) Matches(term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(e.Name), term) ||
		strings.Contains(strings.ToLower(e.Email), term)
}

// Sort orders entries by status (unchecked, present, late, missing) keeping
// the prior relative order within each status group.
// PRE: entries may be nil or empty
// POST: entries is stably sorted in place
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Status.rank() < entries[j].Status.rank()
	})
}
