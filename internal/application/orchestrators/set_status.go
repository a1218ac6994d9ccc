package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courtside/internal/adapters/academy"
	"courtside/internal/application/rosterview"
	"courtside/internal/domain/class"
	domainJournal "courtside/internal/domain/journal"
	"courtside/internal/domain/notice"
	"courtside/internal/domain/roster"
	"courtside/internal/domain/scan"
)

// ErrStudentBusy is returned when a status change for the same student is
// still in flight. The caller retries after the first change resolves.
var ErrStudentBusy = errors.New("another change for this student is still in flight")

// MarkAPI defines the academy client surface needed for manual status sets.
type MarkAPI interface {
	MarkAttendance(ctx context.Context, classID, studentID, status string) (academy.MarkResult, error)
	UnmarkAttendance(ctx context.Context, classID, studentID string) error
}

// SetStatusInput carries input for the manual status orchestrator. Setting
// StatusUnchecked unmarks the student.
type SetStatusInput struct {
	StudentID string
	Status    roster.Status
}

// SetStatusDeps holds dependencies for SetStatus.
type SetStatusDeps struct {
	Class      class.Context
	Academy    MarkAPI
	Roster     *rosterview.View
	Session    *scan.Session // optional: live scan session to release tokens on unmark
	Journal    JournalStore  // optional
	Notices    *notice.Board // optional
	Now        func() time.Time
	GenerateID func() string
}

// SetStatusResult carries the confirmed change.
type SetStatusResult struct {
	StudentName string
	Status      roster.Status
	CheckedInAt time.Time
}

// ExecuteSetStatus sets or clears a student's status without a scan: the
// Present/Late/Missing/Unmarked buttons on a roster row.
// PRE: StudentID is non-empty; Status is one of the four known statuses
// POST: Local roster mutates only after the backend acknowledges
// INVARIANT: At most one change per student is in flight at a time
func ExecuteSetStatus(ctx context.Context, input SetStatusInput, deps SetStatusDeps) (SetStatusResult, error) {
	if input.StudentID == "" {
		return SetStatusResult{}, invalidInput("student ID is required")
	}
	if !input.Status.Valid() {
		return SetStatusResult{}, invalidInput("invalid attendance status")
	}
	if err := deps.Class.Validate(); err != nil {
		return SetStatusResult{}, invalidInput(err.Error())
	}

	if !deps.Roster.Begin(input.StudentID) {
		return SetStatusResult{}, ErrStudentBusy
	}
	defer deps.Roster.End(input.StudentID)

	if input.Status == roster.StatusUnchecked {
		return executeUnmark(ctx, input.StudentID, deps)
	}

	result, err := deps.Academy.MarkAttendance(ctx, deps.Class.ClassID, input.StudentID, string(input.Status))
	if err != nil {
		if academy.IsRejection(err) {
			return SetStatusResult{}, err
		}
		slog.Error("attendance_event", "event", "mark_failed", "class_id", deps.Class.ClassID, "student_id", input.StudentID, "error", err.Error())
		return SetStatusResult{}, fmt.Errorf("failed to mark attendance: %w", err)
	}

	now := deps.Now()
	checkedInAt := result.CheckedInAt
	if checkedInAt.IsZero() {
		checkedInAt = now
	}
	name := result.StudentName
	if name == "" {
		if entry, ok := deps.Roster.Get(input.StudentID); ok {
			name = entry.Name
		}
	}

	deps.Roster.Apply(deps.Class, rosterview.Mutation{
		StudentID:   input.StudentID,
		Name:        name,
		Status:      input.Status,
		CheckedInAt: checkedInAt,
	})

	if deps.Notices != nil {
		deps.Notices.Publish(deps.GenerateID(), name, string(input.Status), now)
	}
	journalAppend(ctx, deps.Journal, domainJournal.Entry{
		ID:          deps.GenerateID(),
		ClassID:     deps.Class.ClassID,
		StudentID:   input.StudentID,
		StudentName: name,
		Status:      string(input.Status),
		Outcome:     domainJournal.OutcomeCheckedIn,
		RecordedAt:  now,
	})

	slog.Info("attendance_event", "event", "status_set", "class_id", deps.Class.ClassID, "student_id", input.StudentID, "status", input.Status)
	return SetStatusResult{StudentName: name, Status: input.Status, CheckedInAt: checkedInAt}, nil
}

// executeUnmark reverts a student to unchecked and releases their scan token
// so a subsequent re-scan is honored.
func executeUnmark(ctx context.Context, studentID string, deps SetStatusDeps) (SetStatusResult, error) {
	if err := deps.Academy.UnmarkAttendance(ctx, deps.Class.ClassID, studentID); err != nil {
		if academy.IsRejection(err) {
			return SetStatusResult{}, err
		}
		slog.Error("attendance_event", "event", "unmark_failed", "class_id", deps.Class.ClassID, "student_id", studentID, "error", err.Error())
		return SetStatusResult{}, fmt.Errorf("failed to unmark attendance: %w", err)
	}

	name := ""
	if entry, ok := deps.Roster.Get(studentID); ok {
		name = entry.Name
	}

	deps.Roster.Apply(deps.Class, rosterview.Mutation{
		StudentID: studentID,
		Status:    roster.StatusUnchecked,
	})
	if deps.Session != nil {
		deps.Session.ForgetStudent(studentID)
	}
	if deps.Notices != nil {
		deps.Notices.Publish(deps.GenerateID(), name, string(roster.StatusUnchecked), deps.Now())
	}
	journalAppend(ctx, deps.Journal, domainJournal.Entry{
		ID:          deps.GenerateID(),
		ClassID:     deps.Class.ClassID,
		StudentID:   studentID,
		StudentName: name,
		Status:      string(roster.StatusUnchecked),
		Outcome:     domainJournal.OutcomeUnmarked,
		RecordedAt:  deps.Now(),
	})

	slog.Info("attendance_event", "event", "status_unmarked", "class_id", deps.Class.ClassID, "student_id", studentID)
	return SetStatusResult{StudentName: name, Status: roster.StatusUnchecked}, nil
}
