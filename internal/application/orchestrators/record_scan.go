package orchestrators

import (
	"context"
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

// ScanAPI defines the academy client surface needed to record a scan.
type ScanAPI interface {
	ScanAttendance(ctx context.Context, req academy.ScanRequest) (academy.ScanResult, error)
}

// JournalStore defines the journal interface needed by attendance orchestrators.
type JournalStore interface {
	Append(ctx context.Context, entry domainJournal.Entry) error
}

// RecordScanInput carries input for the scan reconciliation orchestrator.
type RecordScanInput struct {
	Token         string        // raw decoded payload, opaque to the client
	DesiredStatus roster.Status // present or late, chosen before scanning
}

// RecordScanDeps holds dependencies for RecordScan.
type RecordScanDeps struct {
	Session    *scan.Session
	Class      class.Context
	Academy    ScanAPI
	Roster     *rosterview.View
	Journal    JournalStore  // optional: nil skips journaling
	Notices    *notice.Board // optional: nil skips notices
	Now        func() time.Time
	GenerateID func() string
}

// RecordScanResult carries the outcome of one decoded payload.
type RecordScanResult struct {
	Dropped        bool // duplicate or throttled, nothing was sent
	Stale          bool // confirmed server-side but the session ended first
	AlreadyPresent bool
	StudentID      string
	StudentName    string
	Status         roster.Status
	CheckedInAt    time.Time

	// Registration standing reported alongside the mark, e.g. an expired
	// package. The scan still counts; the operator sees the warning.
	Registered          bool
	RegistrationMessage string
}

// ExecuteRecordScan turns an accepted decoded payload into a server-confirmed
// roster update. Duplicates and payloads inside the cooldown window are
// dropped silently before any network traffic.
// PRE: Session and Class belong together; DesiredStatus is present or late
// POST: On success the roster reflects the server's answer and, for a fresh
// mark, a notice is published; on failure the roster is untouched
// INVARIANT: A payload scanned twice in one session sends exactly one request
func ExecuteRecordScan(ctx context.Context, input RecordScanInput, deps RecordScanDeps) (RecordScanResult, error) {
	if input.DesiredStatus != roster.StatusPresent && input.DesiredStatus != roster.StatusLate {
		return RecordScanResult{}, invalidInput("scans can only mark present or late")
	}
	if err := deps.Class.Validate(); err != nil {
		return RecordScanResult{}, invalidInput(err.Error())
	}

	now := deps.Now()
	if !deps.Session.Accept(input.Token, now) {
		return RecordScanResult{Dropped: true}, nil
	}

	result, err := deps.Academy.ScanAttendance(ctx, academy.ScanRequest{
		Token:   input.Token,
		ClassID: deps.Class.ClassID,
		Status:  string(input.DesiredStatus),
	})
	if err != nil {
		if academy.IsRejection(err) {
			// The backend knows this payload is bad; keep the token blocked so
			// the same code does not spam rejections every cooldown.
			slog.Warn("scan_event", "event", "scan_rejected", "class_id", deps.Class.ClassID, "error", err.Error())
			journalAppend(ctx, deps.Journal, domainJournal.Entry{
				ID:         deps.GenerateID(),
				ClassID:    deps.Class.ClassID,
				Token:      input.Token,
				Status:     string(input.DesiredStatus),
				Outcome:    domainJournal.OutcomeRejected,
				RecordedAt: now,
			})
			return RecordScanResult{}, err
		}
		// Transport failure: release the token so the next scan after the
		// cooldown is honored, and leave the roster alone.
		deps.Session.Forget(input.Token)
		slog.Error("scan_event", "event", "scan_failed", "class_id", deps.Class.ClassID, "error", err.Error())
		return RecordScanResult{}, fmt.Errorf("failed to mark attendance: %w", err)
	}

	deps.Session.Bind(input.Token, result.StudentID)

	checkedInAt := result.CheckedInAt
	if checkedInAt.IsZero() {
		checkedInAt = deps.Now()
	}

	if deps.Session.Closed() {
		// Scanning stopped while the request was in flight. The server-side
		// mark stands; the dead session's view must not be resurrected.
		slog.Info("scan_event", "event", "scan_discarded_stale", "class_id", deps.Class.ClassID, "student_id", result.StudentID)
		return RecordScanResult{Stale: true, StudentID: result.StudentID, StudentName: result.StudentName}, nil
	}

	deps.Roster.Apply(deps.Class, rosterview.Mutation{
		StudentID:      result.StudentID,
		Name:           result.StudentName,
		Status:         input.DesiredStatus,
		CheckedInAt:    checkedInAt,
		AlreadyPresent: result.AlreadyPresent,
	})

	outcome := domainJournal.OutcomeCheckedIn
	if result.AlreadyPresent {
		outcome = domainJournal.OutcomeAlreadyPresent
	} else if deps.Notices != nil {
		deps.Notices.Publish(deps.GenerateID(), result.StudentName, string(input.DesiredStatus), now)
	}

	journalAppend(ctx, deps.Journal, domainJournal.Entry{
		ID:          deps.GenerateID(),
		ClassID:     deps.Class.ClassID,
		Token:       input.Token,
		StudentID:   result.StudentID,
		StudentName: result.StudentName,
		Status:      string(input.DesiredStatus),
		Outcome:     outcome,
		RecordedAt:  now,
	})

	slog.Info("scan_event", "event", "scan_recorded", "class_id", deps.Class.ClassID, "student_id", result.StudentID, "status", input.DesiredStatus, "already_present", result.AlreadyPresent)

	return RecordScanResult{
		AlreadyPresent:      result.AlreadyPresent,
		StudentID:           result.StudentID,
		StudentName:         result.StudentName,
		Status:              input.DesiredStatus,
		CheckedInAt:         checkedInAt,
		Registered:          result.IsRegistered,
		RegistrationMessage: result.RegistrationMessage,
	}, nil
}

// journalAppend best-effort appends to the local journal; a journaling
// failure never fails the attendance flow.
func journalAppend(ctx context.Context, store JournalStore, entry domainJournal.Entry) {
	if store == nil {
		return
	}
	if err := store.Append(ctx, entry); err != nil {
		slog.Warn("scan_event", "event", "journal_append_failed", "error", err.Error())
	}
}
