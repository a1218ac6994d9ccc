package academy

import (
	"context"
	"errors"
	"time"
)

// ScanRequest carries a decoded QR payload to the attendance-scan endpoint.
type ScanRequest struct {
	Token   string // raw decoded payload, opaque to the client
	ClassID string
	Status  string // present or late, chosen before scanning
}

// ScanResult is the backend's answer to a scan.
type ScanResult struct {
	StudentID           string
	StudentName         string
	AlreadyPresent      bool
	IsRegistered        bool
	RegistrationMessage string
	CheckedInAt         time.Time // zero when the backend omits it
}

// MarkResult is the backend's answer to a manual status set.
type MarkResult struct {
	StudentName string
	CheckedInAt time.Time
}

// RosterRow is one student in the comprehensive attendance listing.
type RosterRow struct {
	StudentID   string
	Name        string
	Email       string
	Status      string
	CheckedInAt time.Time
	// Marked is false when the backend has no attendance record for the
	// student yet; such rows render as unchecked regardless of the status
	// placeholder the backend reports.
	Marked bool
}

// ClassInfo identifies a resolved class record.
type ClassInfo struct {
	ID          string
	ClassTypeID string
	Date        string
}

// ClassType is a selectable class category.
type ClassType struct {
	ID   string
	Name string
}

// Client is the attendance surface of the remote academy API. All state and
// business rules live behind it; this module only reconciles its answers into
// local view state.
type Client interface {
	ScanAttendance(ctx context.Context, req ScanRequest) (ScanResult, error)
	MarkAttendance(ctx context.Context, classID, studentID, status string) (MarkResult, error)
	UnmarkAttendance(ctx context.Context, classID, studentID string) error
	ComprehensiveRoster(ctx context.Context, classID string) ([]RosterRow, error)
	ResolveClassByType(ctx context.Context, date, classTypeID string) (ClassInfo, error)
	ListClassTypes(ctx context.Context) ([]ClassType, error)
	CancelClass(ctx context.Context, classID string) error
}

// RejectionError is a business-rule rejection from the backend (unknown
// payload, student not enrolled, invalid status). It is user-visible and must
// not be retried.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// IsRejection reports whether err is a business-rule rejection rather than a
// transport failure.
func IsRejection(err error) bool {
	var r *RejectionError
	return errors.As(err, &r)
}
