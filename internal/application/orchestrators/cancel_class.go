package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"courtside/internal/application/rosterview"
	"courtside/internal/domain/class"
	"courtside/internal/domain/scan"
)

// CancelAPI defines the academy client surface for cancelling a class.
type CancelAPI interface {
	CancelClass(ctx context.Context, classID string) error
}

// CancelClassInput carries input for the class cancellation orchestrator.
type CancelClassInput struct {
	Class class.Context
}

// CancelClassDeps holds dependencies for CancelClass.
type CancelClassDeps struct {
	Academy CancelAPI
	Camera  CameraControl
	Session *scan.Session
	Roster  *rosterview.View
}

// ExecuteCancelClass cancels the class session on the backend and tears down
// local state tied to it. Scanning is stopped before the remote call so no
// marks land on a class that is about to disappear.
// PRE: Class has been resolved
// POST: Camera is stopped, session closed, and the roster cleared
func ExecuteCancelClass(ctx context.Context, input CancelClassInput, deps CancelClassDeps) error {
	if err := input.Class.Validate(); err != nil {
		return invalidInput(err.Error())
	}
	if deps.Roster == nil {
		return errors.New("roster view is required")
	}

	ExecuteStopScanning(StopScanningDeps{Camera: deps.Camera, Session: deps.Session})

	if err := deps.Academy.CancelClass(ctx, input.Class.ClassID); err != nil {
		return err
	}

	deps.Roster.Replace(class.Context{}, nil)

	slog.Info("attendance_event", "event", "class_cancelled", "class_id", input.Class.ClassID)
	return nil
}
