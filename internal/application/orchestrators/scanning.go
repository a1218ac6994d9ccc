package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"courtside/internal/domain/class"
	"courtside/internal/domain/scan"
)

// CameraControl is the camera surface the scanning orchestrators depend on.
// Implementations deliver decoded QR payloads through the supplied callback
// until stopped.
type CameraControl interface {
	Start(ctx context.Context, preferredFacing string, onDecode func(token string)) error
	Stop()
}

// StartScanningInput carries input for starting a scan session.
type StartScanningInput struct {
	Class           class.Context
	PreferredFacing string
	Cooldown        time.Duration
}

// StartScanningDeps holds dependencies for StartScanning.
type StartScanningDeps struct {
	Camera       CameraControl
	Previous     *scan.Session
	GenerateID   func() string
	HandleDecode func(session *scan.Session, token string)
}

// StartScanningResult carries the newly opened session.
type StartScanningResult struct {
	Session *scan.Session
}

// ExecuteStartScanning closes any previous session, opens a fresh one with an
// empty seen set, and points the camera at it. Each start gets its own
// session so tokens scanned before a restart are accepted again.
// PRE: Class has been resolved
// POST: A new session is live and camera decodes flow into HandleDecode
func ExecuteStartScanning(ctx context.Context, input StartScanningInput, deps StartScanningDeps) (StartScanningResult, error) {
	if err := input.Class.Validate(); err != nil {
		return StartScanningResult{}, invalidInput(err.Error())
	}

	if deps.Previous != nil {
		deps.Previous.Close()
	}

	cooldown := input.Cooldown
	if cooldown <= 0 {
		cooldown = scan.DefaultCooldown
	}
	session := scan.NewSession(deps.GenerateID(), input.Class.ClassID, cooldown)

	if deps.Camera != nil {
		err := deps.Camera.Start(ctx, input.PreferredFacing, func(token string) {
			deps.HandleDecode(session, token)
		})
		if err != nil {
			session.Close()
			return StartScanningResult{}, err
		}
	}

	slog.Info("scan_event", "event", "session_started", "session_id", session.ID, "class_id", input.Class.ClassID)
	return StartScanningResult{Session: session}, nil
}

// StopScanningDeps holds dependencies for StopScanning.
type StopScanningDeps struct {
	Camera  CameraControl
	Session *scan.Session
}

// ExecuteStopScanning releases the camera and closes the session. Idempotent;
// stopping twice or stopping with no session running is a no-op.
// POST: In-flight decode responses for the closed session are discarded
func ExecuteStopScanning(deps StopScanningDeps) {
	if deps.Camera != nil {
		deps.Camera.Stop()
	}
	if deps.Session == nil || deps.Session.Closed() {
		return
	}
	deps.Session.Close()
	slog.Info("scan_event", "event", "session_stopped", "session_id", deps.Session.ID)
}
