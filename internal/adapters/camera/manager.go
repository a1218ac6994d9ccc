package camera

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Camera error taxonomy. All three are terminal for the Start attempt that
// raised them and are surfaced with a retry affordance; none crashes an
// already running session.
var (
	ErrNoCamera         = errors.New("no camera device found")
	ErrPermissionDenied = errors.New("camera access denied")
	ErrUnsupported      = errors.New("camera capture is not supported on this platform")
)

// DefaultScanRate is the decode rate in frames per second.
const DefaultScanRate = 10

// State of the camera session manager.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
)

// Manager owns at most one live camera session and runs its decode loop.
// There is no paused state: pause is Stop followed by a later Start. Starting
// while a session is running stops the old session first, so two decode loops
// never share the device.
type Manager struct {
	source   Source
	scanRate int

	mu     sync.Mutex
	state  State
	stream Stream
	gen    uint64 // bumped on every start/stop; stale loop events are discarded
}

// NewManager creates a camera session manager over the given source.
// PRE: source is non-nil; scanRate <= 0 falls back to DefaultScanRate
func NewManager(source Source, scanRate int) *Manager {
	if scanRate <= 0 {
		scanRate = DefaultScanRate
	}
	return &Manager{source: source, scanRate: scanRate}
}

// ChooseDevice picks the device whose label matches the preferred facing
// ("back" also matches "rear"), falling back to the first device.
// PRE: devices is non-empty
func ChooseDevice(devices []Device, preferredFacing string) Device {
	facing := strings.ToLower(preferredFacing)
	for _, d := range devices {
		label := strings.ToLower(d.Label)
		if facing != "" && strings.Contains(label, facing) {
			return d
		}
		if facing == "back" && strings.Contains(label, "rear") {
			return d
		}
	}
	return devices[0]
}

// Start acquires a device and begins the decode loop, invoking onDecode once
// per decoded frame. A running session is stopped first.
// PRE: onDecode is non-nil and returns quickly; slow work belongs on a
// separate goroutine so the loop keeps consuming frames
// POST: On nil error the manager is Running; on error it is Idle
func (m *Manager) Start(ctx context.Context, preferredFacing string, onDecode func(text string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateRunning {
		m.stopLocked()
	}
	m.state = StateStarting

	devices, err := m.source.Devices(ctx)
	if err != nil {
		m.state = StateIdle
		return err
	}
	if len(devices) == 0 {
		m.state = StateIdle
		return ErrNoCamera
	}

	device := ChooseDevice(devices, preferredFacing)
	stream, err := m.source.Open(ctx, device.ID)
	if err != nil {
		m.state = StateIdle
		return err
	}

	m.gen++
	m.stream = stream
	m.state = StateRunning
	slog.Info("camera_event", "event", "session_started", "device", device.ID, "label", device.Label)

	go m.decodeLoop(stream, m.gen, onDecode)
	return nil
}

// decodeLoop drains the stream, pacing emitted decodes to the scan rate and
// dropping anything that arrives after the session was superseded.
func (m *Manager) decodeLoop(stream Stream, gen uint64, onDecode func(string)) {
	minInterval := time.Second / time.Duration(m.scanRate)
	var lastEmit time.Time

	for text := range stream.Decodes() {
		if !m.current(gen) {
			return
		}
		if !lastEmit.IsZero() && time.Since(lastEmit) < minInterval {
			continue
		}
		lastEmit = time.Now()
		onDecode(text)
	}

	// Stream ended on its own (device unplugged, decoder exited). Release the
	// session if it is still ours.
	m.mu.Lock()
	if m.gen == gen && m.state == StateRunning {
		m.state = StateIdle
		m.stream = nil
		slog.Info("camera_event", "event", "stream_ended")
	}
	m.mu.Unlock()
}

// Stop tears down the decode loop and releases the device. Safe to call when
// already stopped or never started.
// POST: Manager is Idle; decode events from the old loop are discarded
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRunning {
		m.state = StateIdle
		return
	}
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	m.gen++
	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			slog.Warn("camera_event", "event", "stream_close_failed", "error", err.Error())
		}
		m.stream = nil
	}
	m.state = StateIdle
	slog.Info("camera_event", "event", "session_stopped")
}

// State returns the manager's current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}
