package camera

import (
	"context"
	"sync"
)

// FakeSource is an in-memory Source for tests and development without a
// camera. Decodes are injected with Emit.
type FakeSource struct {
	mu         sync.Mutex
	devices    []Device
	devicesErr error
	openErr    error
	stream     *FakeStream
	opens      int
}

// NewFakeSource creates a fake source exposing the given devices.
func NewFakeSource(devices ...Device) *FakeSource {
	return &FakeSource{devices: devices}
}

// FailDevices makes Devices return err.
func (f *FakeSource) FailDevices(err error) {
	f.mu.Lock()
	f.devicesErr = err
	f.mu.Unlock()
}

// FailOpen makes Open return err.
func (f *FakeSource) FailOpen(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

// Devices implements Source.
func (f *FakeSource) Devices(_ context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	return append([]Device(nil), f.devices...), nil
}

// Open implements Source. The previous stream, if any, is abandoned.
func (f *FakeSource) Open(_ context.Context, deviceID string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	f.stream = &FakeStream{DeviceID: deviceID, decodes: make(chan string, 16)}
	return f.stream, nil
}

// Opens returns how many streams have been opened.
func (f *FakeSource) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// LastStream returns the most recently opened stream.
func (f *FakeSource) LastStream() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stream
}

// Emit injects a decoded payload into the most recently opened stream.
// PRE: Open has been called
func (f *FakeSource) Emit(text string) {
	f.mu.Lock()
	stream := f.stream
	f.mu.Unlock()
	if stream != nil {
		stream.Emit(text)
	}
}

// FakeStream is the Stream produced by FakeSource.
type FakeStream struct {
	DeviceID string

	mu      sync.Mutex
	decodes chan string
	closed  bool
}

// Decodes implements Stream.
func (s *FakeStream) Decodes() <-chan string {
	return s.decodes
}

// Emit delivers one decoded payload; dropped if the stream is closed.
func (s *FakeStream) Emit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.decodes <- text
}

// Close implements Stream; safe to call repeatedly.
func (s *FakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.decodes)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
