package camera

import "context"

// Device is a video input device available for scanning.
type Device struct {
	ID    string
	Label string
}

// Stream is a live decode loop over an open camera device. Decoded payloads
// arrive on Decodes; the channel closes when the device is released or the
// underlying decoder exits. Frames with no code in them never surface here.
type Stream interface {
	Decodes() <-chan string
	Close() error
}

// Source is the capability a camera manager needs: enumerate devices and open
// a decode stream on one. The reconciliation and dedup logic is written
// against this interface only, so tests substitute a fake and the portal can
// swap decoder backends.
type Source interface {
	Devices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, deviceID string) (Stream, error)
}
