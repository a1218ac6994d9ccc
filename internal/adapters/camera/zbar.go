package camera

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ZbarSource captures from V4L devices by shelling out to zbarcam, which
// streams one decoded payload per line in --raw mode. It is the production
// Source for kiosk installs where the portal host owns the camera; browser
// clients decode on their side and push payloads over HTTP instead.
type ZbarSource struct {
	// Binary overrides the decoder executable. Defaults to "zbarcam".
	Binary string
}

// Devices enumerates V4L video devices.
// POST: Returns ErrNoCamera when no /dev/video* node exists
func (z *ZbarSource) Devices(ctx context.Context) ([]Device, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil || len(paths) == 0 {
		return nil, ErrNoCamera
	}

	devices := make([]Device, 0, len(paths))
	for _, p := range paths {
		devices = append(devices, Device{ID: p, Label: deviceLabel(p)})
	}
	return devices, nil
}

// deviceLabel reads the driver-reported card name from sysfs, falling back
// to the device path.
func deviceLabel(devicePath string) string {
	name := filepath.Base(devicePath)
	raw, err := os.ReadFile(filepath.Join("/sys/class/video4linux", name, "name"))
	if err != nil {
		return devicePath
	}
	label := strings.TrimSpace(string(raw))
	if label == "" {
		return devicePath
	}
	return label
}

// Open starts a zbarcam process against the device and streams its decodes.
// POST: Returns ErrUnsupported when zbarcam is not installed and
// ErrPermissionDenied when the device node refuses access
func (z *ZbarSource) Open(ctx context.Context, deviceID string) (Stream, error) {
	binary := z.Binary
	if binary == "" {
		binary = "zbarcam"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, ErrUnsupported
	}

	// Probe the device node up front so a permission problem surfaces as a
	// typed error instead of a decoder exit.
	if f, err := os.OpenFile(deviceID, os.O_RDONLY, 0); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, ErrPermissionDenied
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCamera
		}
		return nil, err
	} else {
		f.Close()
	}

	cmd := exec.CommandContext(ctx, binary, "--raw", "--nodisplay", deviceID)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	stream := &zbarStream{cmd: cmd, decodes: make(chan string), done: make(chan struct{})}
	go func() {
		defer close(stream.decodes)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			// The receiver may stop consuming before the process dies; a
			// bare send would pin this goroutine forever.
			select {
			case stream.decodes <- line:
			case <-stream.done:
				return
			}
		}
	}()
	return stream, nil
}

type zbarStream struct {
	cmd     *exec.Cmd
	decodes chan string
	done    chan struct{}
	once    sync.Once
}

func (s *zbarStream) Decodes() <-chan string {
	return s.decodes
}

// Close kills the decoder process and reaps it. The decode channel closes
// once the reader goroutine sees the closed stdout or the done signal.
func (s *zbarStream) Close() error {
	s.once.Do(func() { close(s.done) })
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}
