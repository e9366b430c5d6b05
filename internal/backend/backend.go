// Package backend provides the V4L2 implementations of the enumeration and
// acquisition boundaries, built on OpenCV video capture.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/smazurov/scopeview/internal/devices"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/stream"
)

const sysVideoClass = "/sys/class/video4linux"

// Enumerator lists V4L2 capture devices from sysfs.
type Enumerator struct {
	logger logging.Logger
}

// NewEnumerator creates a sysfs-backed device enumerator.
func NewEnumerator() *Enumerator {
	return &Enumerator{logger: logging.GetLogger("backend")}
}

// Enumerate returns a descriptor per /dev/video* node, ordered by node name.
// Labels come from the sysfs name attribute and may be empty.
func (e *Enumerator) Enumerate(_ context.Context) ([]devices.Descriptor, error) {
	entries, err := os.ReadDir(sysVideoClass)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", sysVideoClass, err)
	}

	var found []devices.Descriptor
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "video") {
			continue
		}
		node := filepath.Join("/dev", name)
		if _, statErr := os.Stat(node); statErr != nil {
			continue
		}

		found = append(found, devices.Descriptor{
			Identity: node,
			Label:    readLabel(name),
			Kind:     devices.VideoInput,
		})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Identity < found[j].Identity })
	e.logger.Debug("Enumerated video devices", "count", len(found))
	return found, nil
}

func readLabel(sysName string) string {
	data, err := os.ReadFile(filepath.Join(sysVideoClass, sysName, "name"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Opener opens V4L2 devices through OpenCV video capture.
type Opener struct {
	logger logging.Logger
}

// NewOpener creates an OpenCV-backed stream opener.
func NewOpener() *Opener {
	return &Opener{logger: logging.GetLogger("backend")}
}

// Open acquires the device named by the constraint identity. Width, height
// and frame rate are applied as capture properties when present; the driver
// may settle on different values, which Settings reports.
func (o *Opener) Open(ctx context.Context, c stream.Constraints) (stream.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Identity == "" {
		return nil, fmt.Errorf("open requires a device identity")
	}

	vc, err := gocv.OpenVideoCapture(c.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.Identity, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("device %s did not open", c.Identity)
	}

	if !c.Minimal() {
		if c.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
		}
		if c.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
		}
		if c.FrameRate > 0 {
			vc.Set(gocv.VideoCaptureFPS, c.FrameRate)
		}
	}

	h := newHandle(c.Identity, readLabel(filepath.Base(c.Identity)), vc)

	// One verification read: some drivers open but never deliver frames.
	if err := h.verify(); err != nil {
		h.Stop()
		return nil, fmt.Errorf("device %s produced no frames: %w", c.Identity, err)
	}

	o.logger.Info("Opened video device",
		"identity", c.Identity,
		"minimal", c.Minimal())
	return h, nil
}
