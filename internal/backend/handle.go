package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/smazurov/scopeview/internal/capture"
	"github.com/smazurov/scopeview/internal/stream"
)

const fallbackFrameInterval = 33 * time.Millisecond

// deviceHandle wraps one open capture device. It satisfies the stream
// handle contract plus the frame and chunk source contracts the capture
// bridge probes for.
type deviceHandle struct {
	identity string
	label    string

	mu      sync.Mutex
	vc      *gocv.VideoCapture
	stopped bool
}

func newHandle(identity, label string, vc *gocv.VideoCapture) *deviceHandle {
	return &deviceHandle{identity: identity, label: label, vc: vc}
}

func (h *deviceHandle) Identity() string { return h.identity }

func (h *deviceHandle) Settings() (stream.TrackSettings, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return stream.TrackSettings{}, fmt.Errorf("handle for %s is stopped", h.identity)
	}

	return stream.TrackSettings{
		Live:        true,
		Enabled:     true,
		Width:       int(h.vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(h.vc.Get(gocv.VideoCaptureFrameHeight)),
		FrameRate:   h.vc.Get(gocv.VideoCaptureFPS),
		SourceLabel: h.label,
	}, nil
}

func (h *deviceHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	h.vc.Close()
}

// verify reads one frame to confirm the device actually delivers video.
func (h *deviceHandle) verify() error {
	mat := gocv.NewMat()
	defer mat.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return fmt.Errorf("handle for %s is stopped", h.identity)
	}
	if ok := h.vc.Read(&mat); !ok || mat.Empty() {
		return fmt.Errorf("read returned no frame")
	}
	return nil
}

// CaptureFrame reads the current frame and converts it to RGBA.
func (h *deviceHandle) CaptureFrame(ctx context.Context) (*capture.RawFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, fmt.Errorf("handle for %s is stopped", h.identity)
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := h.vc.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("failed to read frame from %s", h.identity)
	}

	rgba := gocv.NewMat()
	defer rgba.Close()
	gocv.CvtColor(mat, &rgba, gocv.ColorBGRToRGBA)

	pix := make([]byte, len(rgba.ToBytes()))
	copy(pix, rgba.ToBytes())

	return &capture.RawFrame{
		Width:  rgba.Cols(),
		Height: rgba.Rows(),
		Stride: rgba.Cols() * 4,
		Pix:    pix,
	}, nil
}

// ReadChunk delivers the next frame as a JPEG chunk, paced at the device
// frame rate. Recordings assembled from these chunks are motion JPEG.
func (h *deviceHandle) ReadChunk(ctx context.Context) ([]byte, error) {
	interval := fallbackFrameInterval
	h.mu.Lock()
	if !h.stopped {
		if fps := h.vc.Get(gocv.VideoCaptureFPS); fps > 0 {
			interval = time.Duration(float64(time.Second) / fps)
		}
	}
	h.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(interval):
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, fmt.Errorf("handle for %s is stopped", h.identity)
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := h.vc.Read(&mat); !ok || mat.Empty() {
		return nil, fmt.Errorf("failed to read frame from %s", h.identity)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	chunk := make([]byte, len(buf.GetBytes()))
	copy(chunk, buf.GetBytes())
	return chunk, nil
}
