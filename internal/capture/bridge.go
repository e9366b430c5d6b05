// Package capture snapshots frames to still artifacts and turns a stream
// into a bounded in-memory recording.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/scopeview/internal/events"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/stream"
)

const defaultMaxRecordingBytes = 256 << 20 // 256 MiB

// RawFrame is one decoded frame at the source's native pixel dimensions.
type RawFrame struct {
	Width  int
	Height int
	Stride int
	Pix    []byte // RGBA, row-major
}

// FrameSource is implemented by handles that can copy out the current
// visible frame. The copy is of the raw decoded frame: never scaled by the
// display transform and never filtered.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (*RawFrame, error)
}

// ChunkSource is implemented by handles that can produce encoded media
// chunks for recording. ReadChunk blocks until a chunk is available and
// returns the context error on cancellation.
type ChunkSource interface {
	ReadChunk(ctx context.Context) ([]byte, error)
}

// StillEncoder encodes a raw frame into a raster artifact payload.
// Encoding format is an external concern.
type StillEncoder interface {
	Encode(frame *RawFrame) (data []byte, mime string, err error)
}

// HandleSource provides the active handle, or nil when none is active.
type HandleSource interface {
	Active() stream.Handle
}

// Bridge produces still and clip artifacts from the active stream. Exactly
// one recording may be active at a time.
type Bridge struct {
	slot     HandleSource
	encoder  StillEncoder
	bus      *events.Bus
	logger   logging.Logger
	maxBytes int
	clipMIME string

	mu  sync.Mutex
	rec *recording
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMaxRecordingBytes caps the in-memory recording size. Reaching the cap
// stops accumulation; the chunks captured so far are still flushed on stop.
func WithMaxRecordingBytes(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.maxBytes = n
		}
	}
}

// WithClipMIME sets the MIME type declared on clip artifacts.
func WithClipMIME(mime string) Option {
	return func(b *Bridge) { b.clipMIME = mime }
}

// NewBridge creates a bridge reading handles from slot.
func NewBridge(slot HandleSource, encoder StillEncoder, bus *events.Bus, opts ...Option) *Bridge {
	b := &Bridge{
		slot:     slot,
		encoder:  encoder,
		bus:      bus,
		logger:   logging.GetLogger("capture"),
		maxBytes: defaultMaxRecordingBytes,
		clipMIME: "video/webm",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot copies the current visible frame into a still artifact at full
// native resolution. Returns (nil, nil) when no frame source is available.
func (b *Bridge) Snapshot(ctx context.Context) (*Artifact, error) {
	handle := b.slot.Active()
	if handle == nil {
		return nil, nil
	}
	src, ok := handle.(FrameSource)
	if !ok {
		return nil, nil
	}

	frame, err := src.CaptureFrame(ctx)
	if err != nil {
		return nil, stream.NewFault(stream.FaultCodeCapture, "could not capture a frame from the active stream", err)
	}
	// The handle may have been released while we were capturing.
	if frame == nil || b.slot.Active() == nil {
		return nil, nil
	}

	data, mime, err := b.encoder.Encode(frame)
	if err != nil {
		return nil, stream.NewFault(stream.FaultCodeCapture, "could not encode the captured frame", err)
	}

	artifact := newArtifact(ArtifactStill, mime, data)
	b.logger.Info("Snapshot captured", "width", frame.Width, "height", frame.Height, "bytes", len(data))
	b.publishArtifact(artifact)
	return artifact, nil
}

// BeginRecording starts accumulating media chunks tagged to the current
// handle. It fails when no stream is active or a recording is already
// running.
func (b *Bridge) BeginRecording(ctx context.Context) error {
	handle := b.slot.Active()
	if handle == nil {
		return stream.NewFault(stream.FaultCodeRecording, "no active stream to record", nil)
	}
	src, ok := handle.(ChunkSource)
	if !ok {
		return stream.NewFault(stream.FaultCodeRecording, "the active stream does not support recording", nil)
	}

	b.mu.Lock()
	if b.rec != nil {
		b.mu.Unlock()
		return stream.NewFault(stream.FaultCodeRecorderBusy, "a recording is already in progress", nil)
	}
	recCtx, cancel := context.WithCancel(ctx)
	rec := &recording{
		handle: handle,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	b.rec = rec
	b.mu.Unlock()

	go rec.accumulate(recCtx, src, b.slot, b.maxBytes, b.logger)
	b.logger.Info("Recording started", "identity", handle.Identity())
	return nil
}

// EndRecording stops the recording, waits for the accumulator to flush, and
// concatenates the chunks into a single clip artifact. Resolves to (nil, nil)
// when no recording was in progress or when the recording failed before
// producing any data.
func (b *Bridge) EndRecording(ctx context.Context) (*Artifact, error) {
	b.mu.Lock()
	rec := b.rec
	b.rec = nil
	b.mu.Unlock()

	if rec == nil {
		return nil, nil
	}

	rec.cancel()
	select {
	case <-rec.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	chunks, truncated, err := rec.result()
	if len(chunks) == 0 {
		if err != nil {
			// RecordingFault resolves to null rather than propagating.
			b.logger.Warn("Recording produced no data", "error", err)
		}
		return nil, nil
	}

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	payload := make([]byte, 0, total)
	for _, c := range chunks {
		payload = append(payload, c...)
	}

	artifact := newArtifact(ArtifactClip, b.clipMIME, payload)
	b.logger.Info("Recording stopped", "bytes", total, "chunks", len(chunks), "truncated", truncated)
	b.publishArtifact(artifact)
	return artifact, nil
}

// Recording reports whether a recording is currently in progress.
func (b *Bridge) Recording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rec != nil
}

func (b *Bridge) publishArtifact(a *Artifact) {
	if b.bus == nil {
		return
	}
	b.bus.Publish(events.ArtifactCreatedEvent{
		ArtifactID: a.ID,
		Kind:       string(a.Kind),
		SizeBytes:  len(a.Data),
		Timestamp:  a.CreatedAt.Format(time.RFC3339),
	})
}

// recording accumulates chunks for one BeginRecording call.
type recording struct {
	handle stream.Handle
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	chunks    [][]byte
	total     int
	truncated bool
	err       error
}

// accumulate reads chunks until cancellation, a source error, the byte cap,
// or the active handle being swapped out from under the recording.
func (r *recording) accumulate(ctx context.Context, src ChunkSource, slot HandleSource, maxBytes int, logger logging.Logger) {
	defer close(r.done)

	for {
		chunk, err := src.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("Recording chunk read failed", "error", err)
				r.mu.Lock()
				r.err = err
				r.mu.Unlock()
			}
			return
		}
		// The negotiator may have replaced the handle mid-recording.
		if slot.Active() != r.handle {
			logger.Warn("Active stream changed during recording, stopping")
			return
		}

		r.mu.Lock()
		r.chunks = append(r.chunks, chunk)
		r.total += len(chunk)
		full := r.total >= maxBytes
		if full {
			r.truncated = true
		}
		r.mu.Unlock()

		if full {
			logger.Warn("Recording reached its byte budget, stopping", "bytes", r.total)
			return
		}
	}
}

func (r *recording) result() ([][]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks, r.truncated, r.err
}
