package stream

import "context"

// TrackSettings are the live settings of a handle's primary video track.
// Regenerated on every read; has no identity beyond "current state of the handle".
type TrackSettings struct {
	Live        bool
	Muted       bool
	Enabled     bool
	Width       int
	Height      int
	FrameRate   float64
	SourceLabel string
}

// Handle is a live media source. The negotiator exclusively owns the active
// handle; readers (health monitor, capture bridge) must tolerate the active
// handle becoming nil or stopped between their own blocking points.
type Handle interface {
	// Identity returns the device identity this handle is bound to.
	Identity() string

	// Settings returns the primary video track's live settings.
	// Returns an error once the handle has been stopped.
	Settings() (TrackSettings, error)

	// Stop releases all underlying track resources. Idempotent.
	Stop()
}

// Opener is the platform acquisition boundary: request a capability-scoped
// video source by device identity and constraint set; receive a handle or an
// error. Opens cannot be aborted mid-flight on all platforms, so callers must
// be prepared to receive (and discard) a handle even after cancellation.
type Opener interface {
	Open(ctx context.Context, c Constraints) (Handle, error)
}
