package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/scopeview/internal/events"
	"github.com/smazurov/scopeview/internal/logging"
)

// State is the negotiator lifecycle state for the current selection.
type State int

// Negotiator states.
const (
	StateIdle State = iota
	StateRequesting
	StateActive
	StateFailed
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// ErrSuperseded is returned when a newer acquisition request (or teardown)
// arrived while this one was in flight. The request's result was released;
// nothing is wrong with the stream itself.
var ErrSuperseded = errors.New("acquisition superseded by a newer request")

// Status is a read-only snapshot of the negotiator for callers to render.
type Status struct {
	State    State
	Identity string
	Profile  Profile
	Fault    string
}

// Negotiator owns the single active stream handle. It acquires streams
// through a constraint-fallback ladder and hands ownership between an old
// and new handle without ever releasing before the successor is acquired:
// some devices deny concurrent opens, but closing first loses the feed and
// races reopen failures on exclusive-access platforms. Holding two handles
// briefly is the cheaper cost.
type Negotiator struct {
	opener Opener
	bus    *events.Bus
	logger logging.Logger

	mu       sync.Mutex
	state    State
	fault    string
	active   Handle
	identity string
	profile  Profile
	gen      uint64
}

// NewNegotiator creates a negotiator in the Idle state.
func NewNegotiator(opener Opener, bus *events.Bus) *Negotiator {
	return &Negotiator{
		opener: opener,
		bus:    bus,
		logger: logging.GetLogger("stream"),
	}
}

// Acquire acquires a stream for (identity, profile). Any previously active
// handle is released only after the new one is acquired. When requests
// overlap, only the last requested pair becomes active; superseded requests
// still finish their open and then release the unwanted handle rather than
// leaking it. A nil error means this request's handle is now active.
func (n *Negotiator) Acquire(ctx context.Context, identity string, profile Profile) error {
	n.mu.Lock()
	if n.state == StateReleased {
		n.mu.Unlock()
		return ErrSuperseded
	}
	n.gen++
	gen := n.gen
	n.state = StateRequesting
	n.fault = ""
	n.identity = identity
	n.profile = profile
	n.mu.Unlock()

	n.publishState(StateRequesting, identity, profile.Name, "")

	handle, err := n.openWithFallback(ctx, identity, profile)

	n.mu.Lock()
	if gen != n.gen || n.state == StateReleased {
		// A newer request (or teardown) won while we were opening.
		// Accept the result, then immediately discard it.
		n.mu.Unlock()
		if handle != nil {
			handle.Stop()
		}
		n.logger.Debug("Discarded superseded acquisition", "identity", identity, "profile", profile.Name)
		return ErrSuperseded
	}

	if err != nil {
		prev := n.active
		n.active = nil
		n.state = StateFailed
		fault := acquisitionFaultText(identity, profile)
		n.fault = fault
		n.mu.Unlock()

		if prev != nil {
			prev.Stop()
		}
		n.logger.Error("Acquisition failed", "identity", identity, "profile", profile.Name, "error", err)
		n.publishState(StateFailed, identity, profile.Name, fault)
		n.publishFault(FaultCodeAcquisition, fault)
		return NewFault(FaultCodeAcquisition, fault, err)
	}

	prev := n.active
	n.active = handle
	n.state = StateActive
	n.mu.Unlock()

	// Release the predecessor only now that the successor holds the device.
	if prev != nil {
		prev.Stop()
	}
	n.logger.Info("Stream active", "identity", identity, "profile", profile.Name)
	n.publishState(StateActive, identity, profile.Name, "")
	return nil
}

// Refresh re-acquires the current (identity, profile) pair through the normal
// acquisition path without changing any user-visible setting.
func (n *Negotiator) Refresh(ctx context.Context) error {
	n.mu.Lock()
	identity := n.identity
	profile := n.profile
	state := n.state
	n.mu.Unlock()

	if state == StateReleased {
		return ErrSuperseded
	}
	if identity == "" {
		return NewFault(FaultCodeDeviceNotFound, "no device selected to refresh", nil)
	}
	return n.Acquire(ctx, identity, profile)
}

// Active returns the currently active handle, or nil when no stream is active.
func (n *Negotiator) Active() Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateActive {
		return nil
	}
	return n.active
}

// Status returns a snapshot of the negotiator state for rendering.
func (n *Negotiator) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Status{
		State:    n.state,
		Identity: n.identity,
		Profile:  n.profile,
		Fault:    n.fault,
	}
}

// Close releases the active handle and moves to Released. In-flight
// acquisitions observe the state change and discard their results.
func (n *Negotiator) Close() {
	n.mu.Lock()
	if n.state == StateReleased {
		n.mu.Unlock()
		return
	}
	n.gen++
	prev := n.active
	n.active = nil
	n.state = StateReleased
	n.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	n.logger.Info("Negotiator released")
	n.publishState(StateReleased, "", "", "")
}

// openWithFallback runs the constraint ladder: one attempt with the full
// profile constraints, then exactly one retry with minimal constraints.
// A second failure is terminal for this request.
func (n *Negotiator) openWithFallback(ctx context.Context, identity string, profile Profile) (Handle, error) {
	handle, err := n.opener.Open(ctx, profile.Constraints(identity))
	if err == nil {
		return handle, nil
	}

	n.logger.Warn("Full-constraint open failed, retrying with minimal constraints",
		"identity", identity, "profile", profile.Name, "error", err)

	handle, retryErr := n.opener.Open(ctx, MinimalConstraints(identity))
	if retryErr != nil {
		return nil, fmt.Errorf("full constraints: %w; minimal constraints: %w", err, retryErr)
	}
	return handle, nil
}

func acquisitionFaultText(identity string, profile Profile) string {
	return fmt.Sprintf("Could not open device %s with the %s quality settings or the compatibility fallback. The device may be in use by another application or was disconnected.", identity, profile.Name)
}

func (n *Negotiator) publishState(state State, identity, profileName, fault string) {
	if n.bus == nil {
		return
	}
	n.bus.Publish(events.StreamStateChangedEvent{
		State:     state.String(),
		Identity:  identity,
		Profile:   profileName,
		Fault:     fault,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (n *Negotiator) publishFault(code, message string) {
	if n.bus == nil {
		return
	}
	n.bus.Publish(events.FaultEvent{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
