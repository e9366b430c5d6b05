// Package devices maintains the set of available capture sources and the
// current selection. Enumeration is advisory: faults never reach callers,
// they are logged and surfaced as an empty device set.
package devices

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/scopeview/internal/events"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/stream"
)

// Kind enumerates capture source kinds.
type Kind int

// Kind definitions.
const (
	VideoInput Kind = iota + 1
)

func (k Kind) String() string {
	if k == VideoInput {
		return "video-input"
	}
	return "unknown"
}

// Descriptor describes one capture source. Identity is an opaque string
// stable across enumerations within one permission session; Label may be
// empty until permission has been granted at least once for any device.
type Descriptor struct {
	Identity string
	Label    string
	Kind     Kind
}

// Enumerator is the platform enumeration boundary.
type Enumerator interface {
	// Enumerate returns all currently available capture sources in platform
	// enumeration order. Order is deterministic per call only.
	Enumerate(ctx context.Context) ([]Descriptor, error)
}

// Registry tracks the enumerated device set and the selected identity.
// Each refresh fully replaces the prior set; selection survives a refresh
// iff the selected identity is still present.
type Registry struct {
	enum   Enumerator
	bus    *events.Bus
	logger logging.Logger

	mu       sync.RWMutex
	devices  []Descriptor
	selected string
}

// NewRegistry creates a registry with an empty device set and no selection.
func NewRegistry(enum Enumerator, bus *events.Bus) *Registry {
	return &Registry{
		enum:   enum,
		bus:    bus,
		logger: logging.GetLogger("devices"),
	}
}

// Refresh re-enumerates and replaces the device set. Enumeration faults are
// absorbed: the set becomes empty and the fault is logged, never raised.
// Reason names the trigger (startup, hotplug, label-backfill, manual).
func (r *Registry) Refresh(ctx context.Context, reason string) []Descriptor {
	found, err := r.enum.Enumerate(ctx)
	if err != nil {
		r.logger.Error("Device enumeration failed", "reason", reason, "error", err)
		found = nil
		if r.bus != nil {
			r.bus.Publish(events.FaultEvent{
				Code:      stream.FaultCodeEnumeration,
				Message:   "could not enumerate capture devices",
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
	}

	r.mu.Lock()
	r.devices = found

	// Identity continuity: keep the selection when still present, clear it
	// when the device disappeared. Auto-selection of the first device only
	// happens when nothing was selected to begin with; a cleared selection
	// stays empty until the user picks again.
	wasEmpty := r.selected == ""
	if r.selected != "" && !containsIdentity(found, r.selected) {
		r.logger.Warn("Selected device disappeared", "identity", r.selected)
		r.selected = ""
	}
	if wasEmpty && len(found) > 0 {
		r.selected = found[0].Identity
	}
	selected := r.selected
	devices := make([]Descriptor, len(found))
	copy(devices, found)
	r.mu.Unlock()

	r.logger.Info("Device set refreshed", "reason", reason, "count", len(devices), "selected", selected)
	if r.bus != nil {
		r.bus.Publish(events.DeviceDiscoveryEvent{
			Action:    reason,
			Count:     len(devices),
			Selected:  selected,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return devices
}

// List returns the current device set in enumeration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]Descriptor, len(r.devices))
	copy(devices, r.devices)
	return devices
}

// Select makes identity the current selection. Unknown identities are rejected.
func (r *Registry) Select(identity string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.Identity == identity {
			r.selected = identity
			return d, true
		}
	}
	return Descriptor{}, false
}

// Selected returns the currently selected descriptor, if any.
func (r *Registry) Selected() (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.Identity == r.selected {
			return d, true
		}
	}
	return Descriptor{}, false
}

// NeedsLabelBackfill reports whether the current set has unlabeled entries.
// Labels populate retroactively once a live stream exists, so the caller
// should Refresh with reason "label-backfill" after the first successful
// acquisition when this is true.
func (r *Registry) NeedsLabelBackfill() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.devices {
		if d.Label == "" {
			return true
		}
	}
	return false
}

func containsIdentity(devices []Descriptor, identity string) bool {
	for _, d := range devices {
		if d.Identity == identity {
			return true
		}
	}
	return false
}
