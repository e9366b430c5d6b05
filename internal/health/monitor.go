// Package health samples the active stream at a fixed cadence and reports
// liveness, resolution and frame-rate telemetry.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/scopeview/internal/events"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/stream"
)

const defaultInterval = time.Second

// HandleSource provides the active handle, or nil when none is active.
type HandleSource interface {
	Active() stream.Handle
}

// Monitor runs a periodic sampling loop scoped to the active stream: the
// loop starts when the negotiator reports an active handle and is cancelled
// deterministically when the handle leaves the active state. A failed sample
// skips one tick and is never retried.
type Monitor struct {
	src      HandleSource
	bus      *events.Bus
	logger   logging.Logger
	interval time.Duration
	metrics  *Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	latest  events.HealthSampleEvent
	present bool
	unsub   func()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the sampling period. Default is one second.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithMetrics attaches a Prometheus metric set.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// NewMonitor creates a monitor reading handles from src.
func NewMonitor(src HandleSource, bus *events.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		src:      src,
		bus:      bus,
		logger:   logging.GetLogger("health"),
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to stream state changes and manages the sampling loop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsub != nil {
		return
	}
	m.unsub = m.bus.Subscribe(func(e events.StreamStateChangedEvent) {
		if e.State == stream.StateActive.String() {
			m.startLoop(ctx)
		} else {
			m.stopLoop()
		}
	})
}

// Stop cancels the sampling loop and the state subscription.
func (m *Monitor) Stop() {
	m.mu.Lock()
	unsub := m.unsub
	m.unsub = nil
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.stopLoop()
}

// Latest returns the most recent sample for the active handle. The second
// return is false when no handle is active (explicit absent state). Absence
// is keyed on the slot, not on loop teardown: the slot empties synchronously
// on release while the state event that stops the loop is asynchronous.
func (m *Monitor) Latest() (events.HealthSampleEvent, bool) {
	if m.src.Active() == nil {
		return events.HealthSampleEvent{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.present
}

func (m *Monitor) startLoop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return // loop already running for the (replaced) active handle
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.loop(loopCtx)
	m.logger.Debug("Sampling loop started", "interval", m.interval)
}

// stopLoop cancels the loop first and clears latest second: a tick that is
// mid-sample either finished its write before the clear or sees the
// cancelled context and writes nothing.
func (m *Monitor) stopLoop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	m.mu.Lock()
	m.present = false
	m.latest = events.HealthSampleEvent{}
	m.mu.Unlock()

	if cancel != nil {
		m.metrics.clear()
		m.logger.Debug("Sampling loop stopped")
	}
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// sample takes one reading from the active handle. The handle may have been
// released between ticks; re-check liveness and skip the tick on any fault.
func (m *Monitor) sample(ctx context.Context) {
	handle := m.src.Active()
	if handle == nil {
		return
	}

	settings, err := handle.Settings()
	if err != nil {
		m.logger.Debug("Sampling failed, skipping tick", "error", err)
		m.metrics.observeSkip()
		return
	}

	sample := events.HealthSampleEvent{
		Live:        settings.Live,
		Muted:       settings.Muted,
		Enabled:     settings.Enabled,
		Width:       settings.Width,
		Height:      settings.Height,
		FrameRate:   settings.FrameRate,
		SourceLabel: settings.SourceLabel,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	// stopLoop clears latest after cancelling this context; a tick that lost
	// the race must not write the cleared state back.
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.latest = sample
	m.present = true
	m.mu.Unlock()

	m.metrics.observe(settings.Live, settings.Width, settings.Height, settings.FrameRate)
	if m.bus != nil {
		m.bus.Publish(sample)
	}
}
