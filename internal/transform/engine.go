// Package transform computes the renderable geometric transform (scale plus
// clamped translation) and the parametrized convolution kernels from
// continuous user inputs. It is independent of the stream: consumers apply
// the emitted descriptor to the rendering surface.
package transform

import (
	"sync"
	"time"

	"github.com/smazurov/scopeview/internal/events"
)

const defaultMaxScale = 5.0

// ViewportFunc reports the unscaled element box of the rendering surface.
// Pan fractions are defined against the element's intrinsic size, never the
// visually scaled box, so the measurement is injected rather than derived.
type ViewportFunc func() (width, height float64)

// Pan is a translation in fractions of the unscaled viewport dimensions.
type Pan struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FilterParams are the continuous filter intensities in [0,100].
type FilterParams struct {
	Sharpen float64 `json:"sharpen"`
	Emboss  float64 `json:"emboss"`
}

// Descriptor is the composed transform emitted to the rendering surface.
// Consumers treat it as immutable per revision.
type Descriptor struct {
	Revision      uint64       `json:"revision"`
	Scale         float64      `json:"scale"`
	Pan           Pan          `json:"pan"`
	Filters       FilterParams `json:"filters"`
	SharpenKernel Kernel       `json:"sharpen_kernel"`
	EmbossKernel  Kernel       `json:"emboss_kernel"`
}

// Engine holds the transform state and recomputes the descriptor whenever
// any input changes. Invariant: scale == 1 implies pan == {0,0} exactly.
type Engine struct {
	viewport ViewportFunc
	bus      *events.Bus
	maxScale float64

	mu       sync.Mutex
	scale    float64
	pan      Pan
	filters  FilterParams
	revision uint64

	dragging bool
	dragRefX float64
	dragRefY float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxScale overrides the magnification ceiling. Default is 5.
func WithMaxScale(max float64) Option {
	return func(e *Engine) {
		if max >= 1 {
			e.maxScale = max
		}
	}
}

// WithBus publishes a TransformChangedEvent on every revision.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// NewEngine creates an engine at scale 1 with centered pan.
func NewEngine(viewport ViewportFunc, opts ...Option) *Engine {
	e := &Engine{
		viewport: viewport,
		maxScale: defaultMaxScale,
		scale:    1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxScale returns the configured magnification ceiling.
func (e *Engine) MaxScale() float64 {
	return e.maxScale
}

// SetScale clamps s to [1, maxScale]. Setting scale to exactly 1 resets pan
// to {0,0} unconditionally; otherwise the stored pan is re-clamped to the
// bounds implied by the new scale.
func (e *Engine) SetScale(s float64) Descriptor {
	e.mu.Lock()
	if s < 1 {
		s = 1
	} else if s > e.maxScale {
		s = e.maxScale
	}
	e.scale = s
	if s == 1 {
		e.pan = Pan{}
	} else {
		e.pan = clampPan(e.pan, s)
	}
	return e.bumpLocked()
}

// SetPan sets an absolute pan, clamped per axis to [-maxPan, maxPan] with
// maxPan = (scale-1)/2. At scale <= 1 any pan request is a no-op.
func (e *Engine) SetPan(x, y float64) Descriptor {
	e.mu.Lock()
	if e.scale <= 1 {
		return e.descriptorLocked()
	}
	e.pan = clampPan(Pan{X: x, Y: y}, e.scale)
	return e.bumpLocked()
}

// ApplyPanDelta applies a relative pan, with the same clamping as SetPan.
func (e *Engine) ApplyPanDelta(dx, dy float64) Descriptor {
	e.mu.Lock()
	if e.scale <= 1 {
		return e.descriptorLocked()
	}
	e.pan = clampPan(Pan{X: e.pan.X + dx, Y: e.pan.Y + dy}, e.scale)
	return e.bumpLocked()
}

// SetFilters sets the filter intensities, clamped to [0,100].
func (e *Engine) SetFilters(sharpen, emboss float64) Descriptor {
	e.mu.Lock()
	e.filters = FilterParams{
		Sharpen: clampIntensity(sharpen),
		Emboss:  clampIntensity(emboss),
	}
	return e.bumpLocked()
}

// BeginDrag captures the drag reference position. Dragging only engages when
// zoomed in: at scale 1 the gesture is ignored entirely.
func (e *Engine) BeginDrag(pointerX, pointerY float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scale <= 1 {
		return
	}
	e.dragging = true
	e.dragRefX = pointerX
	e.dragRefY = pointerY
}

// MoveDrag converts the pointer movement since the last call into a pan
// delta in fractions of the unscaled viewport dimensions and applies it.
func (e *Engine) MoveDrag(pointerX, pointerY float64) Descriptor {
	e.mu.Lock()
	if !e.dragging {
		return e.descriptorLocked()
	}
	width, height := e.viewport()
	dx, dy := 0.0, 0.0
	if width > 0 {
		dx = (pointerX - e.dragRefX) / width
	}
	if height > 0 {
		dy = (pointerY - e.dragRefY) / height
	}
	e.dragRefX = pointerX
	e.dragRefY = pointerY

	if e.scale <= 1 {
		return e.descriptorLocked()
	}
	e.pan = clampPan(Pan{X: e.pan.X + dx, Y: e.pan.Y + dy}, e.scale)
	return e.bumpLocked()
}

// EndDrag clears the drag state.
func (e *Engine) EndDrag() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dragging = false
}

// Descriptor returns the current composed transform.
func (e *Engine) Descriptor() Descriptor {
	e.mu.Lock()
	d := e.buildDescriptor()
	e.mu.Unlock()
	return d
}

// descriptorLocked returns the current descriptor and releases the lock.
func (e *Engine) descriptorLocked() Descriptor {
	d := e.buildDescriptor()
	e.mu.Unlock()
	return d
}

// bumpLocked advances the revision, releases the lock, and publishes.
func (e *Engine) bumpLocked() Descriptor {
	e.revision++
	d := e.buildDescriptor()
	e.mu.Unlock()

	if e.bus != nil {
		e.bus.Publish(events.TransformChangedEvent{
			Revision:  d.Revision,
			Scale:     d.Scale,
			PanX:      d.Pan.X,
			PanY:      d.Pan.Y,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return d
}

func (e *Engine) buildDescriptor() Descriptor {
	pan := e.pan
	if e.scale == 1 {
		// Effective pan is forced to center regardless of stored pan.
		pan = Pan{}
	}
	return Descriptor{
		Revision:      e.revision,
		Scale:         e.scale,
		Pan:           pan,
		Filters:       e.filters,
		SharpenKernel: Sharpen(e.filters.Sharpen),
		EmbossKernel:  Emboss(e.filters.Emboss),
	}
}

func clampPan(p Pan, scale float64) Pan {
	maxPan := (scale - 1) / 2
	return Pan{
		X: clampAxis(p.X, maxPan),
		Y: clampAxis(p.Y, maxPan),
	}
}

func clampAxis(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

func clampIntensity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
