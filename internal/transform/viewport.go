package transform

import "sync"

// Viewport tracks the client's reported viewport dimensions. Pan math is
// expressed as fractions of the unscaled viewport, so drags need the
// current size to convert pointer pixels into pan units.
type Viewport struct {
	mu     sync.Mutex
	width  float64
	height float64
}

// NewViewport creates a viewport with initial dimensions.
func NewViewport(width, height float64) *Viewport {
	return &Viewport{width: width, height: height}
}

// Set updates the viewport dimensions. Non-positive values are ignored.
func (v *Viewport) Set(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	v.mu.Lock()
	v.width, v.height = width, height
	v.mu.Unlock()
}

// Size returns the current dimensions. Usable as a ViewportFunc.
func (v *Viewport) Size() (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}
