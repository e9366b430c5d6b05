package stream

import "fmt"

// Profile is a named bundle of desired resolution and frame-rate hints.
// Exactly two tiers ship by default but arbitrary tiers are representable.
type Profile struct {
	Name      string  `toml:"name" json:"name" example:"standard" doc:"Profile name"`
	Width     int     `toml:"width" json:"width" example:"1920" doc:"Target width in pixels"`
	Height    int     `toml:"height" json:"height" example:"1080" doc:"Target height in pixels"`
	FrameRate float64 `toml:"frame_rate,omitempty" json:"frame_rate,omitempty" example:"30" doc:"Target frame rate, 0 means no hint"`
}

// Shipped quality tiers.
var (
	ProfileStandard = Profile{Name: "standard", Width: 1920, Height: 1080, FrameRate: 30}
	ProfileCompat   = Profile{Name: "compat", Width: 640, Height: 480}
)

// ProfileByName resolves a shipped tier by name.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case ProfileStandard.Name:
		return ProfileStandard, nil
	case ProfileCompat.Name:
		return ProfileCompat, nil
	default:
		return Profile{}, fmt.Errorf("unknown quality profile %q", name)
	}
}

// Constraints is the constraint set handed to the platform opener.
// Identity binding is exact: the opener must never substitute a different device.
type Constraints struct {
	Identity  string
	Width     int
	Height    int
	FrameRate float64
}

// Minimal reports whether the constraint set carries only the device binding.
func (c Constraints) Minimal() bool {
	return c.Width == 0 && c.Height == 0 && c.FrameRate == 0
}

// Constraints builds the full constraint set for a device identity.
func (p Profile) Constraints(identity string) Constraints {
	return Constraints{
		Identity:  identity,
		Width:     p.Width,
		Height:    p.Height,
		FrameRate: p.FrameRate,
	}
}

// MinimalConstraints builds the fallback constraint set: device binding only,
// no resolution or frame-rate hints.
func MinimalConstraints(identity string) Constraints {
	return Constraints{Identity: identity}
}
