package events

// Event type constants for kelindar/event.
const (
	TypeDeviceDiscovery uint32 = iota + 1
	TypeStreamStateChanged
	TypeHealthSample
	TypeFault
	TypeArtifactCreated
	TypeTransformChanged
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceDiscoveryEvent is published whenever the device set is re-enumerated.
type DeviceDiscoveryEvent struct {
	Action    string `json:"action" example:"refreshed" doc:"Trigger: startup, hotplug, label-backfill, refreshed"`
	Count     int    `json:"count" example:"2" doc:"Number of devices found"`
	Selected  string `json:"selected,omitempty" example:"usb-0000:00:14.0-1" doc:"Currently selected identity, empty if none"`
	Timestamp string `json:"timestamp" example:"2026-08-31T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// StreamStateChangedEvent is published on every negotiator state transition.
type StreamStateChangedEvent struct {
	State     string `json:"state" example:"active" doc:"Negotiator state: idle, requesting, active, failed, released"`
	Identity  string `json:"identity,omitempty" example:"usb-0000:00:14.0-1" doc:"Device identity of the request"`
	Profile   string `json:"profile,omitempty" example:"standard" doc:"Quality profile name"`
	Fault     string `json:"fault,omitempty" doc:"User-renderable fault text when state is failed"`
	Timestamp string `json:"timestamp" example:"2026-08-31T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStateChangedEvent.
func (e StreamStateChangedEvent) Type() uint32 { return TypeStreamStateChanged }

// HealthSampleEvent carries one telemetry sample of the active stream.
type HealthSampleEvent struct {
	Live        bool    `json:"live" example:"true" doc:"Whether the primary track is live"`
	Muted       bool    `json:"muted" example:"false" doc:"Whether the primary track is muted"`
	Enabled     bool    `json:"enabled" example:"true" doc:"Whether the primary track is enabled"`
	Width       int     `json:"width" example:"1920" doc:"Current frame width in pixels"`
	Height      int     `json:"height" example:"1080" doc:"Current frame height in pixels"`
	FrameRate   float64 `json:"frame_rate" example:"30" doc:"Current frame rate"`
	SourceLabel string  `json:"source_label" example:"USB Microscope" doc:"Label of the underlying source"`
	Timestamp   string  `json:"timestamp" example:"2026-08-31T10:30:00Z" doc:"Sample timestamp"`
}

// Type returns the event type identifier for HealthSampleEvent.
func (e HealthSampleEvent) Type() uint32 { return TypeHealthSample }

// FaultEvent carries a user-renderable fault from any subsystem.
type FaultEvent struct {
	Code      string `json:"code" example:"ACQUISITION" doc:"Fault code"`
	Message   string `json:"message" doc:"User-renderable fault text"`
	Timestamp string `json:"timestamp" example:"2026-08-31T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FaultEvent.
func (e FaultEvent) Type() uint32 { return TypeFault }

// ArtifactCreatedEvent is published when a still or clip artifact is produced.
type ArtifactCreatedEvent struct {
	ArtifactID string `json:"artifact_id" example:"0b804a6a-1f3e-4f43-9f2e-2c9a5b7f1d20" doc:"Artifact identifier"`
	Kind       string `json:"kind" example:"still" doc:"Artifact kind: still or clip"`
	SizeBytes  int    `json:"size_bytes" example:"482133" doc:"Payload size in bytes"`
	Timestamp  string `json:"timestamp" example:"2026-08-31T10:30:00Z" doc:"Creation timestamp"`
}

// Type returns the event type identifier for ArtifactCreatedEvent.
func (e ArtifactCreatedEvent) Type() uint32 { return TypeArtifactCreated }

// TransformChangedEvent is published on every transform descriptor revision.
type TransformChangedEvent struct {
	Revision  uint64  `json:"revision" example:"17" doc:"Monotonic descriptor revision"`
	Scale     float64 `json:"scale" example:"2.5" doc:"Current scale factor"`
	PanX      float64 `json:"pan_x" example:"0.25" doc:"Horizontal pan as fraction of viewport"`
	PanY      float64 `json:"pan_y" example:"-0.1" doc:"Vertical pan as fraction of viewport"`
	Timestamp string  `json:"timestamp" example:"2026-08-31T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TransformChangedEvent.
func (e TransformChangedEvent) Type() uint32 { return TypeTransformChanged }
