package api

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scopeview/internal/capture"
	"github.com/smazurov/scopeview/internal/devices"
	"github.com/smazurov/scopeview/internal/events"
	"github.com/smazurov/scopeview/internal/health"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/stream"
	"github.com/smazurov/scopeview/internal/transform"
)

type stubHandle struct {
	identity string
}

func (h *stubHandle) Identity() string { return h.identity }

func (h *stubHandle) Settings() (stream.TrackSettings, error) {
	return stream.TrackSettings{Live: true, Enabled: true, Width: 1920, Height: 1080, FrameRate: 30}, nil
}

func (h *stubHandle) Stop() {}

type stubOpener struct{}

func (o *stubOpener) Open(_ context.Context, c stream.Constraints) (stream.Handle, error) {
	return &stubHandle{identity: c.Identity}, nil
}

type stubEnumerator struct {
	devices []devices.Descriptor
}

func (e *stubEnumerator) Enumerate(_ context.Context) ([]devices.Descriptor, error) {
	return e.devices, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := events.New()
	enum := &stubEnumerator{devices: []devices.Descriptor{
		{Identity: "/dev/video0", Label: "Front Scope", Kind: devices.VideoInput},
		{Identity: "/dev/video2", Label: "", Kind: devices.VideoInput},
	}}
	registry := devices.NewRegistry(enum, bus)
	registry.Refresh(context.Background(), "test")

	negotiator := stream.NewNegotiator(&stubOpener{}, bus)
	viewport := transform.NewViewport(1280, 720)
	engine := transform.NewEngine(viewport.Size, transform.WithBus(bus))

	return &Server{
		deps: Deps{
			Registry:   registry,
			Negotiator: negotiator,
			Monitor:    health.NewMonitor(negotiator, bus),
			Engine:     engine,
			Viewport:   viewport,
			Bus:        bus,
		},
		logger: logging.GetLogger("api"),
	}
}

func TestDeviceListMarksSelection(t *testing.T) {
	s := newTestServer(t)

	list := s.deviceList()
	if len(list) != 2 {
		t.Fatalf("device count = %d, want 2", len(list))
	}
	if !list[0].Selected {
		t.Error("first enumerated device not marked selected")
	}
	if list[1].Selected {
		t.Error("unselected device marked selected")
	}
	if list[0].Kind != "video-input" {
		t.Errorf("kind = %q, want %q", list[0].Kind, "video-input")
	}
}

func TestStreamStatusReflectsNegotiator(t *testing.T) {
	s := newTestServer(t)

	resp := s.streamStatus()
	if resp.Body.Stream.State != "idle" {
		t.Errorf("initial state = %q, want %q", resp.Body.Stream.State, "idle")
	}

	if err := s.deps.Negotiator.Acquire(context.Background(), "/dev/video0", stream.ProfileStandard); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	resp = s.streamStatus()
	if resp.Body.Stream.State != "active" {
		t.Errorf("state = %q, want %q", resp.Body.Stream.State, "active")
	}
	if resp.Body.Stream.Identity != "/dev/video0" {
		t.Errorf("identity = %q", resp.Body.Stream.Identity)
	}
	if resp.Body.Stream.Profile != "standard" {
		t.Errorf("profile = %q", resp.Body.Stream.Profile)
	}
}

func TestTransformResponseCarriesKernels(t *testing.T) {
	s := newTestServer(t)

	d := s.deps.Engine.SetFilters(100, 0)
	resp := s.transformResponse(d)

	if resp.Body.Filters.Sharpen != 100 {
		t.Errorf("sharpen = %v, want 100", resp.Body.Filters.Sharpen)
	}
	if resp.Body.MaxScale != s.deps.Engine.MaxScale() {
		t.Errorf("maxScale = %v", resp.Body.MaxScale)
	}
	if resp.Body.SharpenKernel[4] == 1 {
		t.Error("sharpen kernel still identity at full intensity")
	}
}

func TestArtifactResponseEncodesPayload(t *testing.T) {
	artifact := &capture.Artifact{
		ID:        "a-1",
		Kind:      capture.ArtifactStill,
		MIME:      "image/png",
		Data:      []byte{0x89, 0x50, 0x4e, 0x47},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	resp := artifactResponse(artifact)
	if resp.Body.SizeBytes != 4 {
		t.Errorf("sizeBytes = %d, want 4", resp.Body.SizeBytes)
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.Body.Data)
	if err != nil {
		t.Fatalf("data is not valid base64: %v", err)
	}
	if string(decoded) != string(artifact.Data) {
		t.Error("decoded payload does not match artifact data")
	}
	if resp.Body.CreatedAt != "2026-03-01T10:00:00Z" {
		t.Errorf("createdAt = %q", resp.Body.CreatedAt)
	}
}

func TestFaultToHTTPMapping(t *testing.T) {
	busy := stream.NewFault(stream.FaultCodeRecorderBusy, "a recording is already in progress", nil)
	if err, ok := faultToHTTP(busy).(huma.StatusError); !ok || err.GetStatus() != 409 {
		t.Errorf("recorder busy mapped to %v, want 409", err)
	}

	recording := stream.NewFault(stream.FaultCodeRecording, "stop the current recording first", nil)
	if err, ok := faultToHTTP(recording).(huma.StatusError); !ok || err.GetStatus() != 409 {
		t.Errorf("recording-in-progress mapped to %v, want 409", err)
	}

	missing := stream.NewFault(stream.FaultCodeDeviceNotFound, "no device", nil)
	if err, ok := faultToHTTP(missing).(huma.StatusError); !ok || err.GetStatus() != 404 {
		t.Errorf("device not found mapped to %v, want 404", err)
	}

	capErr := stream.NewFault(stream.FaultCodeCapture, "boom", nil)
	if err, ok := faultToHTTP(capErr).(huma.StatusError); !ok || err.GetStatus() != 500 {
		t.Errorf("capture fault mapped to %v, want 500", err)
	}

	plain := errors.New("unrelated")
	if got := faultToHTTP(plain); got != plain {
		t.Errorf("plain error rewritten to %v", got)
	}
}
