package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scopeview/internal/devices"
	"github.com/smazurov/scopeview/internal/stream"
)

// DeviceInfo is the wire shape of one capture device.
type DeviceInfo struct {
	Identity string `json:"identity" example:"/dev/video0" doc:"Stable device identifier"`
	Label    string `json:"label" example:"HD Webcam" doc:"Human-readable label, may be empty before first acquisition"`
	Kind     string `json:"kind" example:"video-input" doc:"Capture source kind"`
	Selected bool   `json:"selected" doc:"Whether this device is currently selected"`
}

// DeviceListResponse lists enumerated devices.
type DeviceListResponse struct {
	Body struct {
		Devices []DeviceInfo `json:"devices"`
		Count   int          `json:"count" example:"2"`
	}
}

// DeviceSelectInput names a device to select.
type DeviceSelectInput struct {
	Body struct {
		Identity string `json:"identity" example:"/dev/video1" doc:"Device identity to select"`
	}
}

func (s *Server) deviceList() []DeviceInfo {
	selected, hasSelection := s.deps.Registry.Selected()
	list := s.deps.Registry.List()
	out := make([]DeviceInfo, 0, len(list))
	for _, d := range list {
		out = append(out, DeviceInfo{
			Identity: d.Identity,
			Label:    d.Label,
			Kind:     d.Kind.String(),
			Selected: hasSelection && d.Identity == selected.Identity,
		})
	}
	return out
}

func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "devices-list",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List devices",
		Description: "List enumerated capture devices and the current selection",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*DeviceListResponse, error) {
		resp := &DeviceListResponse{}
		resp.Body.Devices = s.deviceList()
		resp.Body.Count = len(resp.Body.Devices)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "devices-refresh",
		Method:      http.MethodPost,
		Path:        "/api/devices/refresh",
		Summary:     "Refresh devices",
		Description: "Re-enumerate capture devices",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*DeviceListResponse, error) {
		s.deps.Registry.Refresh(ctx, "manual")
		resp := &DeviceListResponse{}
		resp.Body.Devices = s.deviceList()
		resp.Body.Count = len(resp.Body.Devices)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "devices-select",
		Method:      http.MethodPost,
		Path:        "/api/devices/select",
		Summary:     "Select device",
		Description: "Select a capture device, load its preferences and acquire its stream",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(ctx context.Context, input *DeviceSelectInput) (*StreamStatusResponse, error) {
		desc, ok := s.deps.Registry.Select(input.Body.Identity)
		if !ok {
			return nil, huma.Error404NotFound("unknown device identity: " + input.Body.Identity)
		}
		return s.acquireSelected(ctx, desc)
	})
}

// acquireSelected loads the device's preferences, applies its filters and
// acquires its stream with the preferred profile.
func (s *Server) acquireSelected(ctx context.Context, desc devices.Descriptor) (*StreamStatusResponse, error) {
	state, _ := s.deps.Prefs.BeginLoad(desc.Identity)
	s.deps.Engine.SetFilters(state.Filters.Sharpen, state.Filters.Emboss)

	profile := stream.ProfileStandard
	if state.Profile != "" {
		if p, err := stream.ProfileByName(state.Profile); err == nil {
			profile = p
		}
	}

	err := s.deps.Negotiator.Acquire(ctx, desc.Identity, profile)
	if err != nil && !errors.Is(err, stream.ErrSuperseded) {
		s.logger.Warn("Acquisition failed", "identity", desc.Identity, "error", err)
	}

	// Labels may only become readable after the first successful open.
	if err == nil && s.deps.Registry.NeedsLabelBackfill() {
		s.deps.Registry.Refresh(ctx, "label-backfill")
	}

	return s.streamStatus(), nil
}
