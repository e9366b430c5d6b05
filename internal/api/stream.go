package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scopeview/internal/stream"
)

// StreamStatus is the wire shape of the negotiator state.
type StreamStatus struct {
	State    string `json:"state" example:"active" doc:"Lifecycle state: idle, requesting, active, failed or released"`
	Identity string `json:"identity,omitempty" example:"/dev/video0" doc:"Bound device identity"`
	Profile  string `json:"profile,omitempty" example:"standard" doc:"Quality profile in effect"`
	Fault    string `json:"fault,omitempty" doc:"Renderable fault text when state is failed"`
}

// HealthSnapshot is the latest health sample, present while a stream is active.
type HealthSnapshot struct {
	Live        bool    `json:"live"`
	Muted       bool    `json:"muted"`
	Enabled     bool    `json:"enabled"`
	Width       int     `json:"width" example:"1920"`
	Height      int     `json:"height" example:"1080"`
	FrameRate   float64 `json:"frameRate" example:"30"`
	SourceLabel string  `json:"sourceLabel,omitempty"`
}

// StreamStatusResponse reports stream state plus the latest health sample.
type StreamStatusResponse struct {
	Body struct {
		Stream StreamStatus    `json:"stream"`
		Health *HealthSnapshot `json:"health,omitempty"`
	}
}

// StreamProfileInput names a quality profile to apply.
type StreamProfileInput struct {
	Body struct {
		Profile string `json:"profile" example:"compat" enum:"standard,compat" doc:"Quality profile name"`
	}
}

func (s *Server) streamStatus() *StreamStatusResponse {
	st := s.deps.Negotiator.Status()
	resp := &StreamStatusResponse{}
	resp.Body.Stream = StreamStatus{
		State:    st.State.String(),
		Identity: st.Identity,
		Profile:  st.Profile.Name,
		Fault:    st.Fault,
	}
	if sample, ok := s.deps.Monitor.Latest(); ok {
		resp.Body.Health = &HealthSnapshot{
			Live:        sample.Live,
			Muted:       sample.Muted,
			Enabled:     sample.Enabled,
			Width:       sample.Width,
			Height:      sample.Height,
			FrameRate:   sample.FrameRate,
			SourceLabel: sample.SourceLabel,
		}
	}
	return resp
}

func (s *Server) registerStreamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "stream-status",
		Method:      http.MethodGet,
		Path:        "/api/stream",
		Summary:     "Stream status",
		Description: "Current stream lifecycle state and latest health sample",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*StreamStatusResponse, error) {
		return s.streamStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stream-set-profile",
		Method:      http.MethodPut,
		Path:        "/api/stream/profile",
		Summary:     "Set quality profile",
		Description: "Re-acquire the current device with a different quality profile",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(ctx context.Context, input *StreamProfileInput) (*StreamStatusResponse, error) {
		profile, err := stream.ProfileByName(input.Body.Profile)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		st := s.deps.Negotiator.Status()
		if st.Identity == "" {
			return nil, huma.Error409Conflict("no device selected")
		}

		if acqErr := s.deps.Negotiator.Acquire(ctx, st.Identity, profile); acqErr != nil && !errors.Is(acqErr, stream.ErrSuperseded) {
			s.logger.Warn("Profile change failed", "identity", st.Identity, "profile", profile.Name, "error", acqErr)
		} else if acqErr == nil {
			s.savePrefs()
		}

		return s.streamStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stream-refresh",
		Method:      http.MethodPost,
		Path:        "/api/stream/refresh",
		Summary:     "Refresh stream",
		Description: "Tear down and re-acquire the current device and profile",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(ctx context.Context, input *struct{}) (*StreamStatusResponse, error) {
		err := s.deps.Negotiator.Refresh(ctx)
		if err != nil && !errors.Is(err, stream.ErrSuperseded) {
			var fault *stream.Fault
			if errors.As(err, &fault) && fault.Code == stream.FaultCodeDeviceNotFound {
				return nil, huma.Error409Conflict("no device selected")
			}
			s.logger.Warn("Stream refresh failed", "error", err)
		}
		return s.streamStatus(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stream-release",
		Method:      http.MethodDelete,
		Path:        "/api/stream",
		Summary:     "Release stream",
		Description: "Release the active stream and stop health sampling",
		Tags:        []string{"stream"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*StreamStatusResponse, error) {
		s.deps.Negotiator.Close()
		return s.streamStatus(), nil
	})
}
