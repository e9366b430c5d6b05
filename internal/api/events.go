package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/scopeview/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of device, stream, health, transform and artifact events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"device-discovery":     events.DeviceDiscoveryEvent{},
		"stream-state-changed": events.StreamStateChangedEvent{},
		"health-sample":        events.HealthSampleEvent{},
		"fault":                events.FaultEvent{},
		"artifact-created":     events.ArtifactCreatedEvent{},
		"transform-changed":    events.TransformChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.Forward[events.DeviceDiscoveryEvent](s.deps.Bus, eventCh),
			events.Forward[events.StreamStateChangedEvent](s.deps.Bus, eventCh),
			events.Forward[events.HealthSampleEvent](s.deps.Bus, eventCh),
			events.Forward[events.FaultEvent](s.deps.Bus, eventCh),
			events.Forward[events.ArtifactCreatedEvent](s.deps.Bus, eventCh),
			events.Forward[events.TransformChangedEvent](s.deps.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Initial state so clients render without waiting for a change.
		st := s.deps.Negotiator.Status()
		if err := send.Data(events.StreamStateChangedEvent{
			State:     st.State.String(),
			Identity:  st.Identity,
			Profile:   st.Profile.Name,
			Fault:     st.Fault,
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
