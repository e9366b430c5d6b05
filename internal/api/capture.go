package api

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scopeview/internal/capture"
	"github.com/smazurov/scopeview/internal/stream"
)

// ArtifactData is the wire shape of a captured still or recorded clip.
type ArtifactData struct {
	ID        string `json:"id" doc:"Artifact identifier"`
	Kind      string `json:"kind" example:"still" enum:"still,clip"`
	MIME      string `json:"mime" example:"image/png"`
	SizeBytes int    `json:"sizeBytes"`
	Data      string `json:"data" doc:"Base64-encoded artifact payload"`
	CreatedAt string `json:"createdAt" doc:"Creation time, RFC 3339"`
}

// ArtifactResponse wraps one artifact.
type ArtifactResponse struct {
	Body ArtifactData
}

// RecordingStatusResponse reports whether a recording is in flight.
type RecordingStatusResponse struct {
	Body struct {
		Recording bool `json:"recording"`
	}
}

func artifactResponse(a *capture.Artifact) *ArtifactResponse {
	return &ArtifactResponse{
		Body: ArtifactData{
			ID:        a.ID,
			Kind:      string(a.Kind),
			MIME:      a.MIME,
			SizeBytes: len(a.Data),
			Data:      base64.StdEncoding.EncodeToString(a.Data),
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		},
	}
}

// faultToHTTP maps domain faults onto HTTP error responses.
func faultToHTTP(err error) error {
	var fault *stream.Fault
	if errors.As(err, &fault) {
		switch fault.Code {
		case stream.FaultCodeRecorderBusy, stream.FaultCodeRecording:
			return huma.Error409Conflict(fault.Message)
		case stream.FaultCodeDeviceNotFound:
			return huma.Error404NotFound(fault.Message)
		default:
			return huma.Error500InternalServerError(fault.Message)
		}
	}
	return err
}

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "capture-snapshot",
		Method:      http.MethodPost,
		Path:        "/api/capture/snapshot",
		Summary:     "Capture snapshot",
		Description: "Capture the current frame at native resolution as a still artifact",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *struct{}) (*ArtifactResponse, error) {
		artifact, err := s.deps.Bridge.Snapshot(ctx)
		if err != nil {
			return nil, faultToHTTP(err)
		}
		if artifact == nil {
			return nil, huma.Error409Conflict("no active stream to capture from")
		}
		return artifactResponse(artifact), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "recording-status",
		Method:      http.MethodGet,
		Path:        "/api/capture/recording",
		Summary:     "Recording status",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*RecordingStatusResponse, error) {
		resp := &RecordingStatusResponse{}
		resp.Body.Recording = s.deps.Bridge.Recording()
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "recording-begin",
		Method:      http.MethodPost,
		Path:        "/api/capture/recording",
		Summary:     "Begin recording",
		Description: "Start accumulating the stream into an in-memory clip",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 409, 500},
	}, func(ctx context.Context, input *struct{}) (*RecordingStatusResponse, error) {
		if err := s.deps.Bridge.BeginRecording(context.WithoutCancel(ctx)); err != nil {
			return nil, faultToHTTP(err)
		}
		resp := &RecordingStatusResponse{}
		resp.Body.Recording = true
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "recording-end",
		Method:      http.MethodDelete,
		Path:        "/api/capture/recording",
		Summary:     "End recording",
		Description: "Stop the in-flight recording and return the clip artifact",
		Tags:        []string{"capture"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 500},
	}, func(ctx context.Context, input *struct{}) (*ArtifactResponse, error) {
		artifact, err := s.deps.Bridge.EndRecording(ctx)
		if err != nil {
			return nil, faultToHTTP(err)
		}
		if artifact == nil {
			return nil, huma.Error404NotFound("no recording produced a clip")
		}
		return artifactResponse(artifact), nil
	})
}
