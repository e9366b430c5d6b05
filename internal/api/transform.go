package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/scopeview/internal/transform"
)

// TransformState is the wire shape of the display transform.
type TransformState struct {
	Revision      uint64     `json:"revision" doc:"Monotonic change counter"`
	Scale         float64    `json:"scale" example:"2.5" doc:"Zoom factor, 1 to max"`
	MaxScale      float64    `json:"maxScale" example:"5"`
	Pan           PanState   `json:"pan"`
	Filters       FilterSet  `json:"filters"`
	SharpenKernel [9]float64 `json:"sharpenKernel" doc:"Effective 3x3 sharpen convolution kernel, row-major"`
	EmbossKernel  [9]float64 `json:"embossKernel" doc:"Effective 3x3 emboss convolution kernel, row-major"`
}

// PanState is a pan offset in fractions of the unscaled viewport.
type PanState struct {
	X float64 `json:"x" example:"0.25"`
	Y float64 `json:"y" example:"-0.1"`
}

// FilterSet holds filter intensities in percent.
type FilterSet struct {
	Sharpen float64 `json:"sharpen" example:"40" minimum:"0" maximum:"100"`
	Emboss  float64 `json:"emboss" example:"0" minimum:"0" maximum:"100"`
}

// TransformResponse reports the transform after an operation.
type TransformResponse struct {
	Body TransformState
}

// ScaleInput sets the zoom factor.
type ScaleInput struct {
	Body struct {
		Scale float64 `json:"scale" example:"2" doc:"Zoom factor, clamped to [1, max]"`
	}
}

// PanInput sets an absolute pan offset.
type PanInput struct {
	Body struct {
		X float64 `json:"x" doc:"Horizontal pan in viewport fractions"`
		Y float64 `json:"y" doc:"Vertical pan in viewport fractions"`
	}
}

// FiltersInput sets filter intensities.
type FiltersInput struct {
	Body FilterSet
}

// DragInput carries one pointer gesture step.
type DragInput struct {
	Body struct {
		Phase string  `json:"phase" enum:"begin,move,end" doc:"Gesture phase"`
		X     float64 `json:"x" doc:"Pointer X in viewport pixels"`
		Y     float64 `json:"y" doc:"Pointer Y in viewport pixels"`
	}
}

// ViewportInput reports the client viewport dimensions.
type ViewportInput struct {
	Body struct {
		Width  float64 `json:"width" example:"1280" minimum:"1"`
		Height float64 `json:"height" example:"720" minimum:"1"`
	}
}

func (s *Server) transformResponse(d transform.Descriptor) *TransformResponse {
	return &TransformResponse{
		Body: TransformState{
			Revision:      d.Revision,
			Scale:         d.Scale,
			MaxScale:      s.deps.Engine.MaxScale(),
			Pan:           PanState{X: d.Pan.X, Y: d.Pan.Y},
			Filters:       FilterSet{Sharpen: d.Filters.Sharpen, Emboss: d.Filters.Emboss},
			SharpenKernel: [9]float64(d.SharpenKernel),
			EmbossKernel:  [9]float64(d.EmbossKernel),
		},
	}
}

func (s *Server) registerTransformRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "transform-get",
		Method:      http.MethodGet,
		Path:        "/api/transform",
		Summary:     "Get transform",
		Description: "Current zoom, pan and filter state",
		Tags:        []string{"transform"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*TransformResponse, error) {
		return s.transformResponse(s.deps.Engine.Descriptor()), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "transform-set-scale",
		Method:      http.MethodPut,
		Path:        "/api/transform/scale",
		Summary:     "Set zoom",
		Description: "Set the zoom factor; zooming out to 1 recenters the pan",
		Tags:        []string{"transform"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *ScaleInput) (*TransformResponse, error) {
		return s.transformResponse(s.deps.Engine.SetScale(input.Body.Scale)), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "transform-set-pan",
		Method:      http.MethodPut,
		Path:        "/api/transform/pan",
		Summary:     "Set pan",
		Description: "Set an absolute pan offset, clamped to the visible range",
		Tags:        []string{"transform"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *PanInput) (*TransformResponse, error) {
		return s.transformResponse(s.deps.Engine.SetPan(input.Body.X, input.Body.Y)), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "transform-drag",
		Method:      http.MethodPost,
		Path:        "/api/transform/drag",
		Summary:     "Drag pan",
		Description: "Apply one step of a pointer drag gesture",
		Tags:        []string{"transform"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(ctx context.Context, input *DragInput) (*TransformResponse, error) {
		switch input.Body.Phase {
		case "begin":
			s.deps.Engine.BeginDrag(input.Body.X, input.Body.Y)
			return s.transformResponse(s.deps.Engine.Descriptor()), nil
		case "move":
			return s.transformResponse(s.deps.Engine.MoveDrag(input.Body.X, input.Body.Y)), nil
		case "end":
			s.deps.Engine.EndDrag()
			return s.transformResponse(s.deps.Engine.Descriptor()), nil
		default:
			return nil, huma.Error400BadRequest("unknown drag phase: " + input.Body.Phase)
		}
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "transform-set-filters",
		Method:      http.MethodPut,
		Path:        "/api/transform/filters",
		Summary:     "Set filters",
		Description: "Set sharpen and emboss intensities and persist them for the device",
		Tags:        []string{"transform"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *FiltersInput) (*TransformResponse, error) {
		d := s.deps.Engine.SetFilters(input.Body.Sharpen, input.Body.Emboss)
		s.savePrefs()
		return s.transformResponse(d), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "transform-set-viewport",
		Method:      http.MethodPut,
		Path:        "/api/transform/viewport",
		Summary:     "Set viewport",
		Description: "Report the client viewport dimensions used for drag math",
		Tags:        []string{"transform"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *ViewportInput) (*TransformResponse, error) {
		s.deps.Viewport.Set(input.Body.Width, input.Body.Height)
		return s.transformResponse(s.deps.Engine.Descriptor()), nil
	})
}
