package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/scopeview/internal/capture"
	"github.com/smazurov/scopeview/internal/devices"
	"github.com/smazurov/scopeview/internal/events"
	"github.com/smazurov/scopeview/internal/health"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/prefs"
	"github.com/smazurov/scopeview/internal/stream"
	"github.com/smazurov/scopeview/internal/transform"
	"github.com/smazurov/scopeview/internal/version"
)

// Deps bundles the services the API fronts.
type Deps struct {
	Registry   *devices.Registry
	Negotiator *stream.Negotiator
	Monitor    *health.Monitor
	Engine     *transform.Engine
	Viewport   *transform.Viewport
	Bridge     *capture.Bridge
	Prefs      *prefs.Service
	Bus        *events.Bus
}

// Options represents the API server options.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	PrometheusHandler http.Handler
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	deps       Deps
	options    *Options
	logger     *slog.Logger
}

// NewServer creates the API server with Go 1.22+ native routing.
func NewServer(deps Deps, opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("ScopeView API", version.Version)
	config.Info.Description = "Capture device stream lifecycle and viewing API"
	// Empty servers list makes OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}

	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:     api,
		mux:     mux,
		deps:    deps,
		options: opts,
		logger:  logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	server.registerRoutes()

	return server
}

// GetMux returns the underlying HTTP ServeMux for additional setup.
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// GetAPI returns the Huma API instance.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start starts the HTTP server on the specified address.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting ScopeView API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	return s.httpServer.ListenAndServe()
}

// Stop shuts down the server without waiting for open connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// savePrefs persists the current filters and profile for the loaded device.
// The preference service drops the write while a load is settling.
func (s *Server) savePrefs() {
	identity := s.deps.Prefs.Identity()
	if identity == "" {
		return
	}
	state, _ := s.deps.Prefs.Current()
	state.Filters = s.deps.Engine.Descriptor().Filters
	state.Profile = s.deps.Negotiator.Status().Profile.Name
	s.deps.Prefs.Save(identity, state)
}

// withAuth returns the security requirement used by authenticated routes.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}

// basicAuthMiddleware creates middleware for HTTP basic authentication.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		var credentials string

		if authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				ctx.SetHeader("WWW-Authenticate", `Basic realm="ScopeView API"`)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid authentication type")
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				ctx.SetHeader("WWW-Authenticate", `Basic realm="ScopeView API"`)
				huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
				return
			}
			credentials = string(decoded)
		} else {
			// SSE clients cannot set headers, fall back to a query parameter
			if queryAuth := ctx.Query("auth"); queryAuth != "" {
				decoded, err := base64.StdEncoding.DecodeString(queryAuth)
				if err != nil {
					ctx.SetHeader("WWW-Authenticate", `Basic realm="ScopeView API"`)
					huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
					return
				}
				credentials = string(decoded)
			}
		}

		if credentials == "" {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="ScopeView API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}

		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="ScopeView API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// HealthResponse is the health check output.
type HealthResponse struct {
	Body struct {
		Status    string `json:"status" example:"ok" doc:"Service status"`
		Version   string `json:"version" example:"0.1.0" doc:"Service version"`
		Timestamp string `json:"timestamp" doc:"Server time, RFC 3339"`
	}
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		resp := &HealthResponse{}
		resp.Body.Status = "ok"
		resp.Body.Version = version.Version
		resp.Body.Timestamp = time.Now().Format(time.RFC3339)
		return resp, nil
	})

	s.registerDeviceRoutes()
	s.registerStreamRoutes()
	s.registerTransformRoutes()
	s.registerCaptureRoutes()
	s.registerSSERoutes()
}
