package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/scopeview/cmd"
	"github.com/smazurov/scopeview/internal/api"
	"github.com/smazurov/scopeview/internal/backend"
	"github.com/smazurov/scopeview/internal/capture"
	"github.com/smazurov/scopeview/internal/config"
	"github.com/smazurov/scopeview/internal/devices"
	"github.com/smazurov/scopeview/internal/events"
	"github.com/smazurov/scopeview/internal/health"
	"github.com/smazurov/scopeview/internal/logging"
	"github.com/smazurov/scopeview/internal/prefs"
	"github.com/smazurov/scopeview/internal/stream"
	"github.com/smazurov/scopeview/internal/transform"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Preferences settings
	PreferencesFile string `help:"Per-device preferences file" default:"preferences.toml" toml:"preferences.file" env:"PREFERENCES_FILE"`

	// Capture settings
	MaxRecordingMB int `help:"In-memory recording cap in MiB" default:"256" toml:"capture.max_recording_mb" env:"CAPTURE_MAX_RECORDING_MB"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStream    string `help:"Stream negotiation logging level" default:"info" toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingDevices   string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
	LoggingHealth    string `help:"Health monitor logging level" default:"info" toml:"logging.health" env:"LOGGING_HEALTH"`
	LoggingCapture   string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingTransform string `help:"Transform engine logging level" default:"info" toml:"logging.transform" env:"LOGGING_TRANSFORM"`
	LoggingPrefs     string `help:"Preferences logging level" default:"info" toml:"logging.prefs" env:"LOGGING_PREFS"`
	LoggingBackend   string `help:"Capture backend logging level" default:"info" toml:"logging.backend" env:"LOGGING_BACKEND"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"stream":    opts.LoggingStream,
				"devices":   opts.LoggingDevices,
				"health":    opts.LoggingHealth,
				"capture":   opts.LoggingCapture,
				"transform": opts.LoggingTransform,
				"prefs":     opts.LoggingPrefs,
				"backend":   opts.LoggingBackend,
				"api":       opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")

		eventBus := events.New()

		registry := devices.NewRegistry(backend.NewEnumerator(), eventBus)
		hotplug := devices.NewHotplugMonitor(registry)

		negotiator := stream.NewNegotiator(backend.NewOpener(), eventBus)

		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector())
		monitor := health.NewMonitor(negotiator, eventBus,
			health.WithMetrics(health.NewMetrics(promRegistry)))

		viewport := transform.NewViewport(1280, 720)
		engine := transform.NewEngine(viewport.Size, transform.WithBus(eventBus))

		bridge := capture.NewBridge(negotiator, backend.NewPNGEncoder(), eventBus,
			capture.WithMaxRecordingBytes(opts.MaxRecordingMB<<20))

		prefStore := prefs.NewTOML(opts.PreferencesFile)
		if loadErr := prefStore.Load(); loadErr != nil {
			logger.Warn("Failed to load preferences", "error", loadErr)
		}
		prefService := prefs.NewService(prefStore)

		// Reload preferences on external file edits and re-apply filters
		// for the currently loaded device.
		prefWatcher := config.NewFileWatcher(opts.PreferencesFile,
			func(path string) (map[string]prefs.State, error) {
				fresh := prefs.NewTOML(path)
				if err := fresh.Load(); err != nil {
					return nil, err
				}
				return fresh.All(), nil
			},
			logging.GetLogger("prefs"),
		)
		prefWatcher.OnReload(func(states map[string]prefs.State) {
			if loadErr := prefStore.Load(); loadErr != nil {
				logger.Warn("Failed to reload preferences", "error", loadErr)
				return
			}
			identity := prefService.Identity()
			if state, ok := states[identity]; ok {
				engine.SetFilters(state.Filters.Sharpen, state.Filters.Emboss)
			}
		})

		server := api.NewServer(api.Deps{
			Registry:   registry,
			Negotiator: negotiator,
			Monitor:    monitor,
			Engine:     engine,
			Viewport:   viewport,
			Bridge:     bridge,
			Prefs:      prefService,
			Bus:        eventBus,
		}, &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			PrometheusHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		})

		hooks.OnStart(func() {
			ctx := context.Background()

			registry.Refresh(ctx, "startup")
			monitor.Start(ctx)

			if startErr := hotplug.Start(ctx); startErr != nil {
				logger.Warn("Hotplug monitor unavailable, falling back to manual refresh", "error", startErr)
			}

			if startErr := prefWatcher.Start(); startErr != nil {
				logger.Warn("Preferences watcher unavailable", "error", startErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := prefWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping preferences watcher", "error", stopErr)
			}
			hotplug.Stop()
			monitor.Stop()

			// Flush any in-flight recording before dropping the stream.
			if bridge.Recording() {
				if _, endErr := bridge.EndRecording(context.Background()); endErr != nil {
					logger.Warn("Error flushing recording", "error", endErr)
				}
			}
			negotiator.Close()
		})
	})

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())

	cli.Run()
}
