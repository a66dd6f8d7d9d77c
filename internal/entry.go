// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jobpilot/internal/api"
	"github.com/starford/jobpilot/internal/capture"
	"github.com/starford/jobpilot/internal/host"
	"github.com/starford/jobpilot/internal/interviewservice"
	"github.com/starford/jobpilot/internal/ipc"
	"github.com/starford/jobpilot/internal/permission"
	"github.com/starford/jobpilot/internal/resource"
	"github.com/starford/jobpilot/internal/session"
	"github.com/starford/jobpilot/internal/sse"
	"github.com/starford/jobpilot/internal/store"
)

// Broker topics published by the host.
const (
	TopicSession     = "session"
	TopicPermissions = "permissions"
)

type sessionChange struct {
	From session.State `json:"from"`
	To   session.State `json:"to"`
}

var errNoPrompter = errors.New("no interactive prompter; grant access with the permissions command")

// components are the long-lived parts shared by every command.
type components struct {
	logger     *slog.Logger
	store      *store.Store
	interviews *interviewservice.Service
	resources  *resource.Resolver
	provider   *permission.FileProvider
	gate       *permission.Gate
	bus        *ipc.Bus
	registry   *capture.Registry
	handlers   *host.Handlers
}

func (c *components) close() {
	if c.bus != nil {
		c.bus.Close()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logOutput == nil {
		app.logOutput = os.Stdout
	}
	if app.in == nil {
		app.in = os.Stdin
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	return app, nil
}

// build wires the store, permission gate, negotiation bus and host handlers.
func (a *application) build(ctx context.Context) (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_dir", cfg.Store.Dir),
		slog.String("resources_dir", cfg.Resources.Dir),
		slog.String("permissions_file", cfg.Permissions.File),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := store.Open(ctx, cfg.Store.Options())
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	res, err := resource.NewResolver(cfg.Resources.Dir)
	if err != nil {
		return nil, fmt.Errorf("init resources: %w", err)
	}

	prompter := a.prompter
	if prompter == nil {
		prompter = permission.PrompterFunc(func(context.Context, permission.Capability) (bool, error) {
			return false, errNoPrompter
		})
	}
	provider := permission.NewFileProvider(cfg.Permissions.File, prompter)

	enum := a.enumerator
	if enum == nil {
		enum = capture.NewX11Enumerator(logger)
	}

	bus := ipc.NewBus(logger)
	registry := capture.NewRegistry(enum, cfg.Capture.Options(), logger)

	return &components{
		logger:     logger,
		store:      st,
		interviews: interviewservice.New(st),
		resources:  res,
		provider:   provider,
		gate:       permission.NewGate(provider, logger),
		bus:        bus,
		registry:   registry,
		handlers:   host.Register(bus.Host(), registry, res, logger),
	}, nil
}

func (a *application) checkStartup(ctx context.Context, c *components) permission.Report {
	dialog := a.dialog
	if dialog == nil {
		dialog = permission.LogDialog{Logger: c.logger}
	}
	opener := a.opener
	if opener == nil {
		opener = permission.NewExecOpener(runtime.GOOS, a.config.Permissions.URLs())
	}
	return c.gate.CheckStartup(ctx, dialog, opener)
}

func (a *application) newController(c *components) *session.Controller {
	acq := a.acquirer
	if acq == nil {
		acq = session.NewFFmpegAcquirer(a.config.Recorder.Options(), c.logger)
	}
	return session.NewController(acq, c.store, c.logger)
}

// Run starts the capture host with its HTTP bridge and blocks until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	if cfg.Permissions.CheckOnStartup {
		report := app.checkStartup(ctx, c)
		logger.Info("Permission check complete",
			slog.String("screen", string(report.Screen)),
			slog.String("camera", string(report.Camera)),
			slog.String("microphone", string(report.Microphone)))
	}

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	bridge := api.NewBridge(c.bus, broker, logger)
	defer bridge.Close()

	g, gCtx := errgroup.WithContext(ctx)

	// Built-in recorder window driven by source selections.
	var ctl api.SessionControl
	if cfg.Recorder.Enabled {
		win, err := c.bus.OpenWindow("recorder")
		if err != nil {
			return fmt.Errorf("open recorder window: %w", err)
		}
		bridge.Adopt(win)
		controller := app.newController(c)
		controller.OnChange(func(from, to session.State) {
			broker.Publish(TopicSession, sse.Event{Type: "state", Data: sessionChange{From: from, To: to}})
		})
		detach := controller.Attach(gCtx, win)
		defer func() {
			detach()
			controller.Abandon(context.Background())
		}()
		ctl = controller
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.store.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(c.interviews, ctl, cfg.App.HTTP.LoopbackOnly, broker))
	r.Group(func(r chi.Router) {
		r.Use(api.LoopbackOnly(cfg.App.HTTP.LoopbackOnly))
		r.Mount("/ipc", bridge.Routes())
		r.Get("/app-resource/*", api.ResourceHandler(c.resources))
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Out-of-band grants and revocations reach the active window and SSE clients.
	g.Go(func() error {
		err := c.provider.Watch(gCtx, logger, func(capability permission.Capability, st permission.Status) {
			c.handlers.PermissionChanged(capability, st)
			broker.Publish(TopicPermissions, sse.Event{
				Type: ipc.ChannelPermissionChanged,
				Data: host.PermissionChange{Capability: capability, Status: st},
			})
		})
		if err != nil {
			logger.Warn("permission watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		// Event streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server is asked to stop, so the
// watcher exits too.
var errShutdown = errors.New("shutdown")
