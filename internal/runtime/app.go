// Package runtime composes configuration, store, request pipeline, route
// table and server into a runnable application.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ezotic/devcamper-api/internal/codec"
	"github.com/ezotic/devcamper-api/internal/config"
	"github.com/ezotic/devcamper-api/internal/middleware"
	"github.com/ezotic/devcamper-api/internal/pipeline"
	"github.com/ezotic/devcamper-api/internal/resource"
	"github.com/ezotic/devcamper-api/internal/routes"
	"github.com/ezotic/devcamper-api/internal/server"
	"github.com/ezotic/devcamper-api/internal/storage"
	"github.com/ezotic/devcamper-api/internal/storage/connector"
	"github.com/ezotic/devcamper-api/internal/telemetry"
)

// ServiceName identifies the service in traces.
const ServiceName = "devcamper-api"

// ShutdownTimeout bounds graceful shutdown in Run.
const ShutdownTimeout = 30 * time.Second

// App is the assembled application.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	store  storage.DocumentStore
	faults server.FaultSink
	groups map[string]routes.Group

	now         func() time.Time
	traceWriter io.Writer

	pipeline *pipeline.Pipeline
	handler  http.Handler
	server   *server.Server

	shutdownTracer telemetry.ShutdownFunc
}

// New assembles the application. A store is required.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}

	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
		groups: make(map[string]routes.Group),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.store == nil {
		return nil, fmt.Errorf("store required (use WithStore)")
	}
	if a.faults == nil {
		a.faults = server.LogSink{Logger: a.logger}
	}

	table, err := a.routeTable()
	if err != nil {
		return nil, err
	}

	errs := codec.NewErrorHandler(a.logger, cfg.IsDevelopment())
	a.pipeline = pipeline.New(table.Router(), errs, a.stages(), pipeline.WithLogger(a.logger))

	var handler http.Handler = a.pipeline
	if cfg.TrustProxy {
		handler = chimw.RealIP(handler)
	}
	if cfg.Tracing {
		handler = telemetry.Handler(handler, ServiceName)
	}
	a.handler = handler

	return a, nil
}

// stages returns the request pipeline in execution order.
func (a *App) stages() []pipeline.Stage {
	limiter := middleware.NewRateLimiter(a.cfg.RateLimit.Window, a.cfg.RateLimit.Max)
	if a.now != nil {
		limiter.Now = a.now
	}

	stages := []pipeline.Stage{
		middleware.NewBodyParser(a.cfg.Body.Limit),
		middleware.CookieParser{},
	}
	if a.cfg.IsDevelopment() {
		stages = append(stages, middleware.NewRequestLogger(a.logger))
	}
	return append(stages,
		middleware.NewFileUpload(a.cfg.Upload.MaxBytes),
		middleware.NewSanitizer("", a.logger),
		middleware.NewSecureHeaders(),
		middleware.XSSFilter{},
		limiter,
		middleware.NewParameterPollution(),
		middleware.NewCORS(),
		middleware.NewStatic(a.cfg.PublicDir),
	)
}

func (a *App) routeTable() (*routes.Table, error) {
	groups := map[string]routes.Group{
		routes.PrefixBootcamps: resource.NewGroup(a.store, "bootcamps", a.logger).WithUploads(a.cfg.Upload.Dir),
		routes.PrefixCourses:   resource.NewGroup(a.store, "courses", a.logger),
		routes.PrefixAuth:      resource.AuthGroup{},
		routes.PrefixUsers:     resource.NewGroup(a.store, "users", a.logger),
		routes.PrefixReviews:   resource.NewGroup(a.store, "reviews", a.logger),
	}
	for prefix, g := range a.groups {
		groups[prefix] = g
	}

	table := routes.NewTable()
	for prefix, g := range groups {
		if err := table.Add(prefix, g); err != nil {
			return nil, fmt.Errorf("mount routes: %w", err)
		}
	}
	return table, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Stages returns the pipeline stage names in execution order.
func (a *App) Stages() []string {
	return a.pipeline.Stages()
}

// Start initializes tracing when enabled and starts serving. It returns
// once the port is bound.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.Tracing {
		shutdown, err := telemetry.InitTracer(ServiceName, a.traceWriter, a.logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		a.shutdownTracer = shutdown
	}

	a.server = server.New(a.handler, a.cfg.Port, a.cfg.Env, a.logger, a.faults)
	if err := a.server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// Addr returns the bound address, nil before Start.
func (a *App) Addr() net.Addr {
	if a.server == nil {
		return nil
	}
	return a.server.Addr()
}

// Shutdown gracefully stops the server and releases the store.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close store", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Connect opens the store named by cfg. Callers abort startup on error.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.DocumentStore, error) {
	store, err := connector.Open(ctx, cfg.Store.URI, cfg.Store.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("store connected", slog.String("uri", connector.Redact(cfg.Store.URI)))
	return store, nil
}

// Run connects the store, serves until ctx is cancelled and then shuts
// down. Store or bind failures are returned before anything is served.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) error {
	store, err := Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	app, err := New(cfg, append([]Option{WithLogger(logger), WithStore(store)}, opts...)...)
	if err != nil {
		store.Close()
		return err
	}

	if err := app.Start(ctx); err != nil {
		store.Close()
		return err
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}
