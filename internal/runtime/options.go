package runtime

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ezotic/devcamper-api/internal/routes"
	"github.com/ezotic/devcamper-api/internal/server"
	"github.com/ezotic/devcamper-api/internal/storage"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		a.logger = logger
		return nil
	}
}

// WithStore uses an already connected store.
func WithStore(store storage.DocumentStore) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}

// WithFaultSink receives failures that escape request handling.
func WithFaultSink(sink server.FaultSink) Option {
	return func(a *App) error {
		a.faults = sink
		return nil
	}
}

// WithRouteGroup replaces the group mounted under prefix, or adds a new one.
func WithRouteGroup(prefix string, group routes.Group) Option {
	return func(a *App) error {
		if group == nil {
			return fmt.Errorf("route group for %s must not be nil", prefix)
		}
		a.groups[prefix] = group
		return nil
	}
}

// WithClock drives the rate limiter windows from now.
func WithClock(now func() time.Time) Option {
	return func(a *App) error {
		a.now = now
		return nil
	}
}

// WithTraceWriter sends exported spans to w instead of stdout.
func WithTraceWriter(w io.Writer) Option {
	return func(a *App) error {
		a.traceWriter = w
		return nil
	}
}
