package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ezotic/devcamper-api/internal/domain"
)

// RequestIDHeader carries the per-request id on every response.
const RequestIDHeader = "X-Request-ID"

// ErrorHandler is the terminal error stage. It must write exactly one
// response (or only log if one was already started) and never panic.
type ErrorHandler interface {
	HandleError(w http.ResponseWriter, r *http.Request, err error)
}

// ErrorHandlerFunc adapts a function into an ErrorHandler.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

func (f ErrorHandlerFunc) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	f(w, r, err)
}

// Pipeline runs an ordered list of stages in front of a terminal handler.
type Pipeline struct {
	stages []Stage
	next   http.Handler
	errors ErrorHandler
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for recovered panics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline. Stage order is fixed at construction.
func New(next http.Handler, errs ErrorHandler, stages []Stage, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: append([]Stage(nil), stages...),
		next:   next,
		errors: errs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// ServeHTTP drives one request through every stage and then the terminal
// handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	c := newContext(ww, r, uuid.New().String(), p.errors)
	c.Request = withContext(r, c)
	ww.Header().Set(RequestIDHeader, c.RequestID)

	defer c.complete()
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			p.fail(c, p.recovered(c, rec))
		}
	}()

	for _, s := range p.stages {
		res := s.Process(c)
		switch res.Action {
		case ActionContinue:
			continue
		case ActionHalt:
			return
		case ActionFail:
			err := res.Err
			if err == nil {
				err = domain.ErrInternal(fmt.Sprintf("stage %s failed", s.Name()))
			}
			p.fail(c, err)
			return
		default:
			p.fail(c, domain.ErrInternal(fmt.Sprintf("stage %s returned %s", s.Name(), res.Action)))
			return
		}
	}

	c.commit()
	p.next.ServeHTTP(c.Response, c.Request)
}

func (p *Pipeline) fail(c *Context, err error) {
	p.errors.HandleError(c.Response, c.Request, err)
}

func (p *Pipeline) recovered(c *Context, rec any) error {
	p.logger.Error("panic recovered",
		slog.String("request_id", c.RequestID),
		slog.Any("panic", rec),
		slog.String("stack", string(debug.Stack())),
	)

	if err, ok := rec.(error); ok {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			return err
		}
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}
