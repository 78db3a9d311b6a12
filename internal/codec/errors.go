// Package codec writes the JSON envelopes every route and the error stage
// respond with, and maps internal errors onto client-facing ones.
package codec

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
	"github.com/ezotic/devcamper-api/internal/storage"
)

// Messages used when an error carries no client-facing text of its own.
const (
	MessageServerError      = "Server Error"
	MessageResourceNotFound = "Resource not found"
	MessageDuplicateField   = "Duplicate field value entered"
)

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ToCanonicalError converts any error to a domain.APIError. Known store
// errors are mapped to their client-facing kinds; everything else becomes
// an internal error whose message is only exposed when verbose is set.
func ToCanonicalError(err error, verbose bool) *domain.APIError {
	if apiErr, ok := domain.AsAPIError(err); ok {
		return apiErr
	}

	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidID):
		return domain.ErrNotFound(MessageResourceNotFound).WithCause(err)
	case errors.Is(err, storage.ErrDuplicate):
		return domain.ErrValidation(MessageDuplicateField).WithCause(err)
	}

	msg := MessageServerError
	if verbose && err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return domain.ErrInternal(msg).WithCause(err)
}

// ErrorHandler is the centralized error stage. It is the only place that
// turns an error into a response.
type ErrorHandler struct {
	logger  *slog.Logger
	verbose bool
}

// NewErrorHandler creates the error stage. With verbose set, unclassified
// errors show their own message instead of "Server Error".
func NewErrorHandler(logger *slog.Logger, verbose bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger, verbose: verbose}
}

// HandleError implements pipeline.ErrorHandler.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	apiErr := ToCanonicalError(err, h.verbose)
	status := apiErr.HTTPStatusCode()

	attrs := []any{
		slog.String("request_id", requestID(r)),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("kind", string(apiErr.Kind)),
		slog.String("error", err.Error()),
	}

	if headersWritten(w) {
		h.logger.Error("error after response started", attrs...)
		return
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", attrs...)
	} else {
		h.logger.Warn("request rejected", attrs...)
	}

	WriteJSON(w, status, ErrorResponse{Success: false, Error: apiErr.Message})
}

// WriteError renders err through the error stage serving r, or through a
// default handler outside a pipeline.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if pipeline.FromRequest(r) != nil {
		pipeline.FailRequest(w, r, err)
		return
	}
	NewErrorHandler(nil, false).HandleError(w, r, err)
}

// Handle adapts a handler that returns an error. Any error goes to the
// error stage.
func Handle(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			WriteError(w, r, err)
		}
	}
}

func headersWritten(w http.ResponseWriter) bool {
	ww, ok := w.(middleware.WrapResponseWriter)
	return ok && ww.Status() != 0
}

func requestID(r *http.Request) string {
	if c := pipeline.FromRequest(r); c != nil {
		return c.RequestID
	}
	return middleware.GetReqID(r.Context())
}
