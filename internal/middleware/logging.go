package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// RequestLogger emits one structured record per request once the response
// is complete. The runtime only registers it in development mode.
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logger stage.
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestLogger{logger: logger}
}

func (s *RequestLogger) Name() string { return "request-logger" }

func (s *RequestLogger) Process(c *pipeline.Context) pipeline.Result {
	method := c.Request.Method
	path := c.Request.URL.RequestURI()

	c.OnComplete(func(c *pipeline.Context) {
		status := c.Status()
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		s.logger.LogAttrs(c.Request.Context(), level, "request completed",
			slog.String("request_id", c.RequestID),
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(c.Start)),
			slog.Int("bytes", c.Response.BytesWritten()),
			slog.String("remote_addr", c.Request.RemoteAddr),
		)
	})

	return pipeline.Continue()
}
