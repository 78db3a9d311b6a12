package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// CORS applies cross-origin headers. Preflight requests are answered here
// with an empty 200 and never reach the router.
type CORS struct {
	handler http.Handler
}

// NewCORS allows any origin and any request header.
func NewCORS() *CORS {
	return NewCORSWithOptions(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	})
}

// NewCORSWithOptions creates the stage from explicit go-chi/cors options.
func NewCORSWithOptions(opts cors.Options) *CORS {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	return &CORS{handler: cors.New(opts).Handler(noop)}
}

func (s *CORS) Name() string { return "cors" }

func (s *CORS) Process(c *pipeline.Context) pipeline.Result {
	r := c.Request
	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		s.handler.ServeHTTP(c.Response, r)
		if c.Status() == 0 {
			c.Response.WriteHeader(http.StatusOK)
		}
		return pipeline.Halt()
	}

	s.handler.ServeHTTP(c.Response, r)
	return pipeline.Continue()
}
