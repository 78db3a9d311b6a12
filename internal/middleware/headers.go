package middleware

import (
	"github.com/unrolled/secure"

	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// DefaultSecureOptions mirror helmet's default header set.
var DefaultSecureOptions = secure.Options{
	XDNSPrefetchControl:     "off",
	CustomFrameOptionsValue: "SAMEORIGIN",
	STSSeconds:              15552000,
	STSIncludeSubdomains:    true,
	ForceSTSHeader:          true,
	ContentTypeNosniff:      true,
	BrowserXssFilter:        true,
}

// SecureHeaders sets the security header set before anything downstream
// writes the response.
type SecureHeaders struct {
	secure *secure.Secure
}

// NewSecureHeaders creates the stage with DefaultSecureOptions.
func NewSecureHeaders() *SecureHeaders {
	return NewSecureHeadersWithOptions(DefaultSecureOptions)
}

// NewSecureHeadersWithOptions creates the stage from explicit unrolled/secure options.
func NewSecureHeadersWithOptions(opts secure.Options) *SecureHeaders {
	return &SecureHeaders{secure: secure.New(opts)}
}

func (s *SecureHeaders) Name() string { return "secure-headers" }

func (s *SecureHeaders) Process(c *pipeline.Context) pipeline.Result {
	if err := s.secure.Process(c.Response, c.Request); err != nil {
		return pipeline.Fail(domain.ErrValidation("Request rejected").WithCause(err))
	}

	h := c.Response.Header()
	// secure has no option for this one.
	h.Set("X-Download-Options", "noopen")
	h.Del("X-Powered-By")
	return pipeline.Continue()
}
