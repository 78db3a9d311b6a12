package middleware

import (
	"net/url"

	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// CookieParser exposes the Cookie header as a name to value map. The first
// occurrence of a repeated name wins.
type CookieParser struct{}

func (CookieParser) Name() string { return "cookie-parser" }

func (CookieParser) Process(c *pipeline.Context) pipeline.Result {
	for _, ck := range c.Request.Cookies() {
		if _, seen := c.Cookies[ck.Name]; seen {
			continue
		}
		value := ck.Value
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		c.Cookies[ck.Name] = value
	}
	return pipeline.Continue()
}
