package middleware

import (
	"mime"
	"net/url"

	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// ParameterPollution collapses repeated query keys, and repeated keys of
// urlencoded bodies, to their last value. The full lists are kept on the
// context as PollutedQuery and PollutedBody. Whitelisted keys keep every
// value.
type ParameterPollution struct {
	Whitelist map[string]bool
}

// NewParameterPollution creates the guard with an optional whitelist.
func NewParameterPollution(whitelist ...string) *ParameterPollution {
	wl := make(map[string]bool, len(whitelist))
	for _, k := range whitelist {
		wl[k] = true
	}
	return &ParameterPollution{Whitelist: wl}
}

func (s *ParameterPollution) Name() string { return "parameter-pollution" }

func (s *ParameterPollution) Process(c *pipeline.Context) pipeline.Result {
	c.PollutedQuery = s.collapse(c.Query)

	mediaType, _, _ := mime.ParseMediaType(c.Request.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		c.PollutedBody = s.collapse(c.Form)
	}
	return pipeline.Continue()
}

func (s *ParameterPollution) collapse(v url.Values) url.Values {
	polluted := url.Values{}
	for key, vals := range v {
		if len(vals) < 2 || s.Whitelist[key] {
			continue
		}
		polluted[key] = append([]string(nil), vals...)
		v[key] = []string{vals[len(vals)-1]}
	}
	return polluted
}
