package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// Sanitizer strips store query operators from request input: any key that
// starts with "$" or contains "." is removed from the query, the JSON body
// (at any depth), the form and the header names. With a non-empty
// Replacement the offending characters are rewritten instead.
type Sanitizer struct {
	Replacement string
	logger      *slog.Logger
}

// NewSanitizer creates a sanitizer stage.
func NewSanitizer(replacement string, logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{Replacement: replacement, logger: logger}
}

func (s *Sanitizer) Name() string { return "sanitizer" }

func (s *Sanitizer) Process(c *pipeline.Context) pipeline.Result {
	var touched []string

	if s.values(c.Query) {
		touched = append(touched, "query")
	}
	if s.values(c.Form) {
		touched = append(touched, "form")
	}
	if c.Body != nil {
		if body, changed := s.value(c.Body); changed {
			c.SetBody(body)
			touched = append(touched, "body")
		}
	}
	if s.headers(c.Request.Header) {
		touched = append(touched, "headers")
	}

	if len(touched) > 0 {
		s.logger.Warn("sanitized prohibited keys",
			slog.String("request_id", c.RequestID),
			slog.Any("sources", touched),
		)
	}
	return pipeline.Continue()
}

// IsProhibitedKey reports whether key could act as a store operator. Keys
// in bracket notation are checked per segment, so "cost[$gt]" is
// prohibited too.
func IsProhibitedKey(key string) bool {
	for _, seg := range keySegments(key) {
		if strings.HasPrefix(seg, "$") || strings.Contains(seg, ".") {
			return true
		}
	}
	return false
}

func keySegments(key string) []string {
	return strings.FieldsFunc(key, func(r rune) bool { return r == '[' || r == ']' })
}

func (s *Sanitizer) rewrite(key string) (string, bool) {
	if s.Replacement == "" {
		return "", false
	}
	var b strings.Builder
	atSegment := true
	for _, r := range key {
		switch {
		case r == '[' || r == ']':
			b.WriteRune(r)
			atSegment = true
			continue
		case r == '$' && atSegment, r == '.':
			b.WriteString(s.Replacement)
		default:
			b.WriteRune(r)
		}
		atSegment = false
	}
	return b.String(), true
}

func (s *Sanitizer) values(v url.Values) bool {
	changed := false
	for key, vals := range v {
		if !IsProhibitedKey(key) {
			continue
		}
		delete(v, key)
		changed = true
		if nk, ok := s.rewrite(key); ok {
			v[nk] = append(v[nk], vals...)
		}
	}
	return changed
}

func (s *Sanitizer) value(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		changed := false
		out := make(map[string]any, len(t))
		for key, child := range t {
			clean, childChanged := s.value(child)
			changed = changed || childChanged
			if IsProhibitedKey(key) {
				changed = true
				nk, ok := s.rewrite(key)
				if !ok {
					continue
				}
				key = nk
			}
			out[key] = clean
		}
		return out, changed
	case []any:
		changed := false
		out := make([]any, len(t))
		for i, child := range t {
			clean, childChanged := s.value(child)
			changed = changed || childChanged
			out[i] = clean
		}
		return out, changed
	default:
		return v, false
	}
}

func (s *Sanitizer) headers(h http.Header) bool {
	changed := false
	for key, vals := range h {
		if !IsProhibitedKey(key) {
			continue
		}
		delete(h, key)
		changed = true
		if nk, ok := s.rewrite(key); ok {
			h[http.CanonicalHeaderKey(nk)] = vals
		}
	}
	return changed
}
