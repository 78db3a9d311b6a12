// Package middleware contains the request pipeline stages registered by the
// runtime, in the order they run.
package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// DefaultBodyLimit caps JSON and urlencoded bodies.
const DefaultBodyLimit = 100 * 1024

// MessageEntityTooLarge is returned when a body exceeds its limit.
const MessageEntityTooLarge = "request entity too large"

// BodyParser decodes JSON and urlencoded request bodies into the pipeline
// context. Other content types pass through untouched.
type BodyParser struct {
	Limit int64
}

// NewBodyParser creates a body parser; limit <= 0 selects DefaultBodyLimit.
func NewBodyParser(limit int64) *BodyParser {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return &BodyParser{Limit: limit}
}

func (s *BodyParser) Name() string { return "body-parser" }

func (s *BodyParser) Process(c *pipeline.Context) pipeline.Result {
	r := c.Request
	if r.Body == nil || r.Body == http.NoBody {
		return pipeline.Continue()
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return pipeline.Continue()
	}

	switch {
	case isJSON(mediaType):
		raw, err := s.read(c)
		if err != nil {
			return pipeline.Fail(err)
		}
		c.RawBody = raw
		if len(bytes.TrimSpace(raw)) == 0 {
			return pipeline.Continue()
		}
		body, err := decodeJSON(raw)
		if err != nil {
			return pipeline.Fail(err)
		}
		c.Body = body
	case mediaType == "application/x-www-form-urlencoded":
		raw, err := s.read(c)
		if err != nil {
			return pipeline.Fail(err)
		}
		c.RawBody = raw
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return pipeline.Fail(domain.ErrMalformedInput("Invalid form body").WithCause(err))
		}
		c.Form = form
	}

	return pipeline.Continue()
}

func (s *BodyParser) read(c *pipeline.Context) ([]byte, error) {
	if c.Request.ContentLength > s.Limit {
		return nil, domain.ErrPayloadTooLarge(MessageEntityTooLarge)
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Response, c.Request.Body, s.Limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrPayloadTooLarge(MessageEntityTooLarge).WithCause(err)
		}
		return nil, domain.ErrMalformedInput("Unable to read request body").WithCause(err)
	}
	return raw, nil
}

// decodeJSON accepts only objects and arrays at the top level.
func decodeJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, domain.ErrMalformedInput("Invalid JSON: top level must be an object or array")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, domain.ErrMalformedInput(fmt.Sprintf("Invalid JSON: %v", err)).WithCause(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, domain.ErrMalformedInput("Invalid JSON: unexpected data after top-level value")
	}
	return body, nil
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
