package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type contextKey struct{}

// Context is the per-request state threaded through every stage. It is owned
// by a single request and never shared.
type Context struct {
	// Request is the current request. Stages may replace it.
	Request *http.Request
	// Response records status and size of whatever is written.
	Response middleware.WrapResponseWriter

	RequestID string
	Start     time.Time

	// Body is the decoded JSON body (map[string]any or []any), nil if none.
	Body    any
	RawBody []byte

	Cookies map[string]string

	// Query is the working copy of the URL query; it is written back to the
	// request before routing.
	Query url.Values
	// Form holds urlencoded or multipart non-file fields.
	Form  url.Values
	Files map[string][]*multipart.FileHeader

	// PollutedQuery and PollutedBody keep every value of keys the
	// parameter pollution guard collapsed.
	PollutedQuery url.Values
	PollutedBody  url.Values

	bodyChanged bool
	errors      ErrorHandler
	onComplete  []func(*Context)
}

func newContext(w middleware.WrapResponseWriter, r *http.Request, requestID string, errs ErrorHandler) *Context {
	return &Context{
		Request:   r,
		Response:  w,
		RequestID: requestID,
		Start:     time.Now(),
		Cookies:   map[string]string{},
		Query:     r.URL.Query(),
		Files:     map[string][]*multipart.FileHeader{},
		errors:    errs,
	}
}

// FromRequest returns the pipeline context attached to r, or nil.
func FromRequest(r *http.Request) *Context {
	c, _ := r.Context().Value(contextKey{}).(*Context)
	return c
}

// SetBody replaces the decoded body. The forwarded request body is
// re-encoded from it before routing.
func (c *Context) SetBody(v any) {
	c.Body = v
	c.bodyChanged = true
}

// OnComplete registers fn to run once the request finished, after the
// response was written.
func (c *Context) OnComplete(fn func(*Context)) {
	c.onComplete = append(c.onComplete, fn)
}

// Status returns the status written so far, 0 if nothing was written.
func (c *Context) Status() int {
	return c.Response.Status()
}

func (c *Context) complete() {
	for _, fn := range c.onComplete {
		fn(c)
	}
}

// commit writes the stage-processed query, form and body back onto the
// request handed to the router.
func (c *Context) commit() {
	r := c.Request

	if c.Query != nil && (len(c.Query) > 0 || r.URL.RawQuery != "") {
		u := *r.URL
		u.RawQuery = c.Query.Encode()
		r.URL = &u
	}

	if c.Form != nil {
		r.PostForm = c.Form
		merged := url.Values{}
		for k, vs := range c.Form {
			merged[k] = append(merged[k], vs...)
		}
		for k, vs := range c.Query {
			merged[k] = append(merged[k], vs...)
		}
		r.Form = merged
		if r.MultipartForm != nil {
			r.MultipartForm.Value = c.Form
		}
	}

	if c.bodyChanged {
		if raw, err := json.Marshal(c.Body); err == nil {
			c.RawBody = raw
			r.Body = io.NopCloser(bytes.NewReader(raw))
			r.ContentLength = int64(len(raw))
			r.Header.Set("Content-Length", strconv.Itoa(len(raw)))
		}
	} else if c.RawBody != nil {
		r.Body = io.NopCloser(bytes.NewReader(c.RawBody))
	}

	c.Request = r
}

// FailRequest sends err to the error stage of the pipeline serving r. Route
// handlers use it to surface failures. Outside a pipeline it panics so an
// enclosing recover can deal with it.
func FailRequest(w http.ResponseWriter, r *http.Request, err error) {
	c := FromRequest(r)
	if c == nil || c.errors == nil {
		panic(err)
	}
	c.errors.HandleError(w, r, err)
}

func withContext(r *http.Request, c *Context) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), contextKey{}, c))
}
