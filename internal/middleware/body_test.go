package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
)

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bootcamps", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestBodyParser_JSON(t *testing.T) {
	out := run(t, jsonRequest(`{"name":"Devworks","rating":8}`), NewBodyParser(0))
	out.wantReached(t)

	body, ok := out.ctx.Body.(map[string]any)
	if !ok {
		t.Fatalf("body = %#v", out.ctx.Body)
	}
	if body["name"] != "Devworks" {
		t.Errorf("name = %v", body["name"])
	}
	if n, ok := body["rating"].(json.Number); !ok || n.String() != "8" {
		t.Errorf("rating = %#v, want json.Number 8", body["rating"])
	}
}

func TestBodyParser_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind domain.ErrorKind
	}{
		{"malformed", `{"name":`, domain.KindMalformedInput},
		{"trailing garbage", `{"a":1} x`, domain.KindMalformedInput},
		{"scalar top level", `"just a string"`, domain.KindMalformedInput},
		{"too large", `{"name":"` + strings.Repeat("a", 200) + `"}`, domain.KindPayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, jsonRequest(tt.body), NewBodyParser(128))
			if out.reached {
				t.Fatal("request reached the router")
			}
			out.wantKind(t, tt.kind)
		})
	}
}

func TestBodyParser_TooLargeStatus(t *testing.T) {
	out := run(t, jsonRequest(`[`+strings.Repeat(`1,`, 100)+`1]`), NewBodyParser(64))
	if out.rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", out.rec.Code)
	}
}

func TestBodyParser_PassThrough(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"no content type", "", `{"a":1}`},
		{"plain text", "text/plain", "hello"},
		{"empty json", "application/json", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			out := run(t, req, NewBodyParser(0))
			out.wantReached(t)
			if out.ctx.Body != nil {
				t.Errorf("body = %#v, want nil", out.ctx.Body)
			}
		})
	}
}

func TestBodyParser_VendorJSONAndReplay(t *testing.T) {
	var forwarded string
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":[1,2]}`))
	req.Header.Set("Content-Type", "application/vnd.api+json; charset=utf-8")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		forwarded = string(raw)
	})
	pipeline.New(handler, pipeline.ErrorHandlerFunc(func(w http.ResponseWriter, r *http.Request, err error) {
		t.Errorf("unexpected error: %v", err)
	}), []pipeline.Stage{NewBodyParser(0)}).ServeHTTP(httptest.NewRecorder(), req)

	if forwarded != `{"a":[1,2]}` {
		t.Errorf("forwarded body = %q", forwarded)
	}
}

func TestBodyParser_URLEncoded(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("name=a&name=b&city=Boston"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out := run(t, req, NewBodyParser(0))
	out.wantReached(t)

	if got := out.ctx.Form["name"]; len(got) != 2 {
		t.Errorf("form name = %v", got)
	}
	if out.ctx.Request.PostForm.Get("city") != "Boston" {
		t.Errorf("PostForm not committed: %v", out.ctx.Request.PostForm)
	}
}
