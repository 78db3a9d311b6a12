package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
)

// outcome is what a request looked like after running through stages.
type outcome struct {
	rec     *httptest.ResponseRecorder
	ctx     *pipeline.Context
	reached bool
	err     error
}

// run drives req through stages into a recording terminal handler.
func run(t *testing.T, req *http.Request, stages ...pipeline.Stage) *outcome {
	t.Helper()
	out := &outcome{rec: httptest.NewRecorder()}

	terminal := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out.reached = true
		out.ctx = pipeline.FromRequest(r)
		w.WriteHeader(http.StatusOK)
	})
	errs := pipeline.ErrorHandlerFunc(func(w http.ResponseWriter, r *http.Request, err error) {
		out.err = err
		out.ctx = pipeline.FromRequest(r)
		status := http.StatusInternalServerError
		if apiErr, ok := domain.AsAPIError(err); ok {
			status = apiErr.HTTPStatusCode()
		}
		w.WriteHeader(status)
	})

	pipeline.New(terminal, errs, stages).ServeHTTP(out.rec, req)
	return out
}

func (o *outcome) wantKind(t *testing.T, kind domain.ErrorKind) {
	t.Helper()
	apiErr, ok := domain.AsAPIError(o.err)
	if !ok {
		t.Fatalf("expected %s error, got %v", kind, o.err)
	}
	if apiErr.Kind != kind {
		t.Fatalf("kind = %s, want %s (%v)", apiErr.Kind, kind, o.err)
	}
}

func (o *outcome) wantReached(t *testing.T) {
	t.Helper()
	if !o.reached {
		t.Fatalf("request did not reach the router (status %d, err %v)", o.rec.Code, o.err)
	}
}

func checkHeader(t *testing.T, h http.Header, key, want string) {
	t.Helper()
	if got := h.Get(key); got != want {
		t.Errorf("header %s = %q, want %q", key, got, want)
	}
}
