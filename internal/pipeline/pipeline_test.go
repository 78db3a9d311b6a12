package pipeline

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ezotic/devcamper-api/internal/domain"
)

// recordingErrors captures what reached the error stage.
type recordingErrors struct {
	errs []error
}

func (h *recordingErrors) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	h.errs = append(h.errs, err)
	status := http.StatusInternalServerError
	if apiErr, ok := domain.AsAPIError(err); ok {
		status = apiErr.HTTPStatusCode()
	}
	w.WriteHeader(status)
}

func recordStage(name string, trace *[]string, res Result) Stage {
	return StageFunc(name, func(c *Context) Result {
		*trace = append(*trace, name)
		return res
	})
}

func okHandler(trace *[]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*trace = append(*trace, "router")
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================================================
// Ordering and results
// ============================================================================

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	var trace []string
	errs := &recordingErrors{}
	p := New(okHandler(&trace), errs, []Stage{
		recordStage("a", &trace, Continue()),
		recordStage("b", &trace, Continue()),
		recordStage("c", &trace, Continue()),
	})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := "a,b,c,router"
	if got := strings.Join(trace, ","); got != want {
		t.Errorf("trace = %s, want %s", got, want)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if len(errs.errs) != 0 {
		t.Errorf("error stage invoked: %v", errs.errs)
	}
}

func TestPipeline_HaltStopsChain(t *testing.T) {
	var trace []string
	errs := &recordingErrors{}
	halting := StageFunc("halt", func(c *Context) Result {
		trace = append(trace, "halt")
		c.Response.WriteHeader(http.StatusNoContent)
		return Halt()
	})
	p := New(okHandler(&trace), errs, []Stage{
		recordStage("a", &trace, Continue()),
		halting,
		recordStage("c", &trace, Continue()),
	})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	if got := strings.Join(trace, ","); got != "a,halt" {
		t.Errorf("trace = %s, want a,halt", got)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if len(errs.errs) != 0 {
		t.Error("halt must not reach the error stage")
	}
}

func TestPipeline_FailGoesToErrorStage(t *testing.T) {
	var trace []string
	errs := &recordingErrors{}
	p := New(okHandler(&trace), errs, []Stage{
		recordStage("a", &trace, Fail(domain.ErrMalformedInput("bad json"))),
		recordStage("b", &trace, Continue()),
	})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if got := strings.Join(trace, ","); got != "a" {
		t.Errorf("trace = %s, want a", got)
	}
	if len(errs.errs) != 1 {
		t.Fatalf("error stage called %d times, want 1", len(errs.errs))
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPipeline_FailWithoutError(t *testing.T) {
	errs := &recordingErrors{}
	p := New(http.NotFoundHandler(), errs, []Stage{
		StageFunc("empty", func(c *Context) Result { return Result{Action: ActionFail} }),
	})

	p.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(errs.errs) != 1 || errs.errs[0] == nil {
		t.Fatalf("expected a synthesized error, got %v", errs.errs)
	}
}

// ============================================================================
// Panics
// ============================================================================

func TestPipeline_RecoversStagePanic(t *testing.T) {
	errs := &recordingErrors{}
	p := New(http.NotFoundHandler(), errs, []Stage{
		StageFunc("boom", func(c *Context) Result { panic("boom") }),
	})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if len(errs.errs) != 1 || !strings.Contains(errs.errs[0].Error(), "boom") {
		t.Errorf("errs = %v", errs.errs)
	}
}

func TestPipeline_RecoversHandlerPanicKeepingKind(t *testing.T) {
	errs := &recordingErrors{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(domain.ErrNotFound("Resource not found"))
	})
	p := New(handler, errs, nil)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// ============================================================================
// Context
// ============================================================================

func TestPipeline_RequestIDAndCompletion(t *testing.T) {
	var seenID string
	var completedStatus int
	errs := &recordingErrors{}
	stage := StageFunc("observe", func(c *Context) Result {
		seenID = c.RequestID
		c.OnComplete(func(c *Context) { completedStatus = c.Status() })
		return Continue()
	})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromRequest(r) == nil {
			t.Error("handler cannot see pipeline context")
		}
		w.WriteHeader(http.StatusCreated)
	})
	p := New(handler, errs, []Stage{stage})

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seenID == "" || rec.Header().Get(RequestIDHeader) != seenID {
		t.Errorf("request id header = %q, stage saw %q", rec.Header().Get(RequestIDHeader), seenID)
	}
	if completedStatus != http.StatusCreated {
		t.Errorf("completion saw status %d, want 201", completedStatus)
	}
}

func TestPipeline_CommitsMutations(t *testing.T) {
	errs := &recordingErrors{}
	stage := StageFunc("mutate", func(c *Context) Result {
		c.Query.Set("sort", "name")
		c.Query.Del("$where")
		c.SetBody(map[string]any{"name": "clean"})
		return Continue()
	})

	var gotQuery, gotBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
	})
	p := New(handler, errs, []Stage{stage})

	req := httptest.NewRequest(http.MethodPost, "/?$where=1", strings.NewReader(`{"name":"<b>x</b>"}`))
	p.ServeHTTP(httptest.NewRecorder(), req)

	if gotQuery != "sort=name" {
		t.Errorf("query = %q, want sort=name", gotQuery)
	}
	if gotBody != `{"name":"clean"}` {
		t.Errorf("body = %q", gotBody)
	}
}

func TestFailRequest_OutsidePipelinePanics(t *testing.T) {
	defer func() {
		rec := recover()
		if err, ok := rec.(error); !ok || !errors.Is(err, io.EOF) {
			t.Errorf("recover() = %v, want io.EOF", rec)
		}
	}()
	FailRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), io.EOF)
}

func TestPipeline_Stages(t *testing.T) {
	p := New(http.NotFoundHandler(), &recordingErrors{}, []Stage{
		StageFunc("one", func(*Context) Result { return Continue() }),
		StageFunc("two", func(*Context) Result { return Continue() }),
	})
	if got := strings.Join(p.Stages(), ","); got != "one,two" {
		t.Errorf("Stages() = %s", got)
	}
}
