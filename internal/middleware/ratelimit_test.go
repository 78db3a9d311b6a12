package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ezotic/devcamper-api/internal/domain"
)

// fakeClock is a settable clock for window tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(window time.Duration, max int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(window, max)
	rl.Now = clock.Now
	return rl, clock
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bootcamps", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	rl, _ := newTestLimiter(10*time.Minute, 100)

	for i := 1; i <= 100; i++ {
		out := run(t, requestFrom("10.0.0.1:5555"), rl)
		if !out.reached {
			t.Fatalf("request %d rejected: %v", i, out.err)
		}
		checkHeader(t, out.rec.Header(), "X-RateLimit-Remaining", strconv.Itoa(100-i))
	}

	out := run(t, requestFrom("10.0.0.1:5555"), rl)
	if out.reached {
		t.Fatal("request 101 reached the router")
	}
	out.wantKind(t, domain.KindRateLimit)
	if out.rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", out.rec.Code)
	}
	if out.rec.Header().Get("Retry-After") != "600" {
		t.Errorf("Retry-After = %q, want 600", out.rec.Header().Get("Retry-After"))
	}
	checkHeader(t, out.rec.Header(), "X-RateLimit-Limit", "100")
	checkHeader(t, out.rec.Header(), "X-RateLimit-Remaining", "0")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl, clock := newTestLimiter(time.Minute, 2)

	for i := 0; i < 2; i++ {
		run(t, requestFrom("10.0.0.2:1"), rl).wantReached(t)
	}
	if out := run(t, requestFrom("10.0.0.2:1"), rl); out.reached {
		t.Fatal("third request in window allowed")
	}

	clock.Advance(30 * time.Second)
	if out := run(t, requestFrom("10.0.0.2:1"), rl); out.reached {
		t.Fatal("request inside the same window allowed")
	}

	clock.Advance(31 * time.Second)
	out := run(t, requestFrom("10.0.0.2:1"), rl)
	out.wantReached(t)
	checkHeader(t, out.rec.Header(), "X-RateLimit-Remaining", "1")
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl, _ := newTestLimiter(time.Minute, 1)

	run(t, requestFrom("10.0.0.3:1"), rl).wantReached(t)
	run(t, requestFrom("10.0.0.4:1"), rl).wantReached(t)

	if out := run(t, requestFrom("10.0.0.3:2"), rl); out.reached {
		t.Error("second request from same IP on another port allowed")
	}
}

func TestRateLimiter_ManyClientsKeepExhaustedWindow(t *testing.T) {
	rl, _ := newTestLimiter(time.Minute, 1)

	if _, ok := rl.take("10.0.0.9"); !ok {
		t.Fatal("first request rejected")
	}
	if _, ok := rl.take("10.0.0.9"); ok {
		t.Fatal("second request allowed")
	}
	for i := range 20_000 {
		rl.take("client-" + strconv.Itoa(i))
	}

	if out := run(t, requestFrom("10.0.0.9:1"), rl); out.reached {
		t.Error("exhausted client allowed again inside its window")
	}
}

func TestRateLimiter_ExposesInfo(t *testing.T) {
	rl, clock := newTestLimiter(time.Minute, 5)

	out := run(t, requestFrom("10.0.0.5:1"), rl)
	out.wantReached(t)

	info := GetRateLimits(out.ctx.Request.Context())
	if info == nil {
		t.Fatal("rate limit info missing from context")
	}
	if info.Limit != 5 || info.Remaining != 4 {
		t.Errorf("info = %+v", info)
	}
	if !info.Reset.Equal(clock.now.Add(time.Minute)) {
		t.Errorf("reset = %v", info.Reset)
	}
	checkHeader(t, out.rec.Header(), "X-RateLimit-Reset", strconv.FormatInt(info.Reset.Unix(), 10))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"192.168.1.1:8080", "192.168.1.1"},
		{"[::1]:8080", "::1"},
		{"unix", "unix"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.addr
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
