package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ezotic/devcamper-api/internal/domain"
	"github.com/ezotic/devcamper-api/internal/pipeline"
)

const (
	DefaultRateWindow = 10 * time.Minute
	DefaultRateMax    = 100

	// MessageRateLimited is the client-facing text for rejected requests.
	MessageRateLimited = "Too many requests, please try again later."
)

// rateLimitContextKey is the context key for rate limit info
type rateLimitContextKey struct{}

// RateLimitInfo describes the caller's quota for the current window.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// GetRateLimits retrieves rate limit info from context.
// Returns nil if the rate limiter did not run.
func GetRateLimits(ctx context.Context) *RateLimitInfo {
	if rl, ok := ctx.Value(rateLimitContextKey{}).(*RateLimitInfo); ok {
		return rl
	}
	return nil
}

// writeHeaders sets the X-RateLimit-* headers.
func (rl *RateLimitInfo) writeHeaders(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(rl.Reset.Unix(), 10))
}

type clientWindow struct {
	start time.Time
	count int
}

// RateLimiter admits at most Max requests per client within each fixed
// Window. The Max+1st request in a window fails with a rate-limit error
// and the count resets when the window elapses.
type RateLimiter struct {
	Window time.Duration
	Max    int

	// KeyFunc identifies the client; defaults to the remote IP.
	KeyFunc func(*http.Request) string
	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
	// windows is unbounded; an entry expires once its window has elapsed.
	windows *expirable.LRU[string, *clientWindow]
}

// NewRateLimiter creates a limiter. Non-positive values select the defaults.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if max <= 0 {
		max = DefaultRateMax
	}
	return &RateLimiter{
		Window:  window,
		Max:     max,
		KeyFunc: ClientIP,
		Now:     time.Now,
		windows: expirable.NewLRU[string, *clientWindow](0, nil, window),
	}
}

func (s *RateLimiter) Name() string { return "rate-limiter" }

func (s *RateLimiter) Process(c *pipeline.Context) pipeline.Result {
	info, allowed := s.take(s.KeyFunc(c.Request))

	info.writeHeaders(c.Response.Header())
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), rateLimitContextKey{}, info))

	if !allowed {
		retry := int(info.Reset.Sub(s.Now()).Round(time.Second).Seconds())
		if retry < 1 {
			retry = 1
		}
		c.Response.Header().Set("Retry-After", strconv.Itoa(retry))
		return pipeline.Fail(domain.ErrRateLimit(MessageRateLimited))
	}
	return pipeline.Continue()
}

// take counts one request for key.
func (s *RateLimiter) take(key string) (*RateLimitInfo, bool) {
	now := s.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows.Get(key)
	if !ok || now.Sub(w.start) >= s.Window {
		w = &clientWindow{start: now}
		s.windows.Add(key, w)
	}
	w.count++

	remaining := s.Max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitInfo{
		Limit:     s.Max,
		Remaining: remaining,
		Reset:     w.start.Add(s.Window),
	}, w.count <= s.Max
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
