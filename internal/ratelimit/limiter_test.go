package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

func TestLimiter_FixedWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(10*time.Second, 3, clock)

	for i := 0; i < 3; i++ {
		if d := l.Allow("10.0.0.5"); !d.OK {
			t.Fatalf("request %d rejected", i+1)
		}
	}

	d := l.Allow("10.0.0.5")
	if d.OK || d.RetryAfterSeconds != 10 {
		t.Fatalf("expected rejection with retry 10 got %+v", d)
	}

	// Exactly one window later the window has not closed yet.
	clock.Advance(10 * time.Second)
	if d := l.Allow("10.0.0.5"); d.OK {
		t.Fatal("window reset too early")
	}

	clock.Advance(time.Millisecond)
	if d := l.Allow("10.0.0.5"); !d.OK {
		t.Fatal("expected a fresh window")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(time.Second, 1, clockwork.NewFakeClock())

	if !l.Allow("a").OK || !l.Allow("b").OK {
		t.Fatal("first request per key must pass")
	}
	if l.Allow("a").OK {
		t.Fatal("second request for a must be rejected")
	}
}

func TestLimiter_RetryAfterRoundsUp(t *testing.T) {
	l := New(1500*time.Millisecond, 1, clockwork.NewFakeClock())
	l.Allow("a")
	if d := l.Allow("a"); d.RetryAfterSeconds != 2 {
		t.Fatalf("expected 2 got %d", d.RetryAfterSeconds)
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(time.Second, 5, clock)
	l.Allow("a")
	l.Allow("b")

	clock.Advance(11 * time.Second)
	l.Allow("c")

	l.mu.Lock()
	n := len(l.buckets)
	l.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected idle buckets swept, have %d", n)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(0, 0, nil)
	if l.window != DefaultWindow || l.max != DefaultMax {
		t.Fatalf("expected defaults got %v/%d", l.window, l.max)
	}
}

func TestMiddleware_Returns429WithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(New(10*time.Second, 1, clockwork.NewFakeClock())))
	r.POST("/sync", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync", nil))
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request expected 200 got %d", w.Code)
	}
	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Fatalf("expected Retry-After 10 got %q", got)
	}
}
