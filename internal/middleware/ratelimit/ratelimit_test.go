package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	clock := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestAllowWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("4th request in the window should be refused")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other clients have their own budget")
	}

	*clock = clock.Add(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("a new window should reset the budget")
	}
	if got := rl.Metrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Fatalf("metrics = %+v", got)
	}
}

func TestSteadyTrafficDoesNotExtendWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 2)
	rl.Allow("ip")
	*clock = clock.Add(40 * time.Second)
	rl.Allow("ip")
	*clock = clock.Add(30 * time.Second)
	if !rl.Allow("ip") {
		t.Fatal("window opened 70s ago should have reset")
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 5)
	rl.Allow("old")
	*clock = clock.Add(11 * time.Minute)
	rl.Allow("fresh")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}
	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("ActiveClients = %d, want 1", got)
	}
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ip := func(*http.Request) string { return "192.0.2.1" }
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name    string
		onLimit func(http.ResponseWriter, *http.Request)
		want    int
	}{
		{"default rejection", nil, http.StatusTooManyRequests},
		{"custom rejection", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }, http.StatusServiceUnavailable},
	}

	h := rl.Middleware(ip, nil)(ok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rr.Code)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			rl.Middleware(ip, tt.onLimit)(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if rr.Header().Get("Retry-After") != "60" {
				t.Fatal("missing Retry-After header")
			}
		})
	}
}
