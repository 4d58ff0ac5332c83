package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenBucketConsume(t *testing.T) {
	bucket := newTokenBucket(60, 2)

	if !bucket.tryConsume() {
		t.Fatalf("first consume failed")
	}
	if !bucket.tryConsume() {
		t.Fatalf("second consume failed")
	}
	if bucket.tryConsume() {
		t.Errorf("third consume succeeded, want an empty bucket")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := newTokenBucket(60, 1)

	if !bucket.tryConsume() {
		t.Fatalf("first consume failed")
	}
	if bucket.tryConsume() {
		t.Fatalf("second consume succeeded, want an empty bucket")
	}

	// One token per second; rewind the refill clock instead of sleeping.
	bucket.mu.Lock()
	bucket.lastRefillTime = time.Now().Add(-2 * time.Second)
	bucket.mu.Unlock()

	if !bucket.tryConsume() {
		t.Errorf("consume after the refill window failed")
	}
}

func TestTokenBucketCapsAtCapacity(t *testing.T) {
	bucket := newTokenBucket(6000, 2)

	bucket.mu.Lock()
	bucket.lastRefillTime = time.Now().Add(-time.Hour)
	bucket.mu.Unlock()

	if got := bucket.remainingTokens(); got != 2 {
		t.Errorf("remaining = %d, want the capacity", got)
	}
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		config:  RateLimiterConfig{RequestsPerMinute: 60, BurstSize: 1},
	}

	a := rl.getBucket("192.0.2.1")
	b := rl.getBucket("192.0.2.2")
	if a == b {
		t.Fatalf("distinct clients share a bucket")
	}
	if rl.getBucket("192.0.2.1") != a {
		t.Errorf("repeat lookup built a new bucket")
	}

	if !a.tryConsume() {
		t.Fatalf("first client consume failed")
	}
	if a.tryConsume() {
		t.Errorf("first client over its burst")
	}
	if !b.tryConsume() {
		t.Errorf("second client starved by the first")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		config:  RateLimiterConfig{RequestsPerMinute: 1, BurstSize: 2},
	}
	handler := rl.Middleware(okHandler())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/translators", nil)
		req.RemoteAddr = "192.0.2.7:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		rec := send()
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("request %d: limit header = %q, want the configured rate", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec := send()
	wantErrorCode(t, rec, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED")
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.9", "", "192.0.2.1:1234", "203.0.113.9"},
		{"forwarded chain keeps leftmost", "203.0.113.9, 10.0.0.1", "", "192.0.2.1:1234", "203.0.113.9"},
		{"forwarded garbage falls through", "not-an-ip", "203.0.113.10", "192.0.2.1:1234", "203.0.113.10"},
		{"real ip", "", "203.0.113.10", "192.0.2.1:1234", "203.0.113.10"},
		{"remote addr with port", "", "", "192.0.2.5:9999", "192.0.2.5"},
		{"remote addr bare ip", "", "", "192.0.2.6", "192.0.2.6"},
		{"unparseable remote addr", "", "", "garbage", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			req.RemoteAddr = tt.remoteAddr

			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
