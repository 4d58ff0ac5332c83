package api

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zotero/translate/internal/logging"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// tokenBucket implements the token bucket algorithm for one client.
type tokenBucket struct {
	tokens         float64
	capacity       float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
	mu             sync.Mutex
}

func newTokenBucket(requestsPerMinute, burstSize int) *tokenBucket {
	return &tokenBucket{
		tokens:         float64(burstSize),
		capacity:       float64(burstSize),
		refillRate:     float64(requestsPerMinute) / 60.0,
		lastRefillTime: time.Now(),
	}
}

// refill adds tokens based on elapsed time. Caller must hold mu.
func (tb *tokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefillTime = now
}

// tryConsume attempts to take one token.
func (tb *tokenBucket) tryConsume() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// remainingTokens reports how many requests the client has left.
func (tb *tokenBucket) remainingTokens() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return int(tb.tokens)
}

// RateLimiter enforces per-IP request limits.
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	mu         sync.RWMutex
	config     RateLimiterConfig
	cleanupTTL time.Duration
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*tokenBucket),
		config:     config,
		cleanupTTL: 5 * time.Minute,
	}
	go rl.cleanupExpiredBuckets()
	return rl
}

// getBucket returns the bucket for a client IP, creating it if needed.
func (rl *RateLimiter) getBucket(clientIP string) *tokenBucket {
	rl.mu.RLock()
	bucket, exists := rl.buckets[clientIP]
	rl.mu.RUnlock()

	if exists {
		return bucket
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Re-check under the write lock.
	if bucket, exists := rl.buckets[clientIP]; exists {
		return bucket
	}

	bucket = newTokenBucket(rl.config.RequestsPerMinute, rl.config.BurstSize)
	rl.buckets[clientIP] = bucket
	return bucket
}

// cleanupExpiredBuckets drops buckets idle longer than cleanupTTL so
// the map does not grow with every client ever seen.
func (rl *RateLimiter) cleanupExpiredBuckets() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for ip, bucket := range rl.buckets {
			bucket.mu.Lock()
			idle := now.Sub(bucket.lastRefillTime)
			bucket.mu.Unlock()
			if idle > rl.cleanupTTL {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// getClientIP extracts the client IP, trusting proxy headers when they
// carry a parseable address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		ip := strings.TrimSpace(parts[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if net.ParseIP(r.RemoteAddr) != nil {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}

// Middleware enforces the rate limit and sets informational headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)
		bucket := rl.getBucket(clientIP)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.config.RequestsPerMinute))

		if !bucket.tryConsume() {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Minute).Unix()))
			w.Header().Set("Retry-After", "60")
			logging.SecurityEvent("rate_limit_exceeded", "api",
				"client_ip", clientIP,
				"path", r.URL.Path)
			respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please retry later")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", bucket.remainingTokens()))
		next.ServeHTTP(w, r)
	})
}
