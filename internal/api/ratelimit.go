// Throttling for the admin endpoints that advance or persist the
// world. Fixed-window counters per client: the first request opens a
// window, requests past the quota are rejected until it lapses.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per client within a fixed window.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	quota   int
	window  time.Duration
}

type clientWindow struct {
	used    int
	started time.Time
}

// NewRateLimiter allows quota requests per client per window. Idle
// clients are reaped in the background.
func NewRateLimiter(quota int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
		quota:   quota,
		window:  window,
	}
	go func() {
		for range time.Tick(time.Hour) {
			rl.reapIdle(time.Now())
		}
	}()
	return rl
}

// Allow records one request for the client and reports whether it fits
// the current window.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.clients[client]
	if !ok || now.Sub(w.started) >= rl.window {
		rl.clients[client] = &clientWindow{used: 1, started: now}
		return true
	}
	if w.used < rl.quota {
		w.used++
		return true
	}
	return false
}

// RetryAfter reports whole seconds until the client's window lapses.
func (rl *RateLimiter) RetryAfter(client string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.clients[client]
	if !ok {
		return 0
	}
	left := rl.window - time.Since(w.started)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds()) + 1
}

// reapIdle drops clients whose last window lapsed well before now.
func (rl *RateLimiter) reapIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for client, w := range rl.clients {
		if now.Sub(w.started) > 2*rl.window {
			delete(rl.clients, client)
		}
	}
}

// clientKey picks the throttling identity for a request: the first
// X-Forwarded-For hop when present, else the remote address without
// its port.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitMiddleware rejects over-quota requests with 429 and a
// Retry-After hint.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if !rl.Allow(client) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(client)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
