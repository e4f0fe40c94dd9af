package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hrpay/internal/transport/http/api"
)

type window struct {
	count int
	reset time.Time
}

// limiter is a fixed-window counter per client address.
type limiter struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	now     func() time.Time
	clients map[string]*window
}

func newLimiter(limit int, period time.Duration) *limiter {
	return &limiter{limit: limit, period: period, now: time.Now, clients: map[string]*window{}}
}

// MutationRateLimit throttles payroll writes per client address. Reads pass
// through untouched. A non-positive limit disables it.
func MutationRateLimit(limit int, period time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(limit, period)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPayrollMutation(r) && !l.allow(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}
	key := clientIP(r)
	now := l.now()

	l.mu.Lock()
	current, ok := l.clients[key]
	if !ok || !now.Before(current.reset) {
		current = &window{reset: now.Add(l.period)}
		l.clients[key] = current
	}
	current.count++
	remaining := max(l.limit-current.count, 0)
	resetIn := seconds(current.reset.Sub(now))
	over := current.count > l.limit
	l.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if !over {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	slog.Warn("rate limit exceeded", "client", key, "method", r.Method, "path", r.URL.Path, "limit", l.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func isPayrollMutation(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case path == "/payroll/runs", path == "/payroll/slips":
		return true
	case strings.HasPrefix(path, "/payroll/slips/"):
		return strings.HasSuffix(path, "/pay") || strings.HasSuffix(path, "/cancel")
	}
	return false
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return max(int(d.Seconds()), 1)
}
