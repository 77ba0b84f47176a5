package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	IPPerMinute      int
	IPBurst          int
	SessionPerMinute int
	SessionBurst     int
	// TrustProxy keys the IP bucket on X-Forwarded-For instead of the peer
	// address.
	TrustProxy       bool
}

// RateLimiter applies one token bucket per client IP and one per session.
type RateLimiter struct {
	ipLimiter      *keyedLimiter
	sessionLimiter *keyedLimiter
	trustProxy     bool
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		ipLimiter:      newKeyedLimiter(cfg.IPPerMinute, cfg.IPBurst),
		sessionLimiter: newKeyedLimiter(cfg.SessionPerMinute, cfg.SessionBurst),
		trustProxy:     cfg.TrustProxy,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := requestIDFromRequest(r)
		if ip := clientIP(r, l.trustProxy); ip != "" && !l.ipLimiter.allow(ip) {
			writeError(w, requestID, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		if sessionID := sessionIDFromRequest(r); sessionID != "" && !l.sessionLimiter.allow(sessionID) {
			writeError(w, requestID, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Prune drops buckets idle for longer than idle.
func (l *RateLimiter) Prune(idle time.Duration) {
	l.ipLimiter.prune(idle)
	l.sessionLimiter.prune(idle)
}

type keyedLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	entries map[string]*limiterEntry
	now     func() time.Time
}

type limiterEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

func newKeyedLimiter(perMinute, burst int) *keyedLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 20
	}
	return &keyedLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

func (l *keyedLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.last = now
	return entry.limiter.AllowN(now, 1)
}

func (l *keyedLimiter) prune(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	for key, entry := range l.entries {
		if entry.last.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// clientIP returns the peer address. Behind a trusted proxy it returns the
// last X-Forwarded-For hop, the one the proxy appended; earlier hops are
// client supplied.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			parts := strings.Split(forwarded, ",")
			if ip := strings.TrimSpace(parts[len(parts)-1]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
