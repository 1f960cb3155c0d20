package mcpgateway

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientIDHeader identifies the calling client on /router requests. The value
// is copied into invocation log entries and keys the rate limiter.
const ClientIDHeader = "X-Client-ID"

// idleLimiterTTL is how long an unused client bucket is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	lastGC   time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int, now func() time.Time) *clientLimiter {
	return &clientLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      now,
		limiters: make(map[string]*limiterEntry),
		lastGC:   now(),
	}
}

func (c *clientLimiter) allow(key string) bool {
	now := c.now()

	c.mu.Lock()
	e, ok := c.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[key] = e
	}
	e.lastSeen = now
	if now.Sub(c.lastGC) > idleLimiterTTL {
		for k, v := range c.limiters {
			if now.Sub(v.lastSeen) > idleLimiterTTL {
				delete(c.limiters, k)
			}
		}
		c.lastGC = now
	}
	c.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (c *clientLimiter) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}

// clientKey prefers the explicit client header and falls back to the remote host.
func clientKey(r *http.Request) string {
	if id := r.Header.Get(ClientIDHeader); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (g *Gateway) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	if g.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.limiter.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			g.writeCode(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
