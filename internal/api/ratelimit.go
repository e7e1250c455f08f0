package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tigel-agm/NL-SQL/internal/config"
)

const (
	clientIdleTTL    = 10 * time.Minute
	clientPruneEvery = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client IP. Idle clients are pruned lazily.
type ipLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

// rateLimit returns a per-client limiter middleware, or a no-op when the configured
// rate is zero.
func rateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := &ipLimiter{
		clients: map[string]*clientLimiter{},
		rps:     rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
		now:     time.Now,
	}
	return limiter.middleware
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := l.get(clientIP(r))
		reservation := limiter.Reserve()
		if !reservation.OK() {
			writeTooManyRequests(w, r, 0)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			writeTooManyRequests(w, r, int(delay.Seconds())+1)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		next.ServeHTTP(w, r)
	})
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > clientPruneEvery {
		for key, client := range l.clients {
			if now.Sub(client.lastSeen) > clientIdleTTL {
				delete(l.clients, key)
			}
		}
		l.lastPrune = now
	}

	client, ok := l.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = client
	}
	client.lastSeen = now
	return client.limiter
}

// clientIP uses RemoteAddr only; X-Forwarded-For is client-controlled.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	writeError(r.Context(), w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", true, nil)
}
