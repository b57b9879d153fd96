package middleware

import (
	"errors"
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
)

const maxTrackedClients = 10000

// RateLimiter applies a token bucket per client address.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	clients *lru.Cache[string, *rate.Limiter]
	events  *audit.Logger
}

// NewRateLimiter allows rps requests per second per client with the given burst.
func NewRateLimiter(rps float64, burst int, events *audit.Logger) (*RateLimiter, error) {
	if rps <= 0 || burst <= 0 {
		return nil, errors.New("rate limiter requires positive rps and burst")
	}
	clients, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: clients,
		events:  events,
	}, nil
}

// Middleware rejects requests over the limit with rate_limited.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limiter(clientKey(r)).Allow() {
			next.ServeHTTP(w, r)
			return
		}
		if l.events != nil {
			ec := eventContext(r)
			ec.StatusCode = http.StatusTooManyRequests
			ec.Metrics = map[string]any{"client": clientKey(r)}
			l.events.LogEvent(r.Context(), audit.EventRateLimited, audit.LevelWarn, ec)
		}
		WriteAccessError(w, r, auth.ErrorRateLimited, errors.New("rate limit exceeded"))
	})
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if existing, ok := l.clients.Get(key); ok {
		return existing
	}
	fresh := rate.NewLimiter(l.limit, l.burst)
	if previous, ok, _ := l.clients.PeekOrAdd(key, fresh); ok {
		return previous
	}
	return fresh
}

// clientKey is the remote host; chi's RealIP runs earlier in the chain.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
