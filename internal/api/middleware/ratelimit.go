package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kiranshivaraju/pixelrelay/internal/api/response"
	"github.com/kiranshivaraju/pixelrelay/internal/cache"
	"github.com/kiranshivaraju/pixelrelay/internal/metrics"
)

const window = time.Minute

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, client string) (Decision, error)
	Backend() string
}

// RedisLimiter is a fixed one-minute window shared across instances through Redis.
type RedisLimiter struct {
	counter cache.Counter
	perMin  int
}

func NewRedisLimiter(c cache.Counter, perMin int) *RedisLimiter {
	return &RedisLimiter{counter: c, perMin: perMin}
}

func (l *RedisLimiter) Backend() string { return "redis" }

func (l *RedisLimiter) Allow(ctx context.Context, client string) (Decision, error) {
	count, err := l.counter.IncrWithExpiry(ctx, cache.RateLimitKey(client), window)
	if err != nil {
		return Decision{}, err
	}
	remaining := l.perMin - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.perMin),
		Limit:     l.perMin,
		Remaining: remaining,
		Reset:     window,
	}, nil
}

const maxLocalClients = 10000

// LocalLimiter is a per-process token bucket per client, used when Redis is not configured.
// It tracks at most maxClients clients; when full, idle clients go first and
// then the least recently seen one.
type LocalLimiter struct {
	perMin     int
	maxClients int

	mu      sync.Mutex
	clients map[string]*localClient
}

type localClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(perMin int) *LocalLimiter {
	return &LocalLimiter{perMin: perMin, maxClients: maxLocalClients, clients: make(map[string]*localClient)}
}

func (l *LocalLimiter) Backend() string { return "local" }

func (l *LocalLimiter) Allow(_ context.Context, client string) (Decision, error) {
	now := time.Now()

	l.mu.Lock()
	c, ok := l.clients[client]
	if !ok {
		if len(l.clients) >= l.maxClients {
			l.evict(now)
		}
		c = &localClient{limiter: rate.NewLimiter(rate.Every(window/time.Duration(l.perMin)), l.perMin)}
		l.clients[client] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	allowed := c.limiter.AllowN(now, 1)
	remaining := int(c.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     l.perMin,
		Remaining: remaining,
		Reset:     window / time.Duration(l.perMin),
	}, nil
}

// evict drops clients not seen for a full window, or the least recently
// seen client when none are idle. Caller holds l.mu.
func (l *LocalLimiter) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > window {
			delete(l.clients, k)
			continue
		}
		if oldestKey == "" || c.lastSeen.Before(oldest) {
			oldestKey, oldest = k, c.lastSeen
		}
	}
	if len(l.clients) >= l.maxClients && oldestKey != "" {
		delete(l.clients, oldestKey)
	}
}

// RateLimit applies a Limiter per client IP.
type RateLimit struct {
	limiter Limiter
	metrics *metrics.Collector
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(l Limiter, m *metrics.Collector) *RateLimit {
	return &RateLimit{limiter: l, metrics: m}
}

// Limit rejects requests over the limit with 429. Limiter errors let the request through.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		d, err := rl.limiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			// fail open
			slog.Warn("rate limiter unavailable", "backend", rl.limiter.Backend(), "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(d.Reset).Unix(), 10))

		if !d.Allowed {
			rl.metrics.RecordRateLimited(rl.limiter.Backend())
			retry := int(math.Ceil(d.Reset.Seconds()))
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			response.Error(w, http.StatusTooManyRequests, "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
