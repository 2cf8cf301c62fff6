// Package ratelimit implements fixed-window request limits, stored in Redis
// when available and in process memory otherwise.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Limiter counts hits per key within a window.
type Limiter interface {
	// Allow records a hit for key and reports whether it is within the limit.
	// When it is not, retryAfter tells how long until the window resets.
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter keeps one counter per key and window in Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	max    int
	window time.Duration
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(ctx context.Context, addr, password string, db int, prefix string, max int, window time.Duration) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisLimiter{client: client, prefix: prefix, max: max, window: window}, nil
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + ":" + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", k, err)
	}

	// A counter without expiry was just created by this hit.
	if ttl.Val() < 0 {
		if err := r.client.PExpire(ctx, k, r.window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit expire %s: %w", k, err)
		}
	}

	if incr.Val() > int64(r.max) {
		retry := ttl.Val()
		if retry <= 0 {
			retry = r.window
		}
		return false, retry, nil
	}
	return true, 0, nil
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

type window struct {
	count int
	reset time.Time
}

// MemoryLimiter is a single-process Limiter.
type MemoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     max,
		window:  win,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.reset) {
		// Drop expired windows so the map does not grow without bound.
		for k, old := range m.windows {
			if !now.Before(old.reset) {
				delete(m.windows, k)
			}
		}
		w = &window{reset: now.Add(m.window)}
		m.windows[key] = w
	}

	w.count++
	if w.count > m.max {
		return false, w.reset.Sub(now), nil
	}
	return true, 0, nil
}

// ClientIP returns the request's remote address without the port. Behind
// chi's RealIP middleware this is the forwarded client address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429. Requests are keyed by
// keyFn, or by client IP when keyFn is nil. A failing limiter lets the
// request through.
func Middleware(l Limiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retry, err := l.Allow(r.Context(), keyFn(r))
			if err != nil {
				logrus.WithError(err).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				secs := int(retry.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
