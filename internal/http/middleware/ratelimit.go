package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-billing/internal/observability/metrics"
	"github.com/wolfman30/clinic-billing/internal/tenancy"
	"github.com/wolfman30/clinic-billing/pkg/logging"
)

var limiterTracer = otel.Tracer("clinic.internal.http.ratelimit")

// Limiter decides whether one more request under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter shared by every API replica.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter allows limit requests per key in each window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "ratelimit:clinic"}
}

func (l *RedisLimiter) key(key string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, now.UnixNano()/int64(l.window))
}

// Allow counts the request in the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ctx, span := limiterTracer.Start(ctx, "ratelimit.allow", trace.WithAttributes(
		attribute.String("ratelimit.key", key),
	))
	defer span.End()

	k := l.key(key, time.Now())
	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("ratelimit: incr %s: %w", k, err)
	}
	// Set expiry only on first increment
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			span.RecordError(err)
			// A window key without a TTL would never be evicted; drop it so
			// the next request starts the window again.
			_ = l.client.Del(ctx, k).Err()
			return false, fmt.Errorf("ratelimit: expire %s: %w", k, err)
		}
	}
	allowed := count <= int64(l.limit)
	span.SetAttributes(attribute.Int64("ratelimit.count", count), attribute.Bool("ratelimit.allowed", allowed))
	return allowed, nil
}

// LocalLimiter is an in-process token bucket per key, used when redis is
// not configured.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // max tokens
}

type bucket struct {
	tokens   float64
	lastTime time.Time
}

// NewLocalLimiter allows rate requests/sec with the given burst per key.
func NewLocalLimiter(rate float64, burst int) *LocalLimiter {
	rl := &LocalLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
	}
	// Periodically evict stale entries to prevent memory growth.
	go rl.cleanup()
	return rl
}

// Allow returns true if the request under key is within the rate limit.
func (rl *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	return rl.allowAt(key, time.Now()), nil
}

func (rl *LocalLimiter) allowAt(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastTime: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastTime).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > float64(rl.burst) {
		b.tokens = float64(rl.burst)
	}
	b.lastTime = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *LocalLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for key, b := range rl.buckets {
			if b.lastTime.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// ClinicRateLimit rejects requests over the caller clinic's budget with
// 429. Requests without a caller are keyed by client IP. A limiter error
// lets the request through.
func ClinicRateLimit(limiter Limiter, m *metrics.EngineMetrics, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + r.RemoteAddr
			if clinicID, ok := tenancy.ClinicIDFromContext(r.Context()); ok {
				key = clinicID
			} else if xri := r.Header.Get("X-Real-Ip"); xri != "" {
				key = "ip:" + xri
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				m.ObserveLimiterError()
				logger.Warn("rate limit check failed, allowing request", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				m.ObserveRateLimited()
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
