package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/trading-post/internal/auth"
)

// RateLimitConfig configures per-user limits on message sending.
type RateLimitConfig struct {
	PerMinute       float64
	Burst           int
	CleanupInterval time.Duration
	// OnLimit renders the refusal. Nil writes a plain 429.
	OnLimit http.Handler
	Logger  *slog.Logger
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per signed-in user.
type RateLimiter struct {
	cfg      RateLimitConfig
	limit    rate.Limit
	mu       sync.Mutex
	limiters map[string]*userLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts a background loop that forgets idle users; call Stop
// when done.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	rl := &RateLimiter{
		cfg:      cfg,
		limit:    rate.Limit(cfg.PerMinute / 60.0),
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Limit applies the user's bucket to next. It must run after session
// middleware; anonymous requests pass through so the handler can redirect
// them to the login page.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.limiterFor(userID).Allow() {
			rl.cfg.Logger.Warn("rate limit exceeded",
				slog.String("userID", userID),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			if rl.cfg.OnLimit != nil {
				rl.cfg.OnLimit.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Too many messages. Please wait and try again.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Len reports how many users currently have a bucket.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(userID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if ul, ok := rl.limiters[userID]; ok {
		ul.lastAccess = now
		return ul.limiter
	}

	l := rate.NewLimiter(rl.limit, rl.cfg.Burst)
	rl.limiters[userID] = &userLimiter{limiter: l, lastAccess: now}
	return l
}

// retryAfter is the number of seconds until one token is refilled.
func (rl *RateLimiter) retryAfter() int {
	if rl.limit <= 0 {
		return 60
	}
	sec := int(math.Ceil(1.0 / float64(rl.limit)))
	if sec < 1 {
		sec = 1
	}
	return sec
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.cfg.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, id)
		}
	}
}
