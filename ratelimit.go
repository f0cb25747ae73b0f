package gate

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalRateLimiterConfig holds the window/threshold surface read at start.
type LocalRateLimiterConfig struct {
	// Window is the sliding interval the threshold applies to.
	Window time.Duration
	// Threshold is the number of requests allowed per window per client.
	Threshold int
	// CleanupInterval controls how often idle client entries are dropped.
	CleanupInterval time.Duration
}

// DefaultLocalRateLimiterConfig allows 120 requests per minute per client.
func DefaultLocalRateLimiterConfig() LocalRateLimiterConfig {
	return LocalRateLimiterConfig{
		Window:          time.Minute,
		Threshold:       120,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalRateLimiter is a per-client token bucket for single-node
// deployments. Multi-node deployments plug a shared limiter in through the
// RateLimiter interface instead.
type LocalRateLimiter struct {
	config LocalRateLimiterConfig
	limit  rate.Limit

	mu       sync.RWMutex
	limiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

var _ RateLimiter = (*LocalRateLimiter)(nil)

// NewLocalRateLimiter creates a limiter and starts the idle-entry cleanup
// loop. Call Stop to release it.
func NewLocalRateLimiter(config LocalRateLimiterConfig) *LocalRateLimiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultLocalRateLimiterConfig().Threshold
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultLocalRateLimiterConfig().CleanupInterval
	}

	rl := &LocalRateLimiter{
		config:   config,
		limit:    rate.Limit(float64(config.Threshold) / config.Window.Seconds()),
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop terminates the cleanup goroutine.
func (rl *LocalRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// Check satisfies the RateLimiter interface.
func (rl *LocalRateLimiter) Check(ctx context.Context, clientID string) (RateDecision, error) {
	if err := ctx.Err(); err != nil {
		return RateDecision{}, err
	}

	limiter := rl.getOrCreate(clientID)
	if limiter.Allow() {
		return RateDecision{Allowed: true}, nil
	}

	return RateDecision{Allowed: false, RetryAfter: rl.retryAfter()}, nil
}

// ClientCount returns the number of tracked clients, for tests and metrics.
func (rl *LocalRateLimiter) ClientCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

func (rl *LocalRateLimiter) getOrCreate(clientID string) *rate.Limiter {
	rl.mu.RLock()
	cl, exists := rl.limiters[clientID]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		cl.lastAccess = time.Now()
		rl.mu.Unlock()
		return cl.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, exists := rl.limiters[clientID]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.config.Threshold)
	rl.limiters[clientID] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

func (rl *LocalRateLimiter) retryAfter() time.Duration {
	// seconds until one token refills
	secs := math.Ceil(1.0 / float64(rl.limit))
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

func (rl *LocalRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *LocalRateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()

	rl.mu.Lock()
	for clientID, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, clientID)
		}
	}
	rl.mu.Unlock()
}

// FailClosed wraps a limiter so that a limiter outage rejects requests
// instead of silently allowing them.
func FailClosed(limiter RateLimiter, logger Logger) RateLimiter {
	if logger == nil {
		logger = defLogger{}
	}

	return RateLimiterFunc(func(ctx context.Context, clientID string) (RateDecision, error) {
		if limiter == nil {
			return RateDecision{Allowed: false}, nil
		}

		decision, err := limiter.Check(ctx, clientID)
		if err != nil {
			logger.Warn("rate limiter check failed, failing closed", "error", err)
			return RateDecision{Allowed: false}, nil
		}

		return decision, nil
	})
}
