package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter paces requests per host: at most one request every delay, no bursts
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	delay    time.Duration
	log      *logrus.Entry
}

// NewRateLimiter creates a RateLimiter. A zero delay disables pacing.
func NewRateLimiter(delay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
		log:      log,
	}
}

// Wait blocks until a request to host is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl.delay <= 0 {
		return nil
	}

	rl.mu.Lock()
	limiter, ok := rl.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(rl.delay), 1)
		rl.limiters[host] = limiter
		rl.log.WithFields(logrus.Fields{"host": host, "delay": rl.delay}).Debug("Created host rate limiter")
	}
	rl.mu.Unlock()

	return limiter.Wait(ctx)
}
