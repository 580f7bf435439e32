package fetch

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/msg-photos/pkg/utils"
)

// Outcome tells the retry loop what to do after one attempt
type Outcome int

const (
	OutcomeSuccess Outcome = iota // Done, stop retrying
	OutcomeRetry                  // Transient failure, try again if attempts remain
	OutcomeAbort                  // Permanent failure, return the error as-is
)

// RetryPolicy bounds the attempts made for one operation
type RetryPolicy struct {
	MaxAttempts  int           // Total attempts including the first; <= 0 means 1
	InitialDelay time.Duration // Delay before the first retry; 0 = retry immediately
	MaxDelay     time.Duration // Cap for the exponential backoff
}

// Do runs op until it succeeds, aborts, or the attempts are used up.
// Exhaustion returns an error wrapping ErrRetryFailed and the last attempt's error.
// Context cancellation is returned directly and never retried.
func (p RetryPolicy) Do(ctx context.Context, log *logrus.Entry, op func(ctx context.Context, attempt int) (Outcome, error)) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("context cancelled (%v) after error: %w", err, lastErr)
			}
			return err
		}

		if attempt > 1 {
			if delay := p.backoff(attempt - 1); delay > 0 {
				log.WithFields(logrus.Fields{"attempt": attempt, "max_attempts": maxAttempts, "delay": delay}).Debug("Waiting before retry")
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
			}
		}

		outcome, err := op(ctx, attempt)
		switch outcome {
		case OutcomeSuccess:
			return nil
		case OutcomeAbort:
			return err
		}

		lastErr = err
		log.WithField("attempt", attempt).Warnf("Attempt failed: %v", err)
	}

	if lastErr == nil {
		return utils.ErrRetryFailed
	}
	return fmt.Errorf("%w after %d attempt(s): %w", utils.ErrRetryFailed, maxAttempts, lastErr)
}

// backoff returns InitialDelay * 2^(retry-1), capped at MaxDelay, with +/- 10% jitter
func (p RetryPolicy) backoff(retry int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(retry-1)))
	if p.MaxDelay > 0 && (delay <= 0 || delay > p.MaxDelay) {
		delay = p.MaxDelay
	}

	if jitterRange := int64(delay) / 5; jitterRange > 0 {
		delay += time.Duration(rand.Int63n(jitterRange)) - delay/10
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
