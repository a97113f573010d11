package history

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/lib/pq"
)

// RetryPolicy classifies an append error as transient (worth retrying)
// or permanent, and computes the backoff delay between attempts.
//
// Classification is by Go error type (pq.Error codes, net errors,
// context deadline) rather than substring matching on the error message,
// which is brittle across driver/server versions.
type RetryPolicy interface {
	ShouldRetry(err error) bool
	NextDelay(attempt int) time.Duration
	MaxAttempts() int
}

// ExponentialBackoffPolicy implements exponential backoff with an added
// random jitter window, capped at MaxDelay.
type ExponentialBackoffPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	jitter      time.Duration
	rng         *rand.Rand
}

// NewExponentialBackoffPolicy builds a policy. jitter is the width of the
// random delay added on top of each backoff step. rngSeed should differ
// per worker goroutine so concurrent writers don't retry in lockstep: two
// policies built with the same seed draw the same jitter sequence.
func NewExponentialBackoffPolicy(maxAttempts int, baseDelay, maxDelay, jitter time.Duration, rngSeed int64) *ExponentialBackoffPolicy {
	return &ExponentialBackoffPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		jitter:      jitter,
		rng:         rand.New(rand.NewSource(rngSeed)),
	}
}

func (p *ExponentialBackoffPolicy) MaxAttempts() int { return p.maxAttempts }

// ShouldRetry reports whether err is a transient connection/timeout
// failure. Constraint violations, syntax errors, and auth failures are
// permanent and must not be retried.
func (p *ExponentialBackoffPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08": // connection exception
			return true
		case "53": // insufficient resources (too many connections, disk full)
			return true
		case "57": // operator intervention (query canceled, admin shutdown)
			return true
		default:
			return false
		}
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// NextDelay returns base*2^attempt plus a random jitter, capped at maxDelay.
func (p *ExponentialBackoffPolicy) NextDelay(attempt int) time.Duration {
	backoff := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	delay := time.Duration(backoff)
	if p.jitter > 0 {
		delay += time.Duration(p.rng.Int63n(int64(p.jitter)))
	}
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}
