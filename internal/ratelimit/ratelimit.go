// Package ratelimit implements an atomic
// fixed-window counter backed by the shared key-value store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/domain"
)

// fixedWindowScript implements check-and-increment atomically at the
// store so concurrent callers across pods never race past the threshold.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
local next = redis.call("INCR", KEYS[1])
if next == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// Limiter enforces a fixed-window request budget per user.
type Limiter struct {
	client    *redis.Client
	threshold int
	window    time.Duration
	log       *logrus.Entry
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithThreshold overrides the default threshold of 100 requests/window.
func WithThreshold(n int) Option {
	return func(l *Limiter) { l.threshold = n }
}

// WithWindow overrides the default 60s window.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) { l.window = d }
}

// New constructs a Limiter with defaults N=100, W=60s.
func New(client *redis.Client, log *logrus.Entry, opts ...Option) *Limiter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	l := &Limiter{
		client:    client,
		threshold: 100,
		window:    60 * time.Second,
		log:       log.WithField("component", "rate_limiter"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reserves a slot for userID under the SendMessage operation,
// returning a *domain.Error{Kind: RateLimitExceeded} if the window's
// threshold is already spent. Store errors surface as
// *domain.Error{Kind: ConfigurationError} (the limiter never silently
// allows on failure).
func (l *Limiter) Allow(ctx context.Context, userID string) *domain.Error {
	windowSeconds := int(l.window.Seconds())
	key := domain.RateCounterKey(userID, windowSeconds)

	result, err := fixedWindowScript.Run(ctx, l.client, []string{key}, l.threshold, windowSeconds).Int()
	if err != nil {
		l.log.WithError(err).WithField("user_id", userID).Error("rate limit store unavailable")
		return domain.NewError(domain.KindConfigurationError, "rate_limit_store_unavailable",
			"rate limiter store call failed", err)
	}

	if result == 0 {
		return domain.NewError(domain.KindRateLimitExceeded, "rate_limit_exceeded",
			fmt.Sprintf("user %s exceeded %d requests per %s", userID, l.threshold, l.window), nil)
	}
	return nil
}
