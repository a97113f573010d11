// Package presence implements a cluster-wide,
// Redis-backed mapping from user to the set of (pod, connection) pairs
// currently believed to be online, with TTL-based liveness.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/domain"
	"github.com/chatify/chatify/internal/metrics"
)

const defaultTTL = 60 * time.Second

// Registry is the presence registry backed by a Redis sorted-set +
// string-key pair.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides the default 60s presence TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// New constructs a Registry over an existing Redis client.
func New(client *redis.Client, log *logrus.Entry, opts ...Option) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Registry{client: client, ttl: defaultTTL, log: log.WithField("component", "presence_registry")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func presenceKey(userID string) string {
	return "presence:user:" + userID
}

func routeKey(userID, connectionID string) string {
	return fmt.Sprintf("route:%s:%s", userID, connectionID)
}

// SetOnline upserts the (pod, connection) member with score=now, sets the
// route key with TTL, and refreshes the presence key's TTL.
func (r *Registry) SetOnline(ctx context.Context, userID, podID, connectionID string) error {
	return r.touch(ctx, userID, podID, connectionID)
}

// Heartbeat refreshes the member's freshness score; expected to be called
// at roughly TTL/4 so the member never ages past TTL between heartbeats.
func (r *Registry) Heartbeat(ctx context.Context, userID, podID, connectionID string) error {
	err := r.touch(ctx, userID, podID, connectionID)
	if err == nil {
		metrics.PresenceHeartbeatsTotal.Inc()
	}
	return err
}

func (r *Registry) touch(ctx context.Context, userID, podID, connectionID string) error {
	member := encodeMember(podID, connectionID)
	now := float64(time.Now().Unix())

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, presenceKey(userID), redis.Z{Score: now, Member: member})
	pipe.Expire(ctx, presenceKey(userID), r.ttl)
	pipe.Set(ctx, routeKey(userID, connectionID), podID, r.ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("presence touch failed")
		return fmt.Errorf("presence touch: %w", err)
	}
	return nil
}

// SetOffline removes the member and its route key. If the presence set
// becomes empty the key is deleted eagerly rather than left to expire.
func (r *Registry) SetOffline(ctx context.Context, userID, podID, connectionID string) error {
	member := encodeMember(podID, connectionID)
	key := presenceKey(userID)

	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, key, member)
	pipe.Del(ctx, routeKey(userID, connectionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence set offline: %w", err)
	}

	remaining, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("presence card: %w", err)
	}
	if remaining == 0 {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("presence eager delete: %w", err)
		}
	}
	return nil
}

// GetConnections returns the connection IDs currently online for userID,
// in ascending score (oldest-refresh-first) order. Members whose last
// refresh is older than the TTL are left out, even while another
// connection keeps the key alive. A user with no entry (never online, or
// TTL-expired) returns an empty slice.
func (r *Registry) GetConnections(ctx context.Context, userID string) ([]string, error) {
	minScore := fmt.Sprintf("%d", time.Now().Add(-r.ttl).Unix())
	members, err := r.client.ZRangeByScoreWithScores(ctx, presenceKey(userID),
		&redis.ZRangeBy{Min: minScore, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence get connections: %w", err)
	}
	out := make([]string, 0, len(members))
	for _, z := range members {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		_, connID, err := decodeMember(raw)
		if err != nil {
			r.log.WithError(err).Warn("skipping malformed presence member")
			continue
		}
		out = append(out, connID)
	}
	return out, nil
}

// Record assembles the full PresenceRecord for userID (pod+connection
// pairs refreshed within the TTL), used by observability/directed-delivery
// callers.
func (r *Registry) Record(ctx context.Context, userID string) (domain.PresenceRecord, error) {
	minScore := fmt.Sprintf("%d", time.Now().Add(-r.ttl).Unix())
	members, err := r.client.ZRangeByScoreWithScores(ctx, presenceKey(userID),
		&redis.ZRangeBy{Min: minScore, Max: "+inf"}).Result()
	if err != nil {
		return domain.PresenceRecord{}, fmt.Errorf("presence record: %w", err)
	}
	rec := domain.PresenceRecord{UserID: userID}
	for _, z := range members {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		podID, connID, err := decodeMember(raw)
		if err != nil {
			continue
		}
		rec.Members = append(rec.Members, domain.PresenceMember{PodID: podID, ConnectionID: connID})
	}
	return rec, nil
}
