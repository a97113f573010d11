// Package history implements idempotent persistence of ChatEvents to a
// columnar store and range queries back out of it.
package history

import (
	"context"
	"time"

	"github.com/chatify/chatify/internal/domain"
)

// Store is the columnar-store contract the writer appends to and the
// reader reads from.
type Store interface {
	// Append idempotently inserts event at (partition, offset). A repeat
	// append of the same message_id is a no-op; it does not return an
	// error.
	Append(ctx context.Context, event domain.ChatEvent, partition int, offset int64) error

	// QueryByScope returns events for scope in ascending created_at_utc
	// order, bounded by the optional [from, to] range and limit.
	QueryByScope(ctx context.Context, scope domain.ScopeKey, from, to *time.Time, limit int) ([]domain.ChatEvent, error)
}
