package history

import (
	"context"
	"time"

	"github.com/chatify/chatify/internal/domain"
)

// defaultQueryLimit caps unbounded range queries.
const defaultQueryLimit = 100

// Reader answers range queries over the columnar store for scope
// timelines.
type Reader struct {
	store Store
}

// NewReader wraps a Store for the QueryByScope read path.
func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

// QueryByScope returns events for (scopeType, scopeID) in ascending
// created_at_utc order. limit <= 0 falls back to defaultQueryLimit.
func (r *Reader) QueryByScope(ctx context.Context, scopeType domain.ScopeType, scopeID string, from, to *time.Time, limit int) domain.Result[[]domain.ChatEvent] {
	scope, err := domain.NewScopeKey(scopeType, scopeID)
	if err != nil {
		domErr, _ := domain.AsError(err)
		return domain.Failure[[]domain.ChatEvent](domErr)
	}
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	events, queryErr := r.store.QueryByScope(ctx, scope, from, to, limit)
	if queryErr != nil {
		return domain.Failure[[]domain.ChatEvent](domain.NewError(domain.KindConfigurationError,
			"history_query_failed", "failed to query scope history", queryErr))
	}
	return domain.Success(events)
}
