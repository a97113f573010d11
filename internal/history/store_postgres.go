package history

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatify/chatify/internal/domain"
)

// PostgresStore is the gorm-backed Store implementation.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an already-connected *gorm.DB.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts event, ignoring the row if (scope_id, created_at_utc,
// message_id) already exists. The conflict target matches the unique
// index declared on messageRow.
func (s *PostgresStore) Append(ctx context.Context, event domain.ChatEvent, partition int, offset int64) error {
	row := messageRow{
		ScopeID:         event.Scope.String(),
		CreatedAtUTC:    event.CreatedAtUTC,
		MessageID:       event.MessageID,
		SenderID:        event.SenderID,
		Text:            event.Text,
		OriginPodID:     event.OriginPodID,
		BrokerPartition: &partition,
		BrokerOffset:    &offset,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_id"}, {Name: "created_at_utc"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

// QueryByScope pushes the time range and limit into the query, reading
// in ascending created_at_utc order for cursor-based pagination.
func (s *PostgresStore) QueryByScope(ctx context.Context, scope domain.ScopeKey, from, to *time.Time, limit int) ([]domain.ChatEvent, error) {
	query := s.db.WithContext(ctx).
		Model(&messageRow{}).
		Where("scope_id = ?", scope.String())

	if from != nil {
		query = query.Where("created_at_utc >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at_utc <= ?", *to)
	}

	var rows []messageRow
	if err := query.Order("created_at_utc ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]domain.ChatEvent, 0, len(rows))
	for _, row := range rows {
		event, err := domain.RehydrateChatEvent(scope, row.MessageID, row.SenderID, row.Text, row.OriginPodID, row.CreatedAtUTC)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
