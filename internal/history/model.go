package history

import (
	"time"

	"github.com/google/uuid"
)

// messageRow is the GORM row model for chat_messages. The primary key is
// the triple (scope_id, created_at_utc, message_id); GORM's composite-key
// support is sidestepped in favor of a unique index plus an ON CONFLICT
// DO NOTHING insert, since an auto-incrementing surrogate key would not
// let a repeat append of the same message_id collapse to a no-op.
type messageRow struct {
	ScopeID         string    `gorm:"column:scope_id;not null;uniqueIndex:ux_chat_messages_pk,priority:1"`
	CreatedAtUTC    time.Time `gorm:"column:created_at_utc;not null;uniqueIndex:ux_chat_messages_pk,priority:2"`
	MessageID       uuid.UUID `gorm:"column:message_id;type:uuid;not null;uniqueIndex:ux_chat_messages_pk,priority:3"`
	SenderID        string    `gorm:"column:sender_id;not null"`
	Text            string    `gorm:"column:text;not null"`
	OriginPodID     string    `gorm:"column:origin_pod_id;not null"`
	BrokerPartition *int      `gorm:"column:broker_partition"`
	BrokerOffset    *int64    `gorm:"column:broker_offset"`
}

// TableName pins the GORM table name; chatify has no other table prefix
// convention to infer it from.
func (messageRow) TableName() string { return "chat_messages" }
