package grpc

import "time"

// QueryByScopeRequest mirrors the history reader's QueryByScope
// arguments over the wire.
type QueryByScopeRequest struct {
	ScopeType string
	ScopeID   string
	From      *time.Time
	To        *time.Time
	Limit     int32
}

// ChatEventDTO is the wire shape of a domain.ChatEvent for this surface;
// kept separate from domain.ChatEvent's own JSON marshaling so the two
// wire formats (log vs admin RPC) can evolve independently.
type ChatEventDTO struct {
	MessageID    string
	ScopeType    string
	ScopeID      string
	SenderID     string
	Text         string
	CreatedAtUTC time.Time
	OriginPodID  string
}

// QueryByScopeResponse carries the matched events, ascending by
// created_at_utc.
type QueryByScopeResponse struct {
	Events []ChatEventDTO
}

// GetConnectionsRequest mirrors the presence registry's GetConnections
// argument.
type GetConnectionsRequest struct {
	UserID string
}

// GetConnectionsResponse carries the user's currently online connection
// IDs across the whole cluster (not just this pod).
type GetConnectionsResponse struct {
	ConnectionIDs []string
}
