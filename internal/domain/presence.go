package domain

import "fmt"

// PresenceMember identifies one (pod, connection) pair backing a user's
// presence record.
type PresenceMember struct {
	PodID        string
	ConnectionID string
}

// PresenceRecord is the per-user view returned by the presence registry:
// every connection currently believed to be online, in ascending order of
// last refresh (oldest first).
type PresenceRecord struct {
	UserID  string
	Members []PresenceMember
}

// RateCounterKey builds the counter key
// rl:{user_id}:SendMessage:{window_seconds}. The window is embedded in the
// key so a threshold/window config change can't be blocked by a stale
// counter left over from the previous configuration.
func RateCounterKey(userID string, windowSeconds int) string {
	return fmt.Sprintf("rl:%s:SendMessage:%d", userID, windowSeconds)
}
