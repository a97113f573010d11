package presence

import (
	"encoding/binary"
	"fmt"
)

// encodeMember packs a (pod_id, connection_id) pair into a length-prefixed
// byte string suitable for storage as a sorted-set member. Colons (or any
// other byte) are allowed in either ID because the boundary is carried by
// an explicit length prefix instead of a delimiter.
func encodeMember(podID, connectionID string) string {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(podID)))
	return string(lenBuf[:]) + podID + connectionID
}

// decodeMember reverses encodeMember.
func decodeMember(raw string) (podID, connectionID string, err error) {
	if len(raw) < 4 {
		return "", "", fmt.Errorf("presence member too short: %d bytes", len(raw))
	}
	podLen := binary.BigEndian.Uint32([]byte(raw[:4]))
	rest := raw[4:]
	if uint32(len(rest)) < podLen {
		return "", "", fmt.Errorf("presence member truncated: wanted %d pod bytes, have %d", podLen, len(rest))
	}
	return rest[:podLen], rest[podLen:], nil
}
