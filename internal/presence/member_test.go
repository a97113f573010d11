package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMemberRoundTrips(t *testing.T) {
	cases := []struct {
		podID, connectionID string
	}{
		{"pod-a", "conn-1"},
		{"pod:with:colons", "conn:1"},
		{"", "conn-only"},
		{"pod-only", ""},
	}

	for _, tc := range cases {
		encoded := encodeMember(tc.podID, tc.connectionID)
		podID, connID, err := decodeMember(encoded)
		require.NoError(t, err)
		assert.Equal(t, tc.podID, podID)
		assert.Equal(t, tc.connectionID, connID)
	}
}

func TestDecodeMemberRejectsTruncatedInput(t *testing.T) {
	_, _, err := decodeMember("ab")
	assert.Error(t, err)

	_, _, err = decodeMember(encodeMember("pod", "conn")[:3])
	assert.Error(t, err)
}
