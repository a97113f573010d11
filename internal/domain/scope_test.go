package domain

import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestScopeKeyRoundTrip(t *testing.T) {
	k, err := NewScopeKey(ScopeChannel, "scope-1")
	require.NoError(t, err)
	assert.Equal(t, "Channel:scope-1", k.String())

	parsed, err := ParseScopeKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestScopeKeyRejectsInvalidType(t *testing.T) {
	_, err := NewScopeKey(ScopeType("Bogus"), "scope-1")
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, e.Kind)
}

func TestScopeKeyRejectsWhitespaceID(t *testing.T) {
	_, err := NewScopeKey(ScopeChannel, "   ")
	require.Error(t, err)
}

func TestScopeKeyRejectsTooLongID(t *testing.T) {
	long := make([]byte, 257)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewScopeKey(ScopeChannel, string(long))
	require.Error(t, err)
}

func TestParseScopeKeyMissingSeparator(t *testing.T) {
	_, err := ParseScopeKey("no-colon-here")
	require.Error(t, err)
}

func TestParseScopeKeyWithColonInID(t *testing.T) {
	// DirectMessage ids may legitimately contain colons (e.g. "u1:u2"); only
	// the FIRST colon is the type/id separator.
	k, err := ParseScopeKey("DirectMessage:u1:u2")
	require.NoError(t, err)
	assert.Equal(t, ScopeDirectMessage, k.Type)
	assert.Equal(t, "u1:u2", k.ID)
}
