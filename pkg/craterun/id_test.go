package craterun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdFormat(t *testing.T) {
	id := NewId()
	require.Len(t, id, IdLength)
	for _, c := range id {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'),
			"unexpected character %q in id %s", c, id)
	}
}

func TestNewIdUniqueness(t *testing.T) {
	const n = 100000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := NewId()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s after %d draws", id, i)
		seen[id] = struct{}{}
	}
}

func TestValidIdPrefix(t *testing.T) {
	assert.True(t, ValidIdPrefix("ab12"))
	assert.True(t, ValidIdPrefix("0123456789abcdef"))

	assert.False(t, ValidIdPrefix(""))
	assert.False(t, ValidIdPrefix("ab1"))                // too short
	assert.False(t, ValidIdPrefix("0123456789abcdef0")) // too long
	assert.False(t, ValidIdPrefix("ABCD"))              // uppercase
	assert.False(t, ValidIdPrefix("zzzz"))              // non-hex
}

func TestResolveId(t *testing.T) {
	known := []string{
		"aabbccdd11223344",
		"aabbccdd55667788",
		"11223344aabbccdd",
	}

	// Unique prefix.
	id, err := ResolveId("1122", known)
	require.NoError(t, err)
	assert.Equal(t, "11223344aabbccdd", id)

	// Matching is case-insensitive.
	id, err = ResolveId("1122AABB", append(known, "1122aabbcc000000"))
	require.NoError(t, err)
	assert.Equal(t, "1122aabbcc000000", id)

	// A full-length exact match wins even when it prefixes nothing else.
	id, err = ResolveId("aabbccdd11223344", known)
	require.NoError(t, err)
	assert.Equal(t, "aabbccdd11223344", id)

	// Ambiguous prefix names the candidates.
	_, err = ResolveId("aabb", known)
	require.ErrorIs(t, err, ErrState)
	assert.Contains(t, err.Error(), "aabbccdd11223344")
	assert.Contains(t, err.Error(), "aabbccdd55667788")

	// No match.
	_, err = ResolveId("ffff", known)
	require.ErrorIs(t, err, ErrState)

	// Too-short prefix is rejected before any lookup.
	_, err = ResolveId("aab", known)
	require.ErrorIs(t, err, ErrState)
}
