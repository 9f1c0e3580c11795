package mockapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher(t *testing.T) {
	h := newPasswordHasher()

	encoded, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"))

	assert.True(t, h.Verify("correct horse", encoded))
	assert.False(t, h.Verify("battery staple", encoded))

	again, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "salts differ")
}

func TestPasswordHasher_RejectsMalformedHashes(t *testing.T) {
	h := newPasswordHasher()
	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		assert.False(t, h.Verify("anything", bad), bad)
	}
}

func TestNewRefreshToken(t *testing.T) {
	a, err := newRefreshToken()
	require.NoError(t, err)
	b, err := newRefreshToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
