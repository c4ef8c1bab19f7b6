package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	params := DefaultPasswordParams()
	hash, err := HashPassword("correct-horse-battery-staple", params)
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	assert.True(t, VerifyPassword("correct-horse-battery-staple", hash))
	assert.False(t, VerifyPassword("wrong-password", hash))
}

func TestVerifyPasswordInvalidHash(t *testing.T) {
	assert.False(t, VerifyPassword("anything", "not-a-valid-hash"))
	assert.False(t, VerifyPassword("anything", "$argon2id$v=19$m=bad$salt$hash"))
}

func TestHashPasswordProducesDistinctSalts(t *testing.T) {
	params := DefaultPasswordParams()
	hash1, err := HashPassword("same-password", params)
	require.NoError(t, err)
	hash2, err := HashPassword("same-password", params)
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
	assert.True(t, VerifyPassword("same-password", hash1))
	assert.True(t, VerifyPassword("same-password", hash2))
}
