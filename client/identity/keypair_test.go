package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrGenerateKeyPairPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateKeyPair(dir, "alice")
	require.NoError(t, err)

	second, err := LoadOrGenerateKeyPair(dir, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.Public.N, second.Public.N)
	assert.Equal(t, first.Private.D, second.Private.D)
}

func TestLoadOrGenerateKeyPairDistinctIdentities(t *testing.T) {
	dir := t.TempDir()

	alice, err := LoadOrGenerateKeyPair(dir, "alice")
	require.NoError(t, err)
	bob, err := LoadOrGenerateKeyPair(dir, "bob")
	require.NoError(t, err)

	assert.NotEqual(t, alice.Public.N, bob.Public.N)
}
