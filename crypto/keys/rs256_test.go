package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.NotNil(t, kp.Private)
	assert.NotNil(t, kp.Public)
	assert.Equal(t, &kp.Private.PublicKey, kp.Public)
	assert.NotEmpty(t, kp.Fingerprint())
}

func TestMultipleKeyPairsHaveDifferentFingerprints(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)

	assert.NotEqual(t, kp1.Fingerprint(), kp2.Fingerprint())
}

func TestWrapUnwrapKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	symmetricKey := make([]byte, 32)
	for i := range symmetricKey {
		symmetricKey[i] = byte(i)
	}

	wrapped, err := WrapKey(symmetricKey, kp.Public)
	require.NoError(t, err)
	assert.NotEmpty(t, wrapped)
	assert.NotEqual(t, symmetricKey, wrapped)

	unwrapped, err := UnwrapKey(wrapped, kp.Private)
	require.NoError(t, err)
	assert.Equal(t, symmetricKey, unwrapped)
}

func TestUnwrapKeyWrongPrivateKey(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)

	symmetricKey := make([]byte, 32)
	wrapped, err := WrapKey(symmetricKey, kp1.Public)
	require.NoError(t, err)

	_, err = UnwrapKey(wrapped, kp2.Private)
	assert.Error(t, err)
}
