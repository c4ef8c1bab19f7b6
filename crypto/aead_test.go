package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectUnprotectRoundTrip(t *testing.T) {
	key, err := NewSymmetricKey()
	require.NoError(t, err)

	plaintext := []byte("the quick brown fox")
	ciphertext, nonce, err := Protect(plaintext, key)
	require.NoError(t, err)
	assert.Len(t, nonce, NonceSize)

	got, err := Unprotect(ciphertext, key, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestUnprotectTamperedCiphertext(t *testing.T) {
	key, err := NewSymmetricKey()
	require.NoError(t, err)

	ciphertext, nonce, err := Protect([]byte("hello"), key)
	require.NoError(t, err)
	ciphertext[0] ^= 0xFF

	_, err = Unprotect(ciphertext, key, nonce)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestUnprotectWrongKey(t *testing.T) {
	key, err := NewSymmetricKey()
	require.NoError(t, err)
	otherKey, err := NewSymmetricKey()
	require.NoError(t, err)

	ciphertext, nonce, err := Protect([]byte("hello"), key)
	require.NoError(t, err)

	_, err = Unprotect(ciphertext, otherKey, nonce)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestJoinSplitPayload(t *testing.T) {
	key, err := NewSymmetricKey()
	require.NoError(t, err)

	ciphertext, nonce, err := Protect([]byte("payload"), key)
	require.NoError(t, err)

	payload := JoinPayload(ciphertext, nonce)
	gotCiphertext, gotNonce, err := SplitPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, ciphertext, gotCiphertext)
	assert.Equal(t, nonce, gotNonce)
}

func TestSplitPayloadTruncated(t *testing.T) {
	_, _, err := SplitPayload(make([]byte, NonceSize-1))
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestProtectRejectsWrongKeySize(t *testing.T) {
	_, _, err := Protect([]byte("hello"), make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
