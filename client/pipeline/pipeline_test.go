package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmrelay/dmrelay/crypto/keys"
	"github.com/dmrelay/dmrelay/internal/logger"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	data := NewMessageData("alice", "bob", "hello", 0, 1)
	key := make([]byte, 32)

	payload, err := data.Encrypt(key)
	require.NoError(t, err)

	got, err := DecryptMessageData(payload, key)
	require.NoError(t, err)
	assert.Equal(t, data.Content, got.Content)
	assert.Equal(t, data.SentCounter, got.SentCounter)
}

func TestDecryptRejectsTamperedPayload(t *testing.T) {
	data := NewMessageData("alice", "bob", "hello", 0, 1)
	key := make([]byte, 32)

	payload, err := data.Encrypt(key)
	require.NoError(t, err)
	payload[0] ^= 0xFF

	_, err = DecryptMessageData(payload, key)
	assert.Error(t, err)
}

func TestPrepareSendAndReceiveRoundTrip(t *testing.T) {
	alice, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := keys.GenerateKeyPair()
	require.NoError(t, err)

	out, sentData, err := PrepareSend("alice", "bob", "hi bob", 1, 0, alice.Public, bob.Public)
	require.NoError(t, err)
	assert.Equal(t, "hi bob", sentData.Content)

	own, err := VerifyOwnCopy(out.Payload, out.SymmetricKey)
	require.NoError(t, err)
	assert.Equal(t, sentData.Content, own.Content)

	log := logger.NewLogger(&bytes.Buffer{}, logger.ErrorLevel)
	received, ok := ReceiveEntry(log, Inbound{ServerID: 1, Payload: out.Payload, WrappedKey: out.RecipientWrappedKey}, bob.Private)
	require.True(t, ok)
	assert.Equal(t, "hi bob", received.Data.Content)
}

func TestReceiveEntryDropsOnBadWrappedKey(t *testing.T) {
	bob, err := keys.GenerateKeyPair()
	require.NoError(t, err)

	log := logger.NewLogger(&bytes.Buffer{}, logger.ErrorLevel)
	_, ok := ReceiveEntry(log, Inbound{ServerID: 1, Payload: []byte("x"), WrappedKey: []byte("not-wrapped")}, bob.Private)
	assert.False(t, ok)
}
