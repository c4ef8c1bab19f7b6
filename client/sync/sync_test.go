package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmrelay/dmrelay/client/pipeline"
	"github.com/dmrelay/dmrelay/client/session"
	"github.com/dmrelay/dmrelay/client/store"
	"github.com/dmrelay/dmrelay/client/transport"
	"github.com/dmrelay/dmrelay/crypto/keys"
	"github.com/dmrelay/dmrelay/internal/logger"
	"github.com/dmrelay/dmrelay/wire"
)

func newTestLoop(t *testing.T, handler http.HandlerFunc) (*Loop, *keys.KeyPair) {
	t.Helper()

	bob, err := keys.GenerateKeyPair()
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client, err := transport.New(ts.URL)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "client.db"), "hunter2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	machine := session.NewMachine()
	require.NoError(t, machine.Transition(session.Connected))
	require.NoError(t, machine.Transition(session.Authenticated))

	log := logger.NewLogger(&bytes.Buffer{}, logger.ErrorLevel)
	return New("bob", bob.Private, client, st, machine, log), bob
}

func TestColdStartSyncPersistsAndDiscoversContact(t *testing.T) {
	var bobPub *keys.KeyPair
	alice, err := keys.GenerateKeyPair()
	require.NoError(t, err)

	out, data, err := pipeline.PrepareSend("alice", "bob", "hello bob", 1, 0, alice.Public, alice.Public)
	require.NoError(t, err)
	_ = data

	loop, bob := newTestLoop(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/messages":
			_ = json.NewEncoder(w).Encode(wire.GetMessagesResponse{
				Inbound: []wire.MessageEntry{{ID: 7, Contents: out.Payload, SecretKey: mustWrap(t, out.SymmetricKey, bob)}},
			})
		case r.URL.Path == "/users/alice":
			_ = json.NewEncoder(w).Encode(wire.UserProfile{ID: "alice", Name: "Alice", PublicKey: []byte("der")})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	bobPub = bob

	err = loop.ColdStartSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Synced, loop.machine.Current())

	messages, err := loop.store.ListMessagesByConversation("alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello bob", messages[0].Content)

	_, ok, err := loop.store.GetContact("alice")
	require.NoError(t, err)
	assert.True(t, ok)
	_ = bobPub
}

func TestColdStartSyncIsIdempotentOnReplay(t *testing.T) {
	alice, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	out, _, err := pipeline.PrepareSend("alice", "bob", "hi again", 1, 0, alice.Public, alice.Public)
	require.NoError(t, err)

	var bob *keys.KeyPair
	loop, b := newTestLoop(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/messages":
			_ = json.NewEncoder(w).Encode(wire.GetMessagesResponse{
				Inbound: []wire.MessageEntry{{ID: 3, Contents: out.Payload, SecretKey: mustWrap(t, out.SymmetricKey, b)}},
			})
		case "/users/alice":
			_ = json.NewEncoder(w).Encode(wire.UserProfile{ID: "alice", Name: "Alice"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	bob = b

	require.NoError(t, loop.ColdStartSync(context.Background()))
	messages, err := loop.store.ListMessagesByConversation("alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	require.NoError(t, loop.processEntry(context.Background(), 3, out.Payload, mustWrap(t, out.SymmetricKey, bob), conversationBySender))
	messages, err = loop.store.ListMessagesByConversation("alice")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func mustWrap(t *testing.T, symmetricKey []byte, kp *keys.KeyPair) []byte {
	t.Helper()
	wrapped, err := keys.WrapKey(symmetricKey, kp.Public)
	require.NoError(t, err)
	return wrapped
}
