package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.db")
	s, err := Open(path, "hunter2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetContact(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.CreateContact(Contact{ID: "bob", DisplayName: "Bob", PublicKey: []byte("der")}))

	got, ok, err := s.GetContact("bob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Bob", got.DisplayName)

	_, ok, err = s.GetContact("ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListContacts(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CreateContact(Contact{ID: "bob", DisplayName: "Bob"}))
	require.NoError(t, s.CreateContact(Contact{ID: "carol", DisplayName: "Carol"}))

	contacts, err := s.ListContacts()
	require.NoError(t, err)
	assert.Len(t, contacts, 2)
}

func TestCreateMessageAssignsRowIDAndUpdatesIndex(t *testing.T) {
	s := openTestStore(t)

	assert.Equal(t, NoServerID, s.MaxServerIDForRole("alice", RoleSender))
	assert.Equal(t, NoServerID, s.MaxServerIDForRole("bob", RoleReceiver))

	id, err := s.CreateMessage(Message{SenderID: "alice", ReceiverID: "bob", Content: "hi", ServerID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	assert.EqualValues(t, 5, s.MaxServerIDForRole("alice", RoleSender))
	assert.EqualValues(t, 5, s.MaxServerIDForRole("bob", RoleReceiver))

	id2, err := s.CreateMessage(Message{SenderID: "alice", ReceiverID: "bob", Content: "again", ServerID: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(2), id2)
	assert.EqualValues(t, 9, s.MaxServerIDForRole("alice", RoleSender))
}

func TestListMessagesByConversation(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CreateMessage(Message{SenderID: "alice", ReceiverID: "bob", Content: "hi", ServerID: 1})
	require.NoError(t, err)
	_, err = s.CreateMessage(Message{SenderID: "bob", ReceiverID: "alice", Content: "hey", ServerID: 2})
	require.NoError(t, err)
	_, err = s.CreateMessage(Message{SenderID: "alice", ReceiverID: "carol", Content: "unrelated", ServerID: 3})
	require.NoError(t, err)

	withBob, err := s.ListMessagesByConversation("bob")
	require.NoError(t, err)
	assert.Len(t, withBob, 2)
}

func TestReopenRebuildsIndexFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	s, err := Open(path, "hunter2")
	require.NoError(t, err)
	_, err = s.CreateMessage(Message{SenderID: "alice", ReceiverID: "bob", Content: "hi", ServerID: 7})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path, "hunter2")
	require.NoError(t, err)
	defer reopened.Close()
	assert.EqualValues(t, 7, reopened.MaxServerIDForRole("alice", RoleSender))
}

func TestWrongPasswordFailsToDecrypt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	s, err := Open(path, "hunter2")
	require.NoError(t, err)
	require.NoError(t, s.CreateContact(Contact{ID: "bob", DisplayName: "Bob"}))
	require.NoError(t, s.Close())

	wrong, err := Open(path, "wrong-password")
	require.NoError(t, err)
	defer wrong.Close()

	_, _, err = wrong.GetContact("bob")
	assert.Error(t, err)
}
