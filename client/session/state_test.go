package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappyPathTransitions(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Disconnected, m.Current())

	require.NoError(t, m.Transition(Connected))
	require.NoError(t, m.Transition(Authenticated))
	assert.False(t, m.CanSend())

	require.NoError(t, m.Transition(Synced))
	assert.True(t, m.CanSend())

	require.NoError(t, m.Transition(Live))
	assert.True(t, m.CanSend())
}

func TestIllegalTransitionIsRejected(t *testing.T) {
	m := NewMachine()
	err := m.Transition(Synced)
	assert.Error(t, err)
	assert.Equal(t, Disconnected, m.Current())
}

func TestLiveTransportFailureReturnsToAuthenticated(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(Connected))
	require.NoError(t, m.Transition(Authenticated))
	require.NoError(t, m.Transition(Synced))
	require.NoError(t, m.Transition(Live))

	require.NoError(t, m.Transition(Authenticated))
	assert.False(t, m.CanSend())
}

func TestLogoutReturnsToDisconnectedFromAnyLiveState(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(Connected))
	require.NoError(t, m.Transition(Authenticated))
	require.NoError(t, m.Transition(Synced))
	require.NoError(t, m.Transition(Live))
	require.NoError(t, m.Transition(Disconnected))
	assert.Equal(t, Disconnected, m.Current())
}

func TestErrorStateOnlyReturnsToDisconnected(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(Connected))
	require.NoError(t, m.Transition(Error))
	assert.Error(t, m.Transition(Live))
	require.NoError(t, m.Transition(Disconnected))
}
