package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmrelay/dmrelay/wire"
)

func TestDialNotificationsReceivesFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		err = conn.WriteJSON(wire.NotificationFrame{ID: 42, Contents: []byte("hi")})
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
	}))
	defer ts.Close()

	restClient, err := New(ts.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := DialNotifications(ctx, ts.URL, restClient)
	require.NoError(t, err)
	defer stream.Close()

	frame, err := stream.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), frame.ID)
	assert.Equal(t, []byte("hi"), frame.Contents)
}
