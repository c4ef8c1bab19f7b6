package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmrelay/dmrelay/wire"
)

func TestCheckConnection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/hello" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := New(ts.URL)
	require.NoError(t, err)
	assert.NoError(t, c.CheckConnection(context.Background()))
}

func TestLoginSetsSessionCookie(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "user", Value: "token"})
			_ = json.NewEncoder(w).Encode(wire.UserProfile{ID: "alice", Name: "Alice"})
		case "/users/alice":
			if _, err := r.Cookie("user"); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(wire.UserProfile{ID: "alice", Name: "Alice"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c, err := New(ts.URL)
	require.NoError(t, err)

	profile, err := c.Login(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.ID)

	got, err := c.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
}

func TestSendMessageAndGetMessages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/messages":
			var req wire.SendMessageRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "bob", req.Recipient)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(wire.MessageEntry{ID: 1, Contents: req.Contents, SecretKey: req.MySecretKey})
		case r.Method == http.MethodGet && r.URL.Path == "/messages":
			assert.Equal(t, "0", r.URL.Query().Get("after"))
			_ = json.NewEncoder(w).Encode(wire.GetMessagesResponse{
				Inbound: []wire.MessageEntry{{ID: 2, Contents: []byte("hi")}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	c, err := New(ts.URL)
	require.NoError(t, err)

	entry, err := c.SendMessage(context.Background(), "bob", []byte("payload"), []byte("a-key"), []byte("b-key"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ID)

	got, err := c.GetMessages(context.Background(), 0, -1)
	require.NoError(t, err)
	require.Len(t, got.Inbound, 1)
	assert.Equal(t, []byte("hi"), got.Inbound[0].Contents)
}

func TestRegisterDuplicateReturnsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(wire.ErrorResponse{Error: "user already exists"})
	}))
	defer ts.Close()

	c, err := New(ts.URL)
	require.NoError(t, err)

	err = c.Register(context.Background(), "alice", "Alice", "pw", []byte("der"))
	assert.ErrorContains(t, err, "user already exists")
}
