package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmrelay/dmrelay/internal/logger"
	"github.com/dmrelay/dmrelay/pkg/storage/memory"
	"github.com/dmrelay/dmrelay/server/sessioncookie"
	"github.com/dmrelay/dmrelay/wire"
)

// fastArgon2 keeps registration tests quick; production values live in
// config.Argon2Config and are far more expensive.
const (
	fastTimeCost    = 1
	fastMemoryKiB   = 8 * 1024
	fastParallelism = 1
	fastKeyLength   = 32
	fastSaltLength  = 16
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	srv := New(Options{
		Store:              memory.NewStore(),
		Cookies:            sessioncookie.New("dmrelay_session", make([]byte, 32), make([]byte, 32), time.Hour),
		Logger:             logger.NewLogger(&bytes.Buffer{}, logger.ErrorLevel),
		UserCacheSize:      16,
		Argon2TimeCost:     fastTimeCost,
		Argon2MemoryKiB:    fastMemoryKiB,
		Argon2Parallelism:  fastParallelism,
		Argon2KeyLength:    fastKeyLength,
		Argon2SaltLength:   fastSaltLength,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return srv, ts
}

func registerUser(t *testing.T, ts *httptest.Server, id, password string) {
	t.Helper()
	body, err := json.Marshal(wire.RegisterRequest{ID: id, Name: id, Password: password, PublicKey: []byte("der-bytes")})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func loginUser(t *testing.T, ts *httptest.Server, id, password string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	body, err := json.Marshal(wire.LoginRequest{Username: id, Password: password})
	require.NoError(t, err)

	resp, err := client.Post(ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return client
}

func TestRegisterAndLogin(t *testing.T) {
	_, ts := newTestServer(t)
	registerUser(t, ts, "alice", "hunter2")
	loginUser(t, ts, "alice", "hunter2")
}

func TestRegisterDuplicateIsForbidden(t *testing.T) {
	_, ts := newTestServer(t)
	registerUser(t, ts, "alice", "hunter2")

	body, _ := json.Marshal(wire.RegisterRequest{ID: "alice", Password: "other", PublicKey: []byte("der")})
	resp, err := http.Post(ts.URL+"/api/users", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	_, ts := newTestServer(t)
	registerUser(t, ts, "alice", "hunter2")

	body, _ := json.Marshal(wire.LoginRequest{Username: "alice", Password: "wrong"})
	resp, err := http.Post(ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetUserRequiresAuthentication(t *testing.T) {
	_, ts := newTestServer(t)
	registerUser(t, ts, "alice", "hunter2")

	resp, err := http.Get(ts.URL + "/api/users/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendAndSyncMessages(t *testing.T) {
	_, ts := newTestServer(t)
	registerUser(t, ts, "alice", "pw-alice")
	registerUser(t, ts, "bob", "pw-bob")
	aliceClient := loginUser(t, ts, "alice", "pw-alice")
	bobClient := loginUser(t, ts, "bob", "pw-bob")

	sendBody, _ := json.Marshal(wire.SendMessageRequest{
		Recipient:          "bob",
		Contents:           []byte("ciphertext"),
		MySecretKey:        []byte("alice-wrapped-key"),
		RecipientSecretKey: []byte("bob-wrapped-key"),
	})
	resp, err := aliceClient.Post(ts.URL+"/api/messages", "application/json", bytes.NewReader(sendBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sendEntry wire.MessageEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sendEntry))
	assert.Equal(t, []byte("alice-wrapped-key"), sendEntry.SecretKey)

	syncResp, err := bobClient.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	defer syncResp.Body.Close()
	require.Equal(t, http.StatusOK, syncResp.StatusCode)

	var got wire.GetMessagesResponse
	require.NoError(t, json.NewDecoder(syncResp.Body).Decode(&got))
	require.Len(t, got.Inbound, 1)
	assert.Equal(t, []byte("ciphertext"), got.Inbound[0].Contents)
	assert.Equal(t, []byte("bob-wrapped-key"), got.Inbound[0].SecretKey)

	// The sender must also be able to sync their own outbound copy back
	// (cold-start sync re-derives it via UnwrapOwnKey), and it must carry
	// the sender's own wrapped key, not the recipient's (spec.md §8).
	aliceSyncResp, err := aliceClient.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	defer aliceSyncResp.Body.Close()
	require.Equal(t, http.StatusOK, aliceSyncResp.StatusCode)

	var aliceGot wire.GetMessagesResponse
	require.NoError(t, json.NewDecoder(aliceSyncResp.Body).Decode(&aliceGot))
	require.Len(t, aliceGot.Outbound, 1)
	assert.Equal(t, []byte("ciphertext"), aliceGot.Outbound[0].Contents)
	assert.Equal(t, []byte("alice-wrapped-key"), aliceGot.Outbound[0].SecretKey)
	assert.NotEqual(t, aliceGot.Outbound[0].SecretKey, got.Inbound[0].SecretKey)
}

func TestSendMessageToUnknownRecipientIsNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	registerUser(t, ts, "alice", "pw-alice")
	aliceClient := loginUser(t, ts, "alice", "pw-alice")

	body, _ := json.Marshal(wire.SendMessageRequest{Recipient: "ghost", Contents: []byte("hi")})
	resp, err := aliceClient.Post(ts.URL+"/api/messages", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogoutClearsSession(t *testing.T) {
	_, ts := newTestServer(t)
	registerUser(t, ts, "alice", "pw-alice")
	client := loginUser(t, ts, "alice", "pw-alice")

	resp, err := client.Post(ts.URL+"/api/logout", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, err := client.Get(ts.URL + "/api/users/alice")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, getResp.StatusCode)
}
