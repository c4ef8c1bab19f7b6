package sessioncookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *Codec {
	hashKey := make([]byte, 32)
	blockKey := make([]byte, 32)
	for i := range hashKey {
		hashKey[i] = byte(i)
	}
	for i := range blockKey {
		blockKey[i] = byte(255 - i)
	}
	return New("dmrelay_session", hashKey, blockKey, 7*24*time.Hour)
}

func TestSetAndGetRoundTrip(t *testing.T) {
	codec := newTestCodec()

	rec := httptest.NewRecorder()
	require.NoError(t, codec.Set(rec, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	userID, err := codec.Get(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestGetMissingCookie(t *testing.T) {
	codec := newTestCodec()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := codec.Get(req)
	assert.Error(t, err)
}

func TestGetTamperedCookie(t *testing.T) {
	codec := newTestCodec()

	rec := httptest.NewRecorder()
	require.NoError(t, codec.Set(rec, "alice"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	cookies := rec.Result().Cookies()
	cookies[0].Value = cookies[0].Value + "tampered"
	req.AddCookie(cookies[0])

	_, err := codec.Get(req)
	assert.Error(t, err)
}

func TestClearRemovesCookie(t *testing.T) {
	codec := newTestCodec()
	rec := httptest.NewRecorder()
	codec.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestDifferentCodecCannotDecode(t *testing.T) {
	codec := newTestCodec()

	rec := httptest.NewRecorder()
	require.NoError(t, codec.Set(rec, "alice"))

	other := New("dmrelay_session", make([]byte, 32), make([]byte, 32), time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])

	_, err := other.Get(req)
	assert.Error(t, err)
}
