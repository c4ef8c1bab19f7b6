package relayerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelayErrorWrapping(t *testing.T) {
	wrapped := fmt.Errorf("get user: %w", ErrNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrForbidden))
}

func TestRelayErrorHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ErrNotFound.HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ErrUnauthorized.HTTPStatus)
	assert.Equal(t, http.StatusForbidden, ErrForbidden.HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, ErrInternal.HTTPStatus)
}

func TestRelayErrorMessage(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
}
