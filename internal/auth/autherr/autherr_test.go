package autherr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{Validation("email", "required"), http.StatusBadRequest},
		{Conflict("email already registered"), http.StatusConflict},
		{Unauthorized("bad credentials"), http.StatusUnauthorized},
		{Invariant("cannot remove last identity"), http.StatusUnprocessableEntity},
		{TooManyRequests("rate limited"), http.StatusTooManyRequests},
		{NotFound("session not found"), http.StatusNotFound},
		{External("provider unreachable", nil), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		require.Equal(t, tt.status, tt.err.HTTPStatus(), tt.err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("login: %w", Unauthorized("bad credentials"))
	require.Equal(t, CodeUnauthorized, CodeOf(err))
	require.True(t, IsCode(err, CodeUnauthorized))
	require.False(t, IsCode(err, CodeConflict))

	require.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := External("provider unreachable", inner)
	require.ErrorIs(t, err, inner)
}

func TestValidationCarriesField(t *testing.T) {
	err := Validation("password", "too short")
	require.Equal(t, "password", err.Field)
	require.Contains(t, err.Error(), "password")
	require.Contains(t, err.Error(), "too short")
}
