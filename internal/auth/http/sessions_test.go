package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type sessionListing struct {
	Sessions []struct {
		ID         string `json:"id"`
		AuthMethod string `json:"auth_method"`
		Current    bool   `json:"current"`
	} `json:"sessions"`
}

func TestSessionSelfService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerVerified(t, "alice@example.com", "correct horse")

	current := env.login(t, "alice@example.com", "correct horse")
	other := env.login(t, "alice@example.com", "correct horse")
	third := env.login(t, "alice@example.com", "correct horse")

	t.Run("list marks the requesting session", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/sessions", current.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		listing := decodeBody[sessionListing](t, resp)
		require.Len(t, listing.Sessions, 3)

		currentCount := 0
		for _, s := range listing.Sessions {
			if s.Current {
				currentCount++
				require.Equal(t, current.SessionID, s.ID)
			}
		}
		require.Equal(t, 1, currentCount)
	})

	t.Run("revoke one session by id", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/v1/sessions/"+third.SessionID, current.Token, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		verdict, err := env.client.ValidateSession(ctx, third.Token)
		require.NoError(t, err)
		require.False(t, verdict.Valid)
	})

	t.Run("someone else's session id reads as not found", func(t *testing.T) {
		env.registerVerified(t, "bob@example.com", "correct horse")
		mallory := env.login(t, "bob@example.com", "correct horse")

		resp := env.do(t, http.MethodDelete, "/v1/sessions/"+current.SessionID, mallory.Token, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		verdict, err := env.client.ValidateSession(ctx, current.Token)
		require.NoError(t, err)
		require.True(t, verdict.Valid)
	})

	t.Run("revoke everything else keeps the current session", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/v1/sessions", current.Token, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		verdict, err := env.client.ValidateSession(ctx, other.Token)
		require.NoError(t, err)
		require.False(t, verdict.Valid)

		verdict, err = env.client.ValidateSession(ctx, current.Token)
		require.NoError(t, err)
		require.True(t, verdict.Valid)
	})
}
