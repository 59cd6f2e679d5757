package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newStubServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case req.Password == "wrong":
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "unauthorized", "message": "invalid credentials",
			})
		case req.Email == "mfa@example.com":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(LoginResponse{
				User: User{ID: "u2", Email: req.Email},
				MFA:  &MFAChallenge{MFARequired: true, ChallengeID: "ch1", Methods: []string{"totp"}},
			})
		default:
			_ = json.NewEncoder(w).Encode(LoginResponse{
				User: User{ID: "u1", Email: req.Email},
				Session: &SessionTokens{
					SessionID: "s1", Token: "tok", RefreshToken: "ref",
					ExpiresAt: time.Now().Add(time.Hour),
				},
			})
		}
	})

	mux.HandleFunc("POST /v1/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SessionValidation{
			Valid: req.Token == "tok", Reason: "not_found",
			UserID: "u1", SessionID: "s1",
		})
	})

	mux.HandleFunc("POST /v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Uptime: "1s", Version: "test"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLogin(t *testing.T) {
	srv := newStubServer(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	t.Run("successful login returns tokens", func(t *testing.T) {
		res, err := c.Login(ctx, "alice@example.com", "correct horse", false)
		require.NoError(t, err)
		require.NotNil(t, res.Session)
		require.Nil(t, res.MFA)
		require.Equal(t, "tok", res.Session.Token)
	})

	t.Run("mfa gate surfaces as a challenge, not an error", func(t *testing.T) {
		res, err := c.Login(ctx, "mfa@example.com", "correct horse", false)
		require.NoError(t, err)
		require.Nil(t, res.Session)
		require.NotNil(t, res.MFA)
		require.Equal(t, "ch1", res.MFA.ChallengeID)
	})

	t.Run("rejection is a typed api error", func(t *testing.T) {
		_, err := c.Login(ctx, "alice@example.com", "wrong", false)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "unauthorized", apiErr.Code)
	})
}

func TestClientSessionLifecycle(t *testing.T) {
	srv := newStubServer(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	verdict, err := c.ValidateSession(ctx, "tok")
	require.NoError(t, err)
	require.True(t, verdict.Valid)

	require.NoError(t, c.Logout(ctx, "tok"))
}

func TestClientHealth(t *testing.T) {
	srv := newStubServer(t)
	c := NewClient(srv.URL)

	health, err := c.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
}

func TestClientUnexpectedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL).GetLiveness(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusGatewayTimeout, apiErr.StatusCode)
	require.Equal(t, "unexpected_status", apiErr.Code)
}
