package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/provider"
	"github.com/stretchr/testify/require"
)

// newFakeIdP serves a minimal token + userinfo endpoint pair for one subject.
func newFakeIdP(t *testing.T, subject, email string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at-" + subject})
		case "/userinfo":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sub": subject, "email": email, "email_verified": true,
				"name": "SSO User",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (e *testEnv) withGoogle(idp *httptest.Server) {
	google := provider.NewSSO(provider.SSOConfig{
		Name:        domain.ProviderGoogle,
		ClientID:    "cid",
		AuthURL:     idp.URL + "/authorize",
		TokenURL:    idp.URL + "/token",
		UserInfoURL: idp.URL + "/userinfo",
		Scopes:      []string{"openid", "email", "profile"},
	})
	e.auth.Providers = provider.NewRegistry(provider.NewLocal(e.store), google)
}

type identityListing struct {
	Identities []struct {
		ID       string `json:"id"`
		Provider string `json:"provider"`
		Primary  bool   `json:"primary"`
	} `json:"identities"`
}

func TestSSOOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.withGoogle(newFakeIdP(t, "goog-100", "sso@example.com"))

	resp := env.do(t, http.MethodGet,
		"/v1/auth/sso/google?redirect_uri="+url.QueryEscape("https://app/callback"), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	begin := decodeBody[ssoBeginResponse](t, resp)
	require.Contains(t, begin.AuthURL, "/authorize?")
	require.NotEmpty(t, begin.State)

	t.Run("callback provisions and signs in", func(t *testing.T) {
		resp := env.do(t, http.MethodGet,
			"/v1/auth/sso/google/callback?state="+url.QueryEscape(begin.State)+"&code=auth-code", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		res := decodeBody[loginResponse](t, resp)
		require.NotNil(t, res.Session)
		require.Equal(t, "sso@example.com", res.User.Email)

		verdict, err := env.client.ValidateSession(ctx, res.Session.Token)
		require.NoError(t, err)
		require.True(t, verdict.Valid)
	})

	t.Run("tampered state is a 401", func(t *testing.T) {
		resp := env.do(t, http.MethodGet,
			"/v1/auth/sso/google/callback?state="+url.QueryEscape(begin.State)+"x&code=auth-code", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown provider is a 400", func(t *testing.T) {
		resp := env.do(t, http.MethodGet,
			"/v1/auth/sso/github?redirect_uri="+url.QueryEscape("https://app/callback"), "", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing redirect_uri is a 400", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/auth/sso/google", "", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestIdentityLinkingOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.withGoogle(newFakeIdP(t, "goog-200", "linked@gmail.com"))
	env.registerVerified(t, "owner@example.com", "correct horse")
	tokens := env.login(t, "owner@example.com", "correct horse")

	resp := env.do(t, http.MethodPost, "/v1/identities/link/google", tokens.Token,
		map[string]string{"redirect_uri": "https://app/callback"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	begin := decodeBody[ssoBeginResponse](t, resp)

	t.Run("link callback attaches without minting a session", func(t *testing.T) {
		resp := env.do(t, http.MethodGet,
			"/v1/auth/sso/google/callback?state="+url.QueryEscape(begin.State)+"&code=auth-code", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		res := decodeBody[loginResponse](t, resp)
		require.Nil(t, res.Session)
	})

	t.Run("identity listing shows both credentials", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/identities", tokens.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		listing := decodeBody[identityListing](t, resp)
		require.Len(t, listing.Identities, 2)
	})

	t.Run("unlinking the google identity", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/identities", tokens.Token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		listing := decodeBody[identityListing](t, resp)

		var googleID, localID string
		for _, identity := range listing.Identities {
			switch identity.Provider {
			case domain.ProviderGoogle:
				googleID = identity.ID
			case domain.ProviderLocal:
				localID = identity.ID
			}
		}
		require.NotEmpty(t, googleID)

		resp = env.do(t, http.MethodDelete, "/v1/identities/"+googleID, tokens.Token, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		// The last identity is protected.
		resp = env.do(t, http.MethodDelete, "/v1/identities/"+localID, tokens.Token, nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}
