package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/store/drivers/sqlite"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "provider-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newLocalFixture(t *testing.T) (*Local, *sqlite.Store) {
	t.Helper()
	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return NewLocal(s), s
}

func TestLocalAuthenticate(t *testing.T) {
	p, s := newLocalFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	hash, err := cryptox.HashPassword("hunter2!")
	require.NoError(t, err)

	require.NoError(t, s.Users().CreateUser(ctx, domain.User{
		ID: "01U", Email: "alice@example.com", Active: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, s.Identities().CreateIdentity(ctx, domain.Identity{
		ID: "01I", UserID: "01U", Provider: domain.ProviderLocal,
		Subject: "alice@example.com", Email: "alice@example.com",
		PasswordHash: hash, Verified: true, Primary: true,
		CreatedAt: now, UpdatedAt: now,
	}))

	t.Run("correct password", func(t *testing.T) {
		identity, err := p.Authenticate(ctx, "Alice@Example.com ", "hunter2!")
		require.NoError(t, err)
		require.Equal(t, "01U", identity.UserID)
	})

	t.Run("wrong password and unknown email answer identically", func(t *testing.T) {
		_, err1 := p.Authenticate(ctx, "alice@example.com", "wrong")
		_, err2 := p.Authenticate(ctx, "ghost@example.com", "whatever")
		require.True(t, autherr.IsCode(err1, autherr.CodeUnauthorized))
		require.True(t, autherr.IsCode(err2, autherr.CodeUnauthorized))
		require.Equal(t, err1.Error(), err2.Error())
	})

	t.Run("sso-only identity rejects password login", func(t *testing.T) {
		require.NoError(t, s.Users().CreateUser(ctx, domain.User{
			ID: "01U2", Email: "bob@example.com", Active: true, CreatedAt: now, UpdatedAt: now,
		}))
		require.NoError(t, s.Identities().CreateIdentity(ctx, domain.Identity{
			ID: "01I2", UserID: "01U2", Provider: domain.ProviderLocal,
			Subject: "bob@example.com", Email: "bob@example.com",
			Verified: true, Primary: true, CreatedAt: now, UpdatedAt: now,
		}))
		_, err := p.Authenticate(ctx, "bob@example.com", "anything")
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})
}

func TestSSOExchange(t *testing.T) {
	t.Run("successful exchange returns subject and profile", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/token":
				require.NoError(t, r.ParseForm())
				require.Equal(t, "authorization_code", r.FormValue("grant_type"))
				require.Equal(t, "code-1", r.FormValue("code"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer"}`))
			case "/userinfo":
				require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"sub":"goog-42","email":"Carol@Example.com","email_verified":true,"name":"Carol","picture":"https://p/c.png"}`))
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		p := NewSSO(SSOConfig{
			Name: domain.ProviderGoogle, ClientID: "cid", ClientSecret: "sec",
			TokenURL: srv.URL + "/token", UserInfoURL: srv.URL + "/userinfo",
		})

		sub, profile, err := p.Exchange(context.Background(), "code-1", "https://app/callback")
		require.NoError(t, err)
		require.Equal(t, "goog-42", sub)
		require.Equal(t, "carol@example.com", profile.Email)
		require.True(t, profile.EmailVerified)
		require.Equal(t, "Carol", profile.DisplayName)
	})

	t.Run("5xx is retried then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/token" {
				if calls.Add(1) < 3 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = w.Write([]byte(`{"access_token":"at-1"}`))
				return
			}
			_, _ = w.Write([]byte(`{"sub":"s-1"}`))
		}))
		defer srv.Close()

		p := NewSSO(SSOConfig{
			Name: domain.ProviderGoogle,
			TokenURL: srv.URL + "/token", UserInfoURL: srv.URL + "/userinfo",
		})

		sub, _, err := p.Exchange(context.Background(), "c", "r")
		require.NoError(t, err)
		require.Equal(t, "s-1", sub)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("persistent 5xx exhausts retries as external error", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p := NewSSO(SSOConfig{Name: domain.ProviderGoogle, TokenURL: srv.URL, UserInfoURL: srv.URL})

		_, _, err := p.Exchange(context.Background(), "c", "r")
		require.True(t, autherr.IsCode(err, autherr.CodeExternal))
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("4xx is definitive and not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		p := NewSSO(SSOConfig{Name: domain.ProviderGoogle, TokenURL: srv.URL, UserInfoURL: srv.URL})

		_, _, err := p.Exchange(context.Background(), "bad-code", "r")
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
		require.Equal(t, int32(1), calls.Load())
	})
}

func TestStateSigner(t *testing.T) {
	signer := NewStateSigner([]byte("test-secret-test-secret-12345678"), time.Minute)

	t.Run("round trip", func(t *testing.T) {
		tok, err := signer.Issue(domain.ProviderGoogle, "https://app/callback", "")
		require.NoError(t, err)

		claims, err := signer.Verify(tok, domain.ProviderGoogle)
		require.NoError(t, err)
		require.Equal(t, "https://app/callback", claims.RedirectURI)
		require.Empty(t, claims.LinkUserID)
	})

	t.Run("provider mismatch rejected", func(t *testing.T) {
		tok, err := signer.Issue(domain.ProviderGoogle, "https://app/callback", "")
		require.NoError(t, err)

		_, err = signer.Verify(tok, domain.ProviderMicrosoft)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		other := NewStateSigner([]byte("another-secret-another-secret-00"), time.Minute)
		tok, err := other.Issue(domain.ProviderGoogle, "u", "")
		require.NoError(t, err)

		_, err = signer.Verify(tok, domain.ProviderGoogle)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := signer.Verify("not-a-jwt", domain.ProviderGoogle)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})
}

func TestRegistry(t *testing.T) {
	local := &Local{}
	google := NewSSO(SSOConfig{Name: domain.ProviderGoogle})
	reg := NewRegistry(local, google)

	p, err := reg.Get(domain.ProviderLocal)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderLocal, p.Name())

	_, err = reg.Get("github")
	require.True(t, autherr.IsCode(err, autherr.CodeValidation))

	ex, err := reg.Exchanger(domain.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, domain.ProviderGoogle, ex.Name())

	_, err = reg.Exchanger(domain.ProviderLocal)
	require.True(t, autherr.IsCode(err, autherr.CodeValidation))

	require.ElementsMatch(t, []string{"local", "google"}, reg.Names())
}
