package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/clubdeck/clubdeck/internal/auth/cache"
	"github.com/clubdeck/clubdeck/internal/auth/provider"
	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/internal/auth/store/drivers/sqlite"
	"github.com/clubdeck/clubdeck/pkg/authclient"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	// The shared limits are tuned for production traffic; raise them so the
	// tests that are not about rate limiting never trip them.
	generous := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	httpx.StrictLimit = generous
	httpx.ModerateLimit = generous
	httpx.LenientLimit = generous

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// recordingMailer captures outgoing mail so tests can read tokens back.
type recordingMailer struct {
	mu           sync.Mutex
	resetTokens  map[string]string
	verifyTokens map[string]string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{
		resetTokens:  make(map[string]string),
		verifyTokens: make(map[string]string),
	}
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens[email] = token
}

func (m *recordingMailer) SendEmailVerification(_ context.Context, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens[email] = token
}

func (m *recordingMailer) SendSecurityAlert(_ context.Context, _, _ string) {}

func (m *recordingMailer) lastResetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetTokens[email]
}

func (m *recordingMailer) lastVerifyToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyTokens[email]
}

type testEnv struct {
	srv    *httptest.Server
	client *authclient.Client
	router *Router

	store *sqlite.Store
	cache *cache.RedisCache
	mr    *miniredis.Miniredis
	mail  *recordingMailer

	auth *service.AuthService
	mfa  *service.MFAService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mail := newRecordingMailer()

	sessions := &service.SessionService{Store: s, Cache: c, Logger: log}
	security := &service.SecurityService{Store: s, Logger: log}
	mfa := &service.MFAService{Store: s, Cache: c, Issuer: "clubdeck"}
	linking := &service.LinkingService{Store: s}
	passwords := &service.PasswordService{Store: s, Mailer: mail, Sessions: sessions, Logger: log}

	auth := &service.AuthService{
		Store:     s,
		Providers: provider.NewRegistry(provider.NewLocal(s)),
		State:     provider.NewStateSigner([]byte("test-state-secret-0123456789abcd"), time.Minute),
		Linking:   linking,
		Sessions:  sessions,
		MFA:       mfa,
		Passwords: passwords,
		Security:  security,
		Mailer:    mail,
		Logger:    log,
	}

	router := NewRouter("test", s, c, log)
	router.AuthService = auth
	router.SessionService = sessions
	router.MFAService = mfa
	router.PasswordService = passwords
	router.LinkingService = linking
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{
		srv:    srv,
		client: authclient.NewClient(srv.URL),
		router: router,
		store:  s,
		cache:  c,
		mr:     mr,
		mail:   mail,
		auth:   auth,
		mfa:    mfa,
	}
}

// registerVerified drives the public endpoints end to end: register, then
// complete email verification with the emailed token.
func (e *testEnv) registerVerified(t *testing.T, email, password string) *authclient.User {
	t.Helper()
	ctx := context.Background()

	user, err := e.client.Register(ctx, email, password)
	require.NoError(t, err)

	token := e.mail.lastVerifyToken(email)
	require.NotEmpty(t, token)

	resp := e.do(t, http.MethodPost, "/v1/email/verify", "", map[string]string{"token": token})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	return user
}

func (e *testEnv) login(t *testing.T, email, password string) *authclient.SessionTokens {
	t.Helper()
	res, err := e.client.Login(context.Background(), email, password, false)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	return res.Session
}

// do issues a raw request for endpoints the client SDK does not wrap.
// The response body is buffered into resp.Body for the caller.
func (e *testEnv) do(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
