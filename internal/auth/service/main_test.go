package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/clubdeck/clubdeck/internal/auth/cache"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/provider"
	"github.com/clubdeck/clubdeck/internal/auth/store/drivers/sqlite"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// recordingMailer captures outgoing mail so tests can read tokens back.
type recordingMailer struct {
	mu           sync.Mutex
	resetTokens  map[string]string
	verifyTokens map[string]string
	alerts       map[string][]string
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{
		resetTokens:  make(map[string]string),
		verifyTokens: make(map[string]string),
		alerts:       make(map[string][]string),
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

func (m *recordingMailer) SendSecurityAlert(_ context.Context, email, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[email] = append(m.alerts[email], message)
}

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

type fixture struct {
	store *sqlite.Store
	cache *cache.RedisCache
	mr    *miniredis.Miniredis
	mail  *recordingMailer

	auth      *AuthService
	sessions  *SessionService
	mfa       *MFAService
	passwords *PasswordService
	linking   *LinkingService
	security  *SecurityService
}

func newFixture(t *testing.T) *fixture {
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

	sessions := &SessionService{Store: s, Cache: c, Logger: log}
	security := &SecurityService{Store: s, Logger: log}
	mfa := &MFAService{Store: s, Cache: c, Issuer: "clubdeck"}
	linking := &LinkingService{Store: s}
	passwords := &PasswordService{Store: s, Mailer: mail, Sessions: sessions, Logger: log}

	reg := provider.NewRegistry(provider.NewLocal(s))
	signer := provider.NewStateSigner([]byte("test-state-secret-0123456789abcd"), time.Minute)

	auth := &AuthService{
		Store:     s,
		Providers: reg,
		State:     signer,
		Linking:   linking,
		Sessions:  sessions,
		MFA:       mfa,
		Passwords: passwords,
		Security:  security,
		Mailer:    mail,
		Logger:    log,
	}

	return &fixture{
		store: s, cache: c, mr: mr, mail: mail,
		auth: auth, sessions: sessions, mfa: mfa,
		passwords: passwords, linking: linking, security: security,
	}
}

var testMeta = ClientMeta{IP: "203.0.113.9", UserAgent: "test-agent"}

// registerVerified provisions a user through the public flow and completes
// email verification so password login works.
func (f *fixture) registerVerified(t *testing.T, email, password string) domain.SanitizedUser {
	t.Helper()
	ctx := context.Background()

	user, err := f.auth.Register(ctx, email, password, testMeta)
	require.NoError(t, err)

	token := f.mail.lastVerifyToken(email)
	require.NotEmpty(t, token)
	require.NoError(t, f.passwords.VerifyEmail(ctx, token))

	return user
}

func (f *fixture) login(t *testing.T, email, password string) domain.SessionTokens {
	t.Helper()
	res, err := f.auth.Login(context.Background(), email, password, false, testMeta)
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	return *res.Tokens
}
