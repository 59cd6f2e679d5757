package service

import (
	"context"
	"testing"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "alice@example.com", "old password")
	tokens := f.login(t, "alice@example.com", "old password")

	require.NoError(t, f.passwords.RequestReset(ctx, "alice@example.com"))
	resetToken := f.mail.lastResetToken("alice@example.com")
	require.NotEmpty(t, resetToken)

	require.NoError(t, f.passwords.CompleteReset(ctx, resetToken, "new password"))

	t.Run("old password is dead, new one works", func(t *testing.T) {
		_, err := f.auth.Login(ctx, "alice@example.com", "old password", false, testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))

		res, err := f.auth.Login(ctx, "alice@example.com", "new password", false, testMeta)
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
	})

	t.Run("all prior sessions are revoked", func(t *testing.T) {
		verdict, err := f.sessions.Validate(ctx, tokens.Token)
		require.NoError(t, err)
		require.False(t, verdict.Valid)
	})

	t.Run("token is single-use", func(t *testing.T) {
		err := f.passwords.CompleteReset(ctx, resetToken, "yet another password")
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})
}

func TestRequestResetIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		require.NoError(t, f.passwords.RequestReset(ctx, "ghost@example.com"))
		require.Empty(t, f.mail.lastResetToken("ghost@example.com"))
	})

	t.Run("sso-only account gets no token", func(t *testing.T) {
		// Provision a user with only an SSO identity, no password.
		now := time.Now().UTC()
		user := domain.User{ID: idx.New().String(), Email: "sso@example.com",
			EmailVerified: true, Active: true, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, f.store.Users().CreateUser(ctx, user))
		require.NoError(t, f.store.Identities().CreateIdentity(ctx, domain.Identity{
			ID: idx.New().String(), UserID: user.ID, Provider: domain.ProviderGoogle,
			Subject: "goog-1", Email: user.Email, Verified: true, Primary: true,
			CreatedAt: now, UpdatedAt: now,
		}))

		require.NoError(t, f.passwords.RequestReset(ctx, "sso@example.com"))
		require.Empty(t, f.mail.lastResetToken("sso@example.com"))
	})
}

func TestCompleteResetRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.passwords.CompleteReset(ctx, "no-such-token", "new password")
	require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))

	err = f.passwords.CompleteReset(ctx, "whatever", "short")
	require.True(t, autherr.IsCode(err, autherr.CodeValidation))
}

func TestExpiredResetTokenIsInert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "bob@example.com", "old password")

	f.passwords.ResetTTL = time.Nanosecond
	require.NoError(t, f.passwords.RequestReset(ctx, "bob@example.com"))
	token := f.mail.lastResetToken("bob@example.com")
	require.NotEmpty(t, token)

	time.Sleep(5 * time.Millisecond)
	err := f.passwords.CompleteReset(ctx, token, "new password")
	require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))

	// The old password still works.
	_, err = f.auth.Login(ctx, "bob@example.com", "old password", false, testMeta)
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.registerVerified(t, "carol@example.com", "old password")

	current := f.login(t, "carol@example.com", "old password")
	other := f.login(t, "carol@example.com", "old password")

	t.Run("wrong current password is rejected", func(t *testing.T) {
		err := f.passwords.ChangePassword(ctx, user.ID, current.SessionID, "not it", "new password")
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})

	t.Run("change keeps the current session, drops the rest", func(t *testing.T) {
		require.NoError(t, f.passwords.ChangePassword(ctx, user.ID, current.SessionID, "old password", "new password"))

		verdict, err := f.sessions.Validate(ctx, current.Token)
		require.NoError(t, err)
		require.True(t, verdict.Valid)

		verdict, err = f.sessions.Validate(ctx, other.Token)
		require.NoError(t, err)
		require.False(t, verdict.Valid)

		res, err := f.auth.Login(ctx, "carol@example.com", "new password", false, testMeta)
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
	})
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.Register(ctx, "dave@example.com", "correct horse", testMeta)
	require.NoError(t, err)
	token := f.mail.lastVerifyToken("dave@example.com")
	require.NotEmpty(t, token)

	require.NoError(t, f.passwords.VerifyEmail(ctx, token))

	got, err := f.store.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, got.EmailVerified)

	identity, err := f.store.Identities().GetIdentityByProviderSubject(ctx, domain.ProviderLocal, "dave@example.com")
	require.NoError(t, err)
	require.True(t, identity.Verified)

	t.Run("token is single-use", func(t *testing.T) {
		err := f.passwords.VerifyEmail(ctx, token)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})

	t.Run("resending for a verified user is a no-op", func(t *testing.T) {
		before := f.mail.lastVerifyToken("dave@example.com")
		require.NoError(t, f.passwords.SendVerificationEmail(ctx, user.ID))
		require.Equal(t, before, f.mail.lastVerifyToken("dave@example.com"))
	})
}
