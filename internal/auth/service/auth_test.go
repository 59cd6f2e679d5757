package service

import (
	"context"
	"testing"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("creates user with local identity", func(t *testing.T) {
		user, err := f.auth.Register(ctx, "Alice@Example.com", "correct horse", testMeta)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", user.Email)
		require.False(t, user.EmailVerified)

		identities, err := f.linking.ListIdentities(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, identities, 1)
		require.Equal(t, domain.ProviderLocal, identities[0].Provider)
		require.True(t, identities[0].Primary)
		require.NotEmpty(t, identities[0].PasswordHash)

		// Verification email went out.
		require.NotEmpty(t, f.mail.lastVerifyToken("alice@example.com"))
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := f.auth.Register(ctx, "alice@example.com", "another pass", testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeConflict))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := f.auth.Register(ctx, "not-an-email", "long enough pass", testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeValidation))

		_, err = f.auth.Register(ctx, "bob@example.com", "short", testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeValidation))
	})
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unverified email is rejected", func(t *testing.T) {
		_, err := f.auth.Register(ctx, "pending@example.com", "correct horse", testMeta)
		require.NoError(t, err)

		_, err = f.auth.Login(ctx, "pending@example.com", "correct horse", false, testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})

	f.registerVerified(t, "carol@example.com", "correct horse")

	t.Run("verified login issues a session", func(t *testing.T) {
		res, err := f.auth.Login(ctx, "carol@example.com", "correct horse", false, testMeta)
		require.NoError(t, err)
		require.NotNil(t, res.Tokens)
		require.Nil(t, res.Challenge)
		require.NotEmpty(t, res.Tokens.Token)
		require.NotEmpty(t, res.Tokens.RefreshToken)

		verdict, err := f.sessions.Validate(ctx, res.Tokens.Token)
		require.NoError(t, err)
		require.True(t, verdict.Valid)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		_, err := f.auth.Login(ctx, "carol@example.com", "wrong password", false, testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})

	t.Run("deactivated account is rejected", func(t *testing.T) {
		user := f.registerVerified(t, "inactive@example.com", "correct horse")
		require.NoError(t, f.store.Users().SetActive(ctx, user.ID, false))

		_, err := f.auth.Login(ctx, "inactive@example.com", "correct horse", false, testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	})
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "dave@example.com", "correct horse")

	for range 5 {
		_, err := f.auth.Login(ctx, "dave@example.com", "wrong password", false, testMeta)
		require.True(t, autherr.IsCode(err, autherr.CodeUnauthorized))
	}

	// The budget is spent: even the correct password is gated now.
	_, err := f.auth.Login(ctx, "dave@example.com", "correct horse", false, testMeta)
	require.True(t, autherr.IsCode(err, autherr.CodeTooManyRequests))

	// Other accounts are unaffected.
	f.registerVerified(t, "erin@example.com", "correct horse")
	_, err = f.auth.Login(ctx, "erin@example.com", "correct horse", false, testMeta)
	require.NoError(t, err)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "frank@example.com", "correct horse")
	tokens := f.login(t, "frank@example.com", "correct horse")

	require.NoError(t, f.auth.Logout(ctx, tokens.Token))

	verdict, err := f.sessions.Validate(ctx, tokens.Token)
	require.NoError(t, err)
	require.False(t, verdict.Valid)
	require.Equal(t, domain.ReasonRevoked, verdict.Reason)

	// Logging out an already-dead or unknown token is a no-op.
	require.NoError(t, f.auth.Logout(ctx, tokens.Token))
	require.NoError(t, f.auth.Logout(ctx, "unknown-token"))
}
