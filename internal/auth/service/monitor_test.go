package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/pkg/idx"
	"github.com/stretchr/testify/require"
)

func seedFailures(t *testing.T, f *fixture, email string, n int) {
	t.Helper()
	ctx := context.Background()
	for range n {
		require.NoError(t, f.store.LoginHistory().CreateLoginAttempt(ctx, domain.LoginAttempt{
			ID:        idx.New().String(),
			Email:     email,
			Success:   false,
			Reason:    domain.AttemptBadCredentials,
			CreatedAt: time.Now().UTC(),
		}))
	}
}

func seedFailuresFrom(t *testing.T, f *fixture, email string, ips ...string) {
	t.Helper()
	ctx := context.Background()
	for _, ip := range ips {
		require.NoError(t, f.store.LoginHistory().CreateLoginAttempt(ctx, domain.LoginAttempt{
			ID:        idx.New().String(),
			Email:     email,
			Success:   false,
			Reason:    domain.AttemptBadCredentials,
			IP:        ip,
			CreatedAt: time.Now().UTC(),
		}))
	}
}

func TestSecurityMonitorAlertsOnSustainedFailures(t *testing.T) {
	f := newFixture(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mon := NewSecurityMonitor(f.store, f.mail, log, 5*time.Minute)

	seedFailures(t, f, "target@example.com", 12)
	seedFailures(t, f, "quiet@example.com", 2)

	mon.Scan(context.Background())

	require.NotEmpty(t, f.mail.alerts["target@example.com"])
	require.Empty(t, f.mail.alerts["quiet@example.com"])

	t.Run("alerts are not repeated within the cooldown", func(t *testing.T) {
		before := len(f.mail.alerts["target@example.com"])
		mon.Scan(context.Background())
		require.Len(t, f.mail.alerts["target@example.com"], before)
	})
}

func TestSecurityMonitorAlertsOnFailuresFromManyAddresses(t *testing.T) {
	f := newFixture(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mon := NewSecurityMonitor(f.store, f.mail, log, 5*time.Minute)

	// Five failures stay under the volume threshold, but each comes from a
	// different source address.
	seedFailuresFrom(t, f, "roaming@example.com",
		"198.51.100.1", "198.51.100.2", "198.51.100.3", "198.51.100.4", "198.51.100.5")
	// The same count from a single address stays quiet.
	seedFailuresFrom(t, f, "steady@example.com",
		"203.0.113.7", "203.0.113.7", "203.0.113.7", "203.0.113.7", "203.0.113.7")

	mon.Scan(context.Background())

	require.NotEmpty(t, f.mail.alerts["roaming@example.com"])
	require.Empty(t, f.mail.alerts["steady@example.com"])
}

func TestHousekeepingDeletesExpiredRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.registerVerified(t, "alice@example.com", "correct horse")
	now := time.Now().UTC()

	// An expired session and an expired challenge.
	require.NoError(t, f.store.Sessions().CreateSession(ctx, domain.Session{
		ID: idx.New().String(), UserID: user.ID, TokenHash: "th-old", RefreshTokenHash: "rh-old",
		AuthMethod: domain.AuthMethodPassword, ExpiresAt: now.Add(-time.Hour),
		LastActivityAt: now.Add(-2 * time.Hour), CreatedAt: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, f.store.MFAChallenges().CreateMFAChallenge(ctx, domain.MFAChallenge{
		ID: idx.New().String(), UserID: user.ID, AuthMethod: domain.AuthMethodPassword,
		MaxAttempts: 3, ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour),
	}))
	live := f.login(t, "alice@example.com", "correct horse")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hk := NewHousekeepingService(f.store, log, time.Hour)
	hk.Start()
	hk.Stop() // Start runs one cleanup immediately; Stop waits for it

	_, err := f.store.Sessions().GetSessionByTokenHash(ctx, "th-old")
	require.Error(t, err)

	// Live sessions survive.
	verdict, err := f.sessions.Validate(ctx, live.Token)
	require.NoError(t, err)
	require.True(t, verdict.Valid)
}
