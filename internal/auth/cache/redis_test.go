package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSessionRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	entry := SessionEntry{
		SessionID: "sess-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
	}
	require.NoError(t, c.PutSession(ctx, "fp1", entry, time.Hour))

	got, ok, err := c.GetSession(ctx, "fp1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.SessionID, got.SessionID)
	require.Equal(t, entry.UserID, got.UserID)

	_, ok, err = c.GetSession(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	// TTL expiry evicts the entry.
	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetSession(ctx, "fp1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestZeroTTLIsNotCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutSession(ctx, "fp1", SessionEntry{SessionID: "s"}, 0))
	_, ok, err := c.GetSession(ctx, "fp1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteSession(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutSession(ctx, "fp1", SessionEntry{SessionID: "s", UserID: "u"}, time.Hour))
	require.NoError(t, c.DeleteSession(ctx, "fp1"))

	_, ok, err := c.GetSession(ctx, "fp1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeleteUserSessionsEvictsAll(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutSession(ctx, "fp1", SessionEntry{SessionID: "s1", UserID: "u1"}, time.Hour))
	require.NoError(t, c.PutSession(ctx, "fp2", SessionEntry{SessionID: "s2", UserID: "u1"}, time.Hour))
	require.NoError(t, c.PutSession(ctx, "fp3", SessionEntry{SessionID: "s3", UserID: "u2"}, time.Hour))

	require.NoError(t, c.DeleteUserSessions(ctx, "u1"))

	for _, fp := range []string{"fp1", "fp2"} {
		_, ok, err := c.GetSession(ctx, fp)
		require.NoError(t, err)
		require.False(t, ok, fp)
	}

	// Other users are untouched.
	_, ok, err := c.GetSession(ctx, "fp3")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUserIndexOutlivesShortSessions(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	long := SessionEntry{SessionID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(720 * time.Hour).UTC()}
	short := SessionEntry{SessionID: "s2", UserID: "u1", ExpiresAt: time.Now().Add(24 * time.Hour).UTC()}
	require.NoError(t, c.PutSession(ctx, "fp-long", long, 720*time.Hour))
	require.NoError(t, c.PutSession(ctx, "fp-short", short, 24*time.Hour))

	// Past the short entry's lifetime the index must still exist, or bulk
	// eviction could never reach the long-lived entry.
	mr.FastForward(25 * time.Hour)

	require.NoError(t, c.DeleteUserSessions(ctx, "u1"))

	_, ok, err := c.GetSession(ctx, "fp-long")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPendingMFASetup(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	p := PendingMFASetup{Secret: "JBSWY3DP", Issuer: "clubdeck", Account: "a@b.c", CreatedAt: time.Now().UTC()}
	require.NoError(t, c.PutPendingMFASetup(ctx, "u1", p, 10*time.Minute))

	got, ok, err := c.GetPendingMFASetup(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p.Secret, got.Secret)

	mr.FastForward(11 * time.Minute)
	_, ok, err = c.GetPendingMFASetup(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.PutPendingMFASetup(ctx, "u1", p, 10*time.Minute))
	require.NoError(t, c.DeletePendingMFASetup(ctx, "u1"))
	_, ok, err = c.GetPendingMFASetup(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)
}
