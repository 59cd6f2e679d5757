// Package cache is the hot-path session lookup layer in front of the
// relational store. It is a pure accelerator: a miss is always answered by
// the store, and revocation removes entries so the cache can never resurrect
// a dead session.
package cache

import (
	"context"
	"time"
)

// SessionEntry is the cached projection of an active session, keyed by the
// session token fingerprint.
type SessionEntry struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PendingMFASetup holds a TOTP secret between enrollment start and the first
// successful code verification. It never touches the relational store; if the
// user walks away the record simply expires.
type PendingMFASetup struct {
	Secret    string    `json:"secret"` // base32, plaintext only while setup is pending
	Issuer    string    `json:"issuer"`
	Account   string    `json:"account"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionCache interface {
	// PutSession caches a validated session under its token fingerprint.
	// ttl should be the session's remaining lifetime.
	PutSession(ctx context.Context, tokenHash string, e SessionEntry, ttl time.Duration) error

	// GetSession returns the cached entry and whether it was present.
	GetSession(ctx context.Context, tokenHash string) (SessionEntry, bool, error)

	// DeleteSession evicts a single session entry (logout, refresh rotation).
	DeleteSession(ctx context.Context, tokenHash string) error

	// DeleteUserSessions evicts every cached session for a user (bulk
	// revocation after password change or deactivation).
	DeleteUserSessions(ctx context.Context, userID string) error

	// PutPendingMFASetup stores an in-flight TOTP enrollment with a TTL.
	PutPendingMFASetup(ctx context.Context, userID string, p PendingMFASetup, ttl time.Duration) error

	// GetPendingMFASetup returns the in-flight enrollment, if any.
	GetPendingMFASetup(ctx context.Context, userID string) (PendingMFASetup, bool, error)

	// DeletePendingMFASetup clears the enrollment record.
	DeletePendingMFASetup(ctx context.Context, userID string) error

	Ping(ctx context.Context) error
	Close() error
}
