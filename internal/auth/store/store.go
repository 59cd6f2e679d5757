package store

import (
	"context"
	"errors"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and actively stops callers from accidentally opening
// transactions within transactions.
type Store interface {
	Users() Users
	Identities() Identities
	Sessions() Sessions
	LoginHistory() LoginHistory
	PasswordResets() PasswordResets
	EmailVerifications() EmailVerifications
	MFADevices() MFADevices
	BackupCodes() BackupCodes
	MFAChallenges() MFAChallenges

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back if fn returns an
	// error and committing otherwise. This is the recommended way to handle
	// multi-step operations that must be atomic (identity linking, refresh
	// rotation, backup code issuance).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up by its (lowercased) unique email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// SetEmailVerified flips the verification flag and bumps updated_at.
	SetEmailVerified(ctx context.Context, userID string, verified bool) error

	// SetActive flips the soft-deactivation flag.
	SetActive(ctx context.Context, userID string, active bool) error

	// UpdateLastLogin records last-login metadata on successful authentication.
	UpdateLastLogin(ctx context.Context, userID string, at time.Time, ip string) error

	// EnableMFA marks MFA as enabled for a user (sets mfa_enabled timestamp).
	EnableMFA(ctx context.Context, userID string, at time.Time) error

	// DisableMFA clears the mfa_enabled timestamp.
	DisableMFA(ctx context.Context, userID string) error
}

type Identities interface {
	// GetIdentityByID returns an identity by id.
	GetIdentityByID(ctx context.Context, id string) (domain.Identity, error)

	// GetIdentityByProviderSubject resolves the unique (provider, subject) pair.
	GetIdentityByProviderSubject(ctx context.Context, provider, subject string) (domain.Identity, error)

	// ListIdentitiesByUser returns all identities owned by a user.
	ListIdentitiesByUser(ctx context.Context, userID string) ([]domain.Identity, error)

	// CountIdentitiesByUser returns the number of identities a user holds.
	CountIdentitiesByUser(ctx context.Context, userID string) (int, error)

	// CreateIdentity inserts a new identity. Returns ErrAlreadyExists when the
	// (provider, subject) pair is already bound.
	CreateIdentity(ctx context.Context, i domain.Identity) error

	// DeleteIdentity removes an identity row.
	DeleteIdentity(ctx context.Context, id string) error

	// SetPrimaryIdentity atomically clears the primary flag on all of the
	// user's identities and sets it on the given one.
	SetPrimaryIdentity(ctx context.Context, userID, identityID string) error

	// SetIdentityVerified flips the verified flag.
	SetIdentityVerified(ctx context.Context, id string, verified bool) error

	// UpdatePasswordHash sets the argon2 hash on a local identity.
	UpdatePasswordHash(ctx context.Context, id string, hash string) error
}

type Sessions interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByID returns a session by id.
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// GetSessionByTokenHash returns the session by its token fingerprint.
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// GetSessionByRefreshTokenHash returns the session by its refresh token fingerprint.
	GetSessionByRefreshTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// ListActiveSessionsByUser returns the user's non-revoked, non-expired sessions.
	ListActiveSessionsByUser(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)

	// RevokeSession sets revoked_at if the session is not already revoked.
	RevokeSession(ctx context.Context, sessionID string, at time.Time) error

	// RevokeAllUserSessions revokes every active session for a user, except
	// exceptID when non-empty (e.g. "log out everywhere else").
	RevokeAllUserSessions(ctx context.Context, userID, exceptID string, at time.Time) error

	// TouchSession bumps last_activity_at.
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// DeleteExpiredSessions is housekeeping for sessions past expiry.
	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

type LoginHistory interface {
	// CreateLoginAttempt appends an attempt record. Records are never
	// updated or deleted through this interface.
	CreateLoginAttempt(ctx context.Context, a domain.LoginAttempt) error

	// CountFailuresSince counts credential failures for an email in the
	// rolling window. Pending-MFA and already-rate-limited records are not
	// failures and are excluded. This is the rate limiter's source of truth
	// so lockouts survive process restarts.
	CountFailuresSince(ctx context.Context, email string, since time.Time) (int, error)

	// ListAttemptsSince returns attempts newer than since, newest first,
	// bounded by limit. Used by the security monitor.
	ListAttemptsSince(ctx context.Context, since time.Time, limit int) ([]domain.LoginAttempt, error)
}

type PasswordResets interface {
	// CreatePasswordReset stores a new reset token record (hashed).
	CreatePasswordReset(ctx context.Context, r domain.PasswordReset) error

	// GetPasswordResetByTokenHash fetches a reset record by fingerprint.
	GetPasswordResetByTokenHash(ctx context.Context, hash string) (domain.PasswordReset, error)

	// ConsumePasswordReset marks the token used if and only if it is still
	// unused ("mark used where not already used"). Returns false when the
	// token was already consumed by a concurrent call.
	ConsumePasswordReset(ctx context.Context, id string, at time.Time) (bool, error)
}

type EmailVerifications interface {
	// CreateEmailVerification stores a new verification token record (hashed).
	CreateEmailVerification(ctx context.Context, v domain.EmailVerification) error

	// GetEmailVerificationByTokenHash fetches a record by fingerprint.
	GetEmailVerificationByTokenHash(ctx context.Context, hash string) (domain.EmailVerification, error)

	// ConsumeEmailVerification marks the token used, single-use semantics as
	// ConsumePasswordReset.
	ConsumeEmailVerification(ctx context.Context, id string, at time.Time) (bool, error)

	// DeleteExpiredEmailVerifications is optional housekeeping.
	DeleteExpiredEmailVerifications(ctx context.Context, now time.Time) error
}

type MFADevices interface {
	// CreateMFADevice persists a verified MFA factor.
	CreateMFADevice(ctx context.Context, d domain.MFADevice) error

	// GetPrimaryMFADevice returns the user's primary device of the given type.
	GetPrimaryMFADevice(ctx context.Context, userID, deviceType string) (domain.MFADevice, error)

	// ListMFADevicesByUser returns all devices a user holds.
	ListMFADevicesByUser(ctx context.Context, userID string) ([]domain.MFADevice, error)

	// DeleteAllMFADevices removes every device for a user (MFA disable).
	DeleteAllMFADevices(ctx context.Context, userID string) error
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code fingerprint for a user.
	CreateBackupCode(ctx context.Context, userID, codeHash string) error

	// ConsumeBackupCode removes the code if present, returning whether it
	// existed. Deletion-on-match makes each code usable exactly once even
	// under concurrent verification calls.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)

	// DeleteAllBackupCodes removes all backup codes for a user.
	DeleteAllBackupCodes(ctx context.Context, userID string) error

	// CountBackupCodes returns the number of unused codes remaining.
	CountBackupCodes(ctx context.Context, userID string) (int, error)
}

type MFAChallenges interface {
	// CreateMFAChallenge stores a new PENDING challenge.
	CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error

	// GetMFAChallenge returns a challenge by id.
	GetMFAChallenge(ctx context.Context, id string) (domain.MFAChallenge, error)

	// IncrementChallengeAttempts bumps the attempt counter if the challenge
	// is still unverified and within its attempt budget, returning the
	// updated record. Returns ErrNotFound when the guard fails, which the
	// caller must treat as a terminal challenge.
	IncrementChallengeAttempts(ctx context.Context, id string) (domain.MFAChallenge, error)

	// MarkChallengeVerified sets verified_at if the challenge is still
	// pending. Returns false when it was already terminal.
	MarkChallengeVerified(ctx context.Context, id string, at time.Time) (bool, error)

	// DeleteExpiredMFAChallenges removes expired challenges (housekeeping).
	DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) error
}
