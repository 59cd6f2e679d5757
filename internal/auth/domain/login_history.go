package domain

import "time"

// LoginAttempt is an immutable, append-only record of a login or
// registration attempt. It is the source of truth for the rate limiter and
// the security monitor, so it must be written before any auth error is
// returned to the caller. Records are never updated or deleted here;
// retention is an external concern.
type LoginAttempt struct {
	ID        string
	Email     string
	UserID    string // empty when the email resolved to no user
	Success   bool
	Reason    string // machine-readable outcome, e.g. "ok", "bad_credentials"
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// Login attempt outcome reasons.
const (
	AttemptOK                = "ok"
	AttemptBadCredentials    = "bad_credentials"
	AttemptEmailNotVerified  = "email_not_verified"
	AttemptUserDeactivated   = "user_deactivated"
	AttemptRateLimited       = "rate_limited"
	AttemptMFARequired       = "mfa_required"
	AttemptMFAFailed         = "mfa_failed"
	AttemptDuplicateEmail    = "duplicate_email"
	AttemptProviderError     = "provider_error"
)
