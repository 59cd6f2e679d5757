package domain

import "time"

// PasswordReset is a single-use reset token record. Only the token
// fingerprint is stored. Once UsedAt is set the record is permanently
// terminal; expired unused tokens are inert but retained for audit.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be consumed at the given instant.
func (p PasswordReset) Usable(now time.Time) bool {
	return p.UsedAt == nil && now.Before(p.ExpiresAt)
}

// EmailVerification is a single-use email confirmation token, same shape and
// consumption semantics as PasswordReset but with a longer expiry.
type EmailVerification struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (v EmailVerification) Usable(now time.Time) bool {
	return v.UsedAt == nil && now.Before(v.ExpiresAt)
}
