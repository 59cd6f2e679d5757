package domain

import "time"

type User struct {
	ID            string
	Email         string     // unique, stored lowercase
	EmailVerified bool       // password logins are rejected until verified
	Active        bool       // soft-deactivation flag; users are never hard-deleted
	MFAEnabled    *time.Time // timestamp when MFA was enabled (nullable)
	Locale        string
	Timezone      string
	LastLoginAt   *time.Time
	LastLoginIP   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsMFAEnabled reports whether the user has completed MFA enrollment.
func (u User) IsMFAEnabled() bool {
	return u.MFAEnabled != nil && !u.MFAEnabled.IsZero()
}

// SanitizedUser is the externally visible projection of a User. It never
// carries secrets, hashes or provider tokens.
type SanitizedUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	MFAEnabled    bool       `json:"mfa_enabled"`
	Locale        string     `json:"locale,omitempty"`
	Timezone      string     `json:"timezone,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Sanitize strips everything that must not leave the service.
func (u User) Sanitize() SanitizedUser {
	return SanitizedUser{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		MFAEnabled:    u.IsMFAEnabled(),
		Locale:        u.Locale,
		Timezone:      u.Timezone,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}
