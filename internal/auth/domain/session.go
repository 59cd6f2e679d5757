package domain

import "time"

// Authentication methods recorded on sessions and login history.
const (
	AuthMethodPassword = "password"
	AuthMethodGoogle   = "google"
	AuthMethodMFA      = "mfa"
	AuthMethodRefresh  = "refresh"
)

// Session is a bearer-token-backed authorization window. Only the token
// fingerprints are stored; the opaque tokens themselves are returned to the
// caller once and never persisted.
//
// A session is ACTIVE until it expires (time-based) or is revoked
// (logout, password change, admin action). Both end states are terminal.
type Session struct {
	ID               string
	UserID           string
	TokenHash        string // SHA-256 fingerprint of the opaque session token (unique)
	RefreshTokenHash string // SHA-256 fingerprint of the opaque refresh token (unique)
	AuthMethod       string
	RememberMe       bool
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	LastActivityAt   time.Time
	IP               string
	UserAgent        string
	CreatedAt        time.Time
}

// ActiveAt reports whether the session is usable at the given instant.
func (s Session) ActiveAt(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// SessionTokens is what a successful authentication returns to the caller.
// Both tokens are opaque random strings, not parseable structures.
type SessionTokens struct {
	SessionID    string    `json:"session_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// InvalidReason explains why a session token failed validation.
type InvalidReason string

const (
	ReasonNotFound        InvalidReason = "not_found"
	ReasonExpired         InvalidReason = "expired"
	ReasonRevoked         InvalidReason = "revoked"
	ReasonUserDeactivated InvalidReason = "user_deactivated"
)

// SessionValidation is the result of validating an opaque session token.
// This is the primitive every other subsystem calls before trusting a request.
type SessionValidation struct {
	Valid     bool          `json:"valid"`
	Reason    InvalidReason `json:"reason,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// SanitizedSession is the self-service session listing projection.
type SanitizedSession struct {
	ID             string    `json:"id"`
	AuthMethod     string    `json:"auth_method"`
	IP             string    `json:"ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	Current        bool      `json:"current"`
}

func (s Session) Sanitize(currentSessionID string) SanitizedSession {
	return SanitizedSession{
		ID:             s.ID,
		AuthMethod:     s.AuthMethod,
		IP:             s.IP,
		UserAgent:      s.UserAgent,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
		Current:        s.ID == currentSessionID,
	}
}
