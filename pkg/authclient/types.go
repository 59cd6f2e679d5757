package authclient

import "time"

// HealthChecks reports per-dependency status on the readiness probe.
type HealthChecks struct {
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
}

// HealthResponse is the body of the /livez and /readyz endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// User is the sanitized profile returned by the service.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	MFAEnabled    bool       `json:"mfa_enabled"`
	Locale        string     `json:"locale,omitempty"`
	Timezone      string     `json:"timezone,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SessionTokens is the pair of opaque tokens minted on login or refresh.
type SessionTokens struct {
	SessionID    string    `json:"session_id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// MFAChallenge is returned instead of tokens when a second factor is needed.
type MFAChallenge struct {
	MFARequired bool     `json:"mfa_required"`
	ChallengeID string   `json:"challenge_id"`
	Methods     []string `json:"methods"`
}

// LoginResponse carries either Session or MFA, never both.
type LoginResponse struct {
	User    User           `json:"user"`
	Session *SessionTokens `json:"session,omitempty"`
	MFA     *MFAChallenge  `json:"mfa,omitempty"`
}

// SessionValidation is the verdict for an opaque session token.
type SessionValidation struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}
