package domain

import "time"

// MFA verification methods.
const (
	MFAMethodTOTP       = "totp"
	MFAMethodBackupCode = "backup_code"
)

// MFADevice is a verified MFA factor. The TOTP secret is stored only in
// AES-256-GCM encrypted form; backup codes live in a separate table as
// SHA-256 fingerprints and are consumed exactly once.
type MFADevice struct {
	ID        string
	UserID    string
	Type      string // currently always "totp"
	SecretEnc []byte // encrypted TOTP secret
	Primary   bool   // at most one primary device per type is used for challenges
	CreatedAt time.Time
}

// MFAChallenge is an ephemeral verification attempt issued at login when MFA
// is enabled. It is PENDING until verified, expired, or its attempt budget is
// exhausted; all three outcomes are terminal.
type MFAChallenge struct {
	ID          string
	UserID      string
	AuthMethod  string // the first-factor method that triggered the challenge
	RememberMe  bool   // carried through to the session issued on success
	Attempts    int
	MaxAttempts int
	ExpiresAt   time.Time
	VerifiedAt  *time.Time
	IP          string
	UserAgent   string
	CreatedAt   time.Time
}

// Pending reports whether the challenge can still accept verification calls.
func (c MFAChallenge) Pending(now time.Time) bool {
	return c.VerifiedAt == nil && c.Attempts < c.MaxAttempts && now.Before(c.ExpiresAt)
}

// MFAChallengeResponse is returned from login when a second factor is required.
type MFAChallengeResponse struct {
	MFARequired bool     `json:"mfa_required"` // always true
	ChallengeID string   `json:"challenge_id"`
	Methods     []string `json:"methods"` // e.g. ["totp", "backup_code"]
}

// MFAEnrollment is returned when TOTP enrollment begins. The secret is shown
// to the user exactly once and held only in a TTL-bound pending-setup record
// until enrollment completes.
type MFAEnrollment struct {
	Secret     string `json:"secret"`      // base32 TOTP secret
	OTPAuthURL string `json:"otpauth_url"` // otpauth:// URL for QR code generation
	Issuer     string `json:"issuer"`
	Account    string `json:"account"`
}
