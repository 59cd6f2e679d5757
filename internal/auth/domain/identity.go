package domain

import "time"

// The set of credential providers is fixed at compile time per deployment.
const (
	ProviderLocal     = "local" // email/password held by this service
	ProviderGoogle    = "google"
	ProviderMicrosoft = "microsoft"
)

// Identity is one credential binding for a user. The (Provider, Subject)
// pair is globally unique. A user must retain at least one identity at all
// times, and exactly one identity per user is primary; the primary identity
// must be verified.
type Identity struct {
	ID           string
	UserID       string
	Provider     string
	Subject      string // provider-assigned subject id; email for local identities
	Email        string
	DisplayName  string
	AvatarURL    string
	PasswordHash string // argon2 encoded; only set for local identities
	Verified     bool
	Primary      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the identity snapshot asserted by a provider at link time.
type Profile struct {
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
}

// SanitizedIdentity is the externally visible projection of an Identity.
type SanitizedIdentity struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Verified    bool      `json:"verified"`
	Primary     bool      `json:"primary"`
	CreatedAt   time.Time `json:"created_at"`
}

func (i Identity) Sanitize() SanitizedIdentity {
	return SanitizedIdentity{
		ID:          i.ID,
		Provider:    i.Provider,
		Email:       i.Email,
		DisplayName: i.DisplayName,
		Verified:    i.Verified,
		Primary:     i.Primary,
		CreatedAt:   i.CreatedAt,
	}
}
