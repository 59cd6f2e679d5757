package provider

import (
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/golang-jwt/jwt/v5"
)

// StateClaims binds an SSO round trip to the provider and redirect target it
// started with, so the callback cannot be replayed against another flow.
type StateClaims struct {
	Provider    string `json:"prv"`
	RedirectURI string `json:"uri"`
	LinkUserID  string `json:"lnk,omitempty"` // set when linking to an existing signed-in user
	jwt.RegisteredClaims
}

// StateSigner mints and verifies short-lived HS256 state tokens for the SSO
// redirect round trip. State is the only signed token in the system; sessions
// stay opaque.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewStateSigner(secret []byte, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{secret: secret, ttl: ttl}
}

func (s *StateSigner) Issue(provider, redirectURI, linkUserID string) (string, error) {
	now := time.Now()
	claims := StateClaims{
		Provider:    provider,
		RedirectURI: redirectURI,
		LinkUserID:  linkUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses the state token and checks it belongs to the named provider.
func (s *StateSigner) Verify(token, provider string) (StateClaims, error) {
	var claims StateClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return StateClaims{}, autherr.Unauthorized("invalid or expired state")
	}
	if claims.Provider != provider {
		return StateClaims{}, autherr.Unauthorized("state issued for a different provider")
	}
	return claims, nil
}
