package provider

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
)

// Local verifies email/password credentials against the identities table.
type Local struct {
	store store.Store
}

func NewLocal(s store.Store) *Local {
	return &Local{store: s}
}

func (p *Local) Name() string { return domain.ProviderLocal }

func (p *Local) Authenticate(ctx context.Context, email, password string) (domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	identity, err := p.store.Identities().GetIdentityByProviderSubject(ctx, domain.ProviderLocal, email)
	if errors.Is(err, store.ErrNotFound) {
		// Burn comparable time so response latency does not leak whether the
		// account exists.
		_ = cryptox.VerifyPassword(password, decoyHash())
		return domain.Identity{}, autherr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return domain.Identity{}, err
	}

	if identity.PasswordHash == "" {
		// SSO-only account; same answer as a wrong password.
		return domain.Identity{}, autherr.Unauthorized("invalid credentials")
	}

	if err := cryptox.VerifyPassword(password, identity.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.Identity{}, autherr.Unauthorized("invalid credentials")
		}
		return domain.Identity{}, err
	}

	return identity, nil
}

// decoyHash is a throwaway argon2id hash used to equalize timing on unknown
// emails. It never matches a real password. Computed lazily so the pepper
// path is configured first.
var decoyHash = sync.OnceValue(cryptox.MustHashForTimingDecoy)
