package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/idx"
)

// LinkingService owns the user/identity relationship and its two invariants:
// a user always holds at least one identity, and exactly one identity per
// user is primary (and verified).
type LinkingService struct {
	Store store.Store
}

// ResolveOrCreateUser maps a provider-asserted (provider, subject) pair to a
// user, applying the account linking policy in order:
//
//  1. the pair is already bound: return the existing user
//  2. a user exists with the same verified email: attach the identity to it
//  3. otherwise: provision a new user with this identity as its primary
//
// The resolution is idempotent: replaying the same assertion converges on the
// same user with no duplicate identities.
func (s *LinkingService) ResolveOrCreateUser(ctx context.Context, providerName, subject string, profile domain.Profile) (domain.User, bool, error) {
	// Fast path outside the tx: the pair is usually already bound.
	if identity, err := s.Store.Identities().GetIdentityByProviderSubject(ctx, providerName, subject); err == nil {
		user, err := s.Store.Users().GetUserByID(ctx, identity.UserID)
		if err != nil {
			return domain.User{}, false, fmt.Errorf("load user for identity: %w", err)
		}
		return user, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, false, err
	}

	var (
		user    domain.User
		created bool
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Re-check inside the tx; a concurrent callback may have bound it.
		if identity, err := tx.Identities().GetIdentityByProviderSubject(ctx, providerName, subject); err == nil {
			user, err = tx.Users().GetUserByID(ctx, identity.UserID)
			return err
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		email := normalizeEmail(profile.Email)

		// Email match links only when the provider vouches for the address.
		if email != "" && profile.EmailVerified {
			existing, err := tx.Users().GetUserByEmail(ctx, email)
			switch {
			case err == nil:
				user = existing
				// The provider vouched for exactly this address, which also
				// settles a still-pending local verification; without this the
				// merged account keeps failing password login.
				if !existing.EmailVerified {
					if err := tx.Users().SetEmailVerified(ctx, existing.ID, true); err != nil {
						return err
					}
					user.EmailVerified = true
				}
				return tx.Identities().CreateIdentity(ctx, domain.Identity{
					ID:          idx.New().String(),
					UserID:      existing.ID,
					Provider:    providerName,
					Subject:     subject,
					Email:       email,
					DisplayName: profile.DisplayName,
					AvatarURL:   profile.AvatarURL,
					Verified:    true,
					CreatedAt:   now,
					UpdatedAt:   now,
				})
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		if email == "" {
			return autherr.Validation("email", "provider asserted no email address")
		}

		user = domain.User{
			ID:            idx.New().String(),
			Email:         email,
			EmailVerified: profile.EmailVerified,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		created = true

		return tx.Identities().CreateIdentity(ctx, domain.Identity{
			ID:          idx.New().String(),
			UserID:      user.ID,
			Provider:    providerName,
			Subject:     subject,
			Email:       email,
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
			Verified:    profile.EmailVerified,
			Primary:     true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return user, created, nil
}

// LinkIdentity binds an additional provider identity to an existing user.
// Re-linking a pair the user already holds is a no-op; a pair bound to a
// different user is a conflict.
func (s *LinkingService) LinkIdentity(ctx context.Context, userID, providerName, subject string, profile domain.Profile) (domain.Identity, error) {
	var out domain.Identity
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Identities().GetIdentityByProviderSubject(ctx, providerName, subject)
		switch {
		case err == nil && existing.UserID == userID:
			out = existing // idempotent re-link
			return nil
		case err == nil:
			return autherr.Conflict("identity is already linked to another account")
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		now := time.Now().UTC()
		out = domain.Identity{
			ID:          idx.New().String(),
			UserID:      userID,
			Provider:    providerName,
			Subject:     subject,
			Email:       normalizeEmail(profile.Email),
			DisplayName: profile.DisplayName,
			AvatarURL:   profile.AvatarURL,
			Verified:    profile.EmailVerified,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.Identities().CreateIdentity(ctx, out)
	})
	if err != nil {
		return domain.Identity{}, err
	}
	return out, nil
}

// UnlinkIdentity removes one of the user's identities. Removing the last
// identity would strand the account, so it is refused; removing the primary
// promotes another verified identity in its place.
func (s *LinkingService) UnlinkIdentity(ctx context.Context, userID, identityID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		identity, err := tx.Identities().GetIdentityByID(ctx, identityID)
		if errors.Is(err, store.ErrNotFound) {
			return autherr.NotFound("identity not found")
		}
		if err != nil {
			return err
		}
		if identity.UserID != userID {
			return autherr.NotFound("identity not found")
		}

		all, err := tx.Identities().ListIdentitiesByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(all) <= 1 {
			return autherr.Invariant("cannot remove the only sign-in method")
		}

		if identity.Primary {
			replacement := pickReplacementPrimary(all, identityID)
			if replacement == "" {
				return autherr.Invariant("no verified identity available to become primary")
			}
			if err := tx.Identities().SetPrimaryIdentity(ctx, userID, replacement); err != nil {
				return err
			}
		}

		return tx.Identities().DeleteIdentity(ctx, identityID)
	})
}

// ListIdentities returns the user's identities for self-service display.
func (s *LinkingService) ListIdentities(ctx context.Context, userID string) ([]domain.Identity, error) {
	return s.Store.Identities().ListIdentitiesByUser(ctx, userID)
}

func pickReplacementPrimary(all []domain.Identity, removingID string) string {
	for _, i := range all {
		if i.ID != removingID && i.Verified {
			return i.ID
		}
	}
	return ""
}
