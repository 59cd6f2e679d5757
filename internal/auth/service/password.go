package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/mailer"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/clubdeck/clubdeck/pkg/idx"
)

const (
	defaultResetTTL  = 1 * time.Hour
	defaultVerifyTTL = 24 * time.Hour

	minPasswordLength = 8
	maxPasswordLength = 128
)

// PasswordService owns the credential lifecycle for local identities: reset
// flows, password changes and email verification. Every successful credential
// change revokes the user's other sessions.
type PasswordService struct {
	Store    store.Store
	Mailer   mailer.Mailer
	Sessions *SessionService
	Logger   *slog.Logger

	ResetTTL  time.Duration // reset token lifetime, default 1 hour
	VerifyTTL time.Duration // verification token lifetime, default 24 hours
}

func (s *PasswordService) resetTTL() time.Duration {
	if s.ResetTTL <= 0 {
		return defaultResetTTL
	}
	return s.ResetTTL
}

func (s *PasswordService) verifyTTL() time.Duration {
	if s.VerifyTTL <= 0 {
		return defaultVerifyTTL
	}
	return s.VerifyTTL
}

// RequestReset starts a password reset. It answers identically whether or not
// the email maps to an account, and whether or not that account has a
// password at all, so the endpoint cannot be used to probe for accounts.
// SSO-only accounts get no token; they have no password to reset.
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return autherr.Validation("email", "required")
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil // silent
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	localIdentity, err := s.Store.Identities().GetIdentityByProviderSubject(ctx, domain.ProviderLocal, email)
	if errors.Is(err, store.ErrNotFound) || (err == nil && localIdentity.PasswordHash == "") {
		s.Logger.InfoContext(ctx, "password reset requested for account without password",
			slog.String("user_id", user.ID))
		return nil // silent
	}
	if err != nil {
		return fmt.Errorf("load local identity: %w", err)
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	now := time.Now().UTC()
	err = s.Store.PasswordResets().CreatePasswordReset(ctx, domain.PasswordReset{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(s.resetTTL()),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.Mailer.SendPasswordReset(ctx, email, token)
	return nil
}

// CompleteReset spends a reset token and sets the new password. The token is
// consumed with a guarded update so a replay, even concurrent, finds it
// already spent. All of the user's sessions are revoked.
func (s *PasswordService) CompleteReset(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	reset, err := s.Store.PasswordResets().GetPasswordResetByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return autherr.Unauthorized("invalid or expired reset token")
	}
	if err != nil {
		return fmt.Errorf("load reset token: %w", err)
	}

	now := time.Now().UTC()
	if !reset.Usable(now) {
		return autherr.Unauthorized("invalid or expired reset token")
	}

	user, err := s.Store.Users().GetUserByID(ctx, reset.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	localIdentity, err := s.Store.Identities().GetIdentityByProviderSubject(ctx, domain.ProviderLocal, user.Email)
	if errors.Is(err, store.ErrNotFound) {
		return autherr.Invariant("reset token exists for an account without a password")
	}
	if err != nil {
		return fmt.Errorf("load local identity: %w", err)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		spent, err := tx.PasswordResets().ConsumePasswordReset(ctx, reset.ID, now)
		if err != nil {
			return err
		}
		if !spent {
			return autherr.Unauthorized("invalid or expired reset token")
		}
		if err := tx.Identities().UpdatePasswordHash(ctx, localIdentity.ID, hash); err != nil {
			return err
		}
		return tx.Sessions().RevokeAllUserSessions(ctx, user.ID, "", now)
	})
	if err != nil {
		return err
	}

	if err := s.Sessions.Cache.DeleteUserSessions(ctx, user.ID); err != nil {
		s.Logger.WarnContext(ctx, "session cache bulk eviction failed",
			slog.String("user_id", user.ID), slog.Any("err", err))
	}
	s.Mailer.SendSecurityAlert(ctx, user.Email, "your password was reset")
	return nil
}

// ChangePassword verifies the current password and sets a new one. Other
// sessions are revoked; the session making the change stays alive.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, currentSessionID, currentPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	localIdentity, err := s.Store.Identities().GetIdentityByProviderSubject(ctx, domain.ProviderLocal, user.Email)
	if errors.Is(err, store.ErrNotFound) || (err == nil && localIdentity.PasswordHash == "") {
		return autherr.Conflict("account has no password to change")
	}
	if err != nil {
		return fmt.Errorf("load local identity: %w", err)
	}

	if err := cryptox.VerifyPassword(currentPassword, localIdentity.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return autherr.Unauthorized("current password is incorrect")
		}
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Identities().UpdatePasswordHash(ctx, localIdentity.ID, hash); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if err := s.Sessions.InvalidateAll(ctx, userID, currentSessionID); err != nil {
		s.Logger.WarnContext(ctx, "failed to revoke other sessions after password change",
			slog.String("user_id", userID), slog.Any("err", err))
	}
	s.Mailer.SendSecurityAlert(ctx, user.Email, "your password was changed")
	return nil
}

// SendVerificationEmail issues a fresh email verification token.
func (s *PasswordService) SendVerificationEmail(ctx context.Context, userID string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}

	now := time.Now().UTC()
	err = s.Store.EmailVerifications().CreateEmailVerification(ctx, domain.EmailVerification{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(s.verifyTTL()),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	s.Mailer.SendEmailVerification(ctx, user.Email, token)
	return nil
}

// VerifyEmail spends a verification token and marks the user's email (and
// local identity) verified. Single-use, same consumption guard as resets.
func (s *PasswordService) VerifyEmail(ctx context.Context, token string) error {
	verification, err := s.Store.EmailVerifications().GetEmailVerificationByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return autherr.Unauthorized("invalid or expired verification token")
	}
	if err != nil {
		return fmt.Errorf("load verification token: %w", err)
	}

	now := time.Now().UTC()
	if !verification.Usable(now) {
		return autherr.Unauthorized("invalid or expired verification token")
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		spent, err := tx.EmailVerifications().ConsumeEmailVerification(ctx, verification.ID, now)
		if err != nil {
			return err
		}
		if !spent {
			return autherr.Unauthorized("invalid or expired verification token")
		}

		if err := tx.Users().SetEmailVerified(ctx, verification.UserID, true); err != nil {
			return err
		}

		user, err := tx.Users().GetUserByID(ctx, verification.UserID)
		if err != nil {
			return err
		}
		localIdentity, err := tx.Identities().GetIdentityByProviderSubject(ctx, domain.ProviderLocal, user.Email)
		if errors.Is(err, store.ErrNotFound) {
			return nil // SSO-provisioned account, nothing more to flip
		}
		if err != nil {
			return err
		}
		return tx.Identities().SetIdentityVerified(ctx, localIdentity.ID, true)
	})
}

// ValidatePassword enforces the password policy: length-bounded, otherwise
// unconstrained.
func ValidatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return autherr.Validation("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	case len(password) > maxPasswordLength:
		return autherr.Validation("password", fmt.Sprintf("must be at most %d characters", maxPasswordLength))
	}
	return nil
}
