package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/mailer"
	"github.com/clubdeck/clubdeck/internal/auth/provider"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/clubdeck/clubdeck/pkg/idx"
)

// AuthService is the orchestrator: it sequences providers, linking, MFA,
// sessions and history for the top-level flows. It holds no flow state of its
// own; everything lives in the store, the cache, or the signed SSO state.
type AuthService struct {
	Store     store.Store
	Providers *provider.Registry
	State     *provider.StateSigner
	Linking   *LinkingService
	Sessions  *SessionService
	MFA       *MFAService
	Passwords *PasswordService
	Security  *SecurityService
	Mailer    mailer.Mailer
	Logger    *slog.Logger
}

// LoginResult is either a session (Tokens set) or a second-factor gate
// (Challenge set), never both.
type LoginResult struct {
	Tokens    *domain.SessionTokens
	Challenge *domain.MFAChallengeResponse
	User      domain.SanitizedUser
}

// Register provisions a user with a local password identity. No session is
// issued: password logins require a verified email first, and the
// verification mail goes out as part of registration.
func (s *AuthService) Register(ctx context.Context, email, password string, meta ClientMeta) (domain.SanitizedUser, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return domain.SanitizedUser{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return domain.SanitizedUser{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.SanitizedUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := domain.User{
		ID:        idx.New().String(),
		Email:     email,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.Identities().CreateIdentity(ctx, domain.Identity{
			ID:           idx.New().String(),
			UserID:       user.ID,
			Provider:     domain.ProviderLocal,
			Subject:      email,
			Email:        email,
			PasswordHash: hash,
			Primary:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		s.Security.RecordAttempt(ctx, email, "", false, domain.AttemptDuplicateEmail, meta)
		return domain.SanitizedUser{}, autherr.Conflict("email is already registered")
	}
	if err != nil {
		return domain.SanitizedUser{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.Passwords.SendVerificationEmail(ctx, user.ID); err != nil {
		s.Logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID), slog.Any("err", err))
	}

	s.Logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user.Sanitize(), nil
}

// Login runs the password flow: rate limit gate, credential check, account
// state checks, then either a session or an MFA challenge. Every outcome is
// recorded in login history before it is returned.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool, meta ClientMeta) (LoginResult, error) {
	email = normalizeEmail(email)

	if err := s.Security.CheckLoginAllowed(ctx, email); err != nil {
		s.Security.RecordAttempt(ctx, email, "", false, domain.AttemptRateLimited, meta)
		return LoginResult{}, err
	}

	identity, err := s.localProvider().Authenticate(ctx, email, password)
	if err != nil {
		if autherr.IsCode(err, autherr.CodeUnauthorized) {
			s.Security.RecordAttempt(ctx, email, "", false, domain.AttemptBadCredentials, meta)
		}
		return LoginResult{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, identity.UserID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if !user.Active {
		s.Security.RecordAttempt(ctx, email, user.ID, false, domain.AttemptUserDeactivated, meta)
		return LoginResult{}, autherr.Unauthorized("account is deactivated")
	}
	if !user.EmailVerified {
		s.Security.RecordAttempt(ctx, email, user.ID, false, domain.AttemptEmailNotVerified, meta)
		return LoginResult{}, autherr.Unauthorized("email address is not verified")
	}

	if user.IsMFAEnabled() {
		challenge, err := s.MFA.IssueChallenge(ctx, user.ID, domain.AuthMethodPassword, rememberMe, meta)
		if err != nil {
			return LoginResult{}, err
		}
		s.Security.RecordAttempt(ctx, email, user.ID, false, domain.AttemptMFARequired, meta)
		return LoginResult{Challenge: &challenge, User: user.Sanitize()}, nil
	}

	return s.finishLogin(ctx, user, domain.AuthMethodPassword, rememberMe, meta)
}

// VerifyMFA completes a login that was gated on a second factor.
func (s *AuthService) VerifyMFA(ctx context.Context, challengeID, method, code string, meta ClientMeta) (LoginResult, error) {
	challenge, err := s.MFA.VerifyChallenge(ctx, challengeID, method, code)
	if err != nil {
		if autherr.IsCode(err, autherr.CodeUnauthorized) || autherr.IsCode(err, autherr.CodeTooManyRequests) {
			// Challenge lookups on bogus ids carry no email; resolve it when we can.
			if c, lookupErr := s.Store.MFAChallenges().GetMFAChallenge(ctx, challengeID); lookupErr == nil {
				if u, userErr := s.Store.Users().GetUserByID(ctx, c.UserID); userErr == nil {
					s.Security.RecordAttempt(ctx, u.Email, u.ID, false, domain.AttemptMFAFailed, meta)
				}
			}
		}
		return LoginResult{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		s.Security.RecordAttempt(ctx, user.Email, user.ID, false, domain.AttemptUserDeactivated, meta)
		return LoginResult{}, autherr.Unauthorized("account is deactivated")
	}

	return s.finishLogin(ctx, user, domain.AuthMethodMFA, challenge.RememberMe, meta)
}

// SSOBeginResult carries what the HTTP layer needs to redirect the browser.
type SSOBeginResult struct {
	AuthURL string
	State   string
}

// SSOBegin mints the signed state and builds the provider redirect URL.
// A non-empty linkUserID pins the eventual callback to linking rather than
// sign-in.
func (s *AuthService) SSOBegin(ctx context.Context, providerName, redirectURI, linkUserID string) (SSOBeginResult, error) {
	ex, err := s.Providers.Exchanger(providerName)
	if err != nil {
		return SSOBeginResult{}, err
	}

	state, err := s.State.Issue(providerName, redirectURI, linkUserID)
	if err != nil {
		return SSOBeginResult{}, fmt.Errorf("issue state: %w", err)
	}

	sso, ok := ex.(*provider.SSO)
	if !ok {
		return SSOBeginResult{}, autherr.Validation("provider", "provider does not support browser SSO")
	}
	return SSOBeginResult{
		AuthURL: sso.AuthCodeURL(state, redirectURI),
		State:   state,
	}, nil
}

// SSOCallback finishes the SSO round trip: state check, code exchange,
// identity resolution (or linking), then the same account gates as password
// login. SSO bypasses email verification because the provider vouches for
// the address, but it never bypasses MFA.
func (s *AuthService) SSOCallback(ctx context.Context, providerName, state, code string, rememberMe bool, meta ClientMeta) (LoginResult, error) {
	claims, err := s.State.Verify(state, providerName)
	if err != nil {
		return LoginResult{}, err
	}

	ex, err := s.Providers.Exchanger(providerName)
	if err != nil {
		return LoginResult{}, err
	}

	// An exchange failure is the provider's, not an account's; there is no
	// email to attribute, so nothing is written to the login history.
	subject, profile, err := ex.Exchange(ctx, code, claims.RedirectURI)
	if err != nil {
		return LoginResult{}, err
	}

	// Linking flow: attach to the signed-in user from the state token.
	if claims.LinkUserID != "" {
		if _, err := s.Linking.LinkIdentity(ctx, claims.LinkUserID, providerName, subject, profile); err != nil {
			return LoginResult{}, err
		}
		user, err := s.Store.Users().GetUserByID(ctx, claims.LinkUserID)
		if err != nil {
			return LoginResult{}, fmt.Errorf("load user: %w", err)
		}
		return LoginResult{User: user.Sanitize()}, nil
	}

	user, created, err := s.Linking.ResolveOrCreateUser(ctx, providerName, subject, profile)
	if err != nil {
		return LoginResult{}, err
	}
	if created {
		s.Logger.InfoContext(ctx, "user provisioned via SSO",
			slog.String("user_id", user.ID), slog.String("provider", providerName))
	}

	if !user.Active {
		s.Security.RecordAttempt(ctx, user.Email, user.ID, false, domain.AttemptUserDeactivated, meta)
		return LoginResult{}, autherr.Unauthorized("account is deactivated")
	}

	if user.IsMFAEnabled() {
		challenge, err := s.MFA.IssueChallenge(ctx, user.ID, providerName, rememberMe, meta)
		if err != nil {
			return LoginResult{}, err
		}
		s.Security.RecordAttempt(ctx, user.Email, user.ID, false, domain.AttemptMFARequired, meta)
		return LoginResult{Challenge: &challenge, User: user.Sanitize()}, nil
	}

	return s.finishLogin(ctx, user, providerName, rememberMe, meta)
}

// Logout revokes the presented session. Unknown tokens are a successful no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.Sessions.Invalidate(ctx, token)
}

// GetUser returns the sanitized profile for the authenticated user.
func (s *AuthService) GetUser(ctx context.Context, userID string) (domain.SanitizedUser, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SanitizedUser{}, autherr.NotFound("user not found")
	}
	if err != nil {
		return domain.SanitizedUser{}, err
	}
	return user.Sanitize(), nil
}

func (s *AuthService) finishLogin(ctx context.Context, user domain.User, authMethod string, rememberMe bool, meta ClientMeta) (LoginResult, error) {
	tokens, err := s.Sessions.Create(ctx, user.ID, authMethod, rememberMe, meta)
	if err != nil {
		return LoginResult{}, err
	}

	now := time.Now().UTC()
	if err := s.Store.Users().UpdateLastLogin(ctx, user.ID, now, meta.IP); err != nil {
		s.Logger.WarnContext(ctx, "failed to update last login",
			slog.String("user_id", user.ID), slog.Any("err", err))
	}
	s.Security.RecordAttempt(ctx, user.Email, user.ID, true, domain.AttemptOK, meta)

	return LoginResult{Tokens: &tokens, User: user.Sanitize()}, nil
}

func (s *AuthService) localProvider() provider.PasswordAuthenticator {
	p, err := s.Providers.Get(domain.ProviderLocal)
	if err != nil {
		panic("local provider is not configured")
	}
	return p.(provider.PasswordAuthenticator)
}

func validateEmail(email string) error {
	if email == "" {
		return autherr.Validation("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return autherr.Validation("email", "not a valid email address")
	}
	return nil
}
