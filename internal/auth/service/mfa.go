package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/cache"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/clubdeck/clubdeck/pkg/idx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	backupCodeCount = 10                   // number of backup codes issued per batch
	backupCodeBytes = cryptox.TokenSize128 // 128-bit entropy per code

	defaultChallengeTTL     = 5 * time.Minute
	defaultChallengeBudget  = 3
	defaultEnrollmentWindow = 10 * time.Minute
)

// MFAService owns TOTP enrollment and second-factor challenges. TOTP secrets
// are held plaintext only in the TTL-bound pending-setup cache record;
// verified devices store them AES-256-GCM encrypted.
type MFAService struct {
	Store  store.Store
	Cache  cache.SessionCache
	Issuer string // issuer name shown in authenticator apps

	ChallengeTTL time.Duration // default 5 minutes
	MaxAttempts  int           // verification attempts per challenge, default 3
}

func (s *MFAService) challengeTTL() time.Duration {
	if s.ChallengeTTL <= 0 {
		return defaultChallengeTTL
	}
	return s.ChallengeTTL
}

func (s *MFAService) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return defaultChallengeBudget
	}
	return s.MaxAttempts
}

// BeginTOTPEnrollment generates a fresh TOTP secret and parks it in the
// pending-setup cache. MFA is not enabled until the user proves possession by
// verifying a code. Restarting enrollment replaces the pending secret.
func (s *MFAService) BeginTOTPEnrollment(ctx context.Context, userID string) (domain.MFAEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("load user: %w", err)
	}
	if user.IsMFAEnabled() {
		return domain.MFAEnrollment{}, autherr.Conflict("MFA is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	err = s.Cache.PutPendingMFASetup(ctx, userID, cache.PendingMFASetup{
		Secret:    key.Secret(),
		Issuer:    s.Issuer,
		Account:   user.Email,
		CreatedAt: time.Now().UTC(),
	}, defaultEnrollmentWindow)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("store pending enrollment: %w", err)
	}

	return domain.MFAEnrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		Issuer:     s.Issuer,
		Account:    user.Email,
	}, nil
}

// CompleteTOTPEnrollment verifies the first code against the pending secret,
// persists the encrypted device, enables MFA on the user and issues backup
// codes. The plaintext codes are returned exactly once.
func (s *MFAService) CompleteTOTPEnrollment(ctx context.Context, userID, code string) ([]string, error) {
	pending, ok, err := s.Cache.GetPendingMFASetup(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending enrollment: %w", err)
	}
	if !ok {
		return nil, autherr.NotFound("no enrollment in progress, start again")
	}

	if !totp.Validate(code, pending.Secret) {
		return nil, autherr.Unauthorized("invalid TOTP code")
	}

	secretEnc, err := cryptox.EncryptSecret([]byte(pending.Secret))
	if err != nil {
		return nil, fmt.Errorf("encrypt TOTP secret: %w", err)
	}

	backupCodes := make([]string, backupCodeCount)
	for i := range backupCodes {
		c, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		backupCodes[i] = c
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFADevices().CreateMFADevice(ctx, domain.MFADevice{
			ID:        idx.New().String(),
			UserID:    userID,
			Type:      domain.MFAMethodTOTP,
			SecretEnc: secretEnc,
			Primary:   true,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		for _, c := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, cryptox.FingerprintToken(c)); err != nil {
				return err
			}
		}

		return tx.Users().EnableMFA(ctx, userID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("enable MFA: %w", err)
	}

	_ = s.Cache.DeletePendingMFASetup(ctx, userID)
	return backupCodes, nil
}

// IssueChallenge creates a pending challenge after a successful first factor.
// The primary credential is NOT re-validated at verification time; the
// challenge itself carries the proof that it already happened.
func (s *MFAService) IssueChallenge(ctx context.Context, userID, authMethod string, rememberMe bool, meta ClientMeta) (domain.MFAChallengeResponse, error) {
	now := time.Now().UTC()
	challenge := domain.MFAChallenge{
		ID:          idx.New().String(),
		UserID:      userID,
		AuthMethod:  authMethod,
		RememberMe:  rememberMe,
		MaxAttempts: s.maxAttempts(),
		ExpiresAt:   now.Add(s.challengeTTL()),
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   now,
	}
	if err := s.Store.MFAChallenges().CreateMFAChallenge(ctx, challenge); err != nil {
		return domain.MFAChallengeResponse{}, fmt.Errorf("create MFA challenge: %w", err)
	}

	methods := []string{domain.MFAMethodTOTP}
	if n, err := s.Store.BackupCodes().CountBackupCodes(ctx, userID); err == nil && n > 0 {
		methods = append(methods, domain.MFAMethodBackupCode)
	}

	return domain.MFAChallengeResponse{
		MFARequired: true,
		ChallengeID: challenge.ID,
		Methods:     methods,
	}, nil
}

// VerifyChallenge consumes one attempt of a pending challenge. The attempt is
// spent by a guarded increment BEFORE the code is checked, so a crashed or
// concurrent caller can never buy extra guesses. On success the challenge is
// marked verified and the caller proceeds to session issuance.
func (s *MFAService) VerifyChallenge(ctx context.Context, challengeID, method, code string) (domain.MFAChallenge, error) {
	challenge, err := s.Store.MFAChallenges().GetMFAChallenge(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.MFAChallenge{}, autherr.NotFound("challenge not found")
	}
	if err != nil {
		return domain.MFAChallenge{}, fmt.Errorf("load challenge: %w", err)
	}

	now := time.Now().UTC()
	if challenge.VerifiedAt != nil {
		return domain.MFAChallenge{}, autherr.Unauthorized("challenge already completed")
	}
	if !now.Before(challenge.ExpiresAt) {
		return domain.MFAChallenge{}, autherr.Unauthorized("challenge expired, sign in again")
	}

	challenge, err = s.Store.MFAChallenges().IncrementChallengeAttempts(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.MFAChallenge{}, autherr.TooManyRequests("verification attempts exhausted, sign in again")
	}
	if err != nil {
		return domain.MFAChallenge{}, fmt.Errorf("spend challenge attempt: %w", err)
	}

	var verified bool
	switch method {
	case domain.MFAMethodTOTP:
		verified, err = s.verifyTOTP(ctx, challenge.UserID, code)
	case domain.MFAMethodBackupCode:
		verified, err = s.Store.BackupCodes().ConsumeBackupCode(ctx, challenge.UserID, cryptox.FingerprintToken(code))
	default:
		return domain.MFAChallenge{}, autherr.Validation("method", "unknown MFA method")
	}
	if err != nil {
		return domain.MFAChallenge{}, err
	}

	if !verified {
		if challenge.Attempts >= challenge.MaxAttempts {
			return domain.MFAChallenge{}, autherr.TooManyRequests("verification attempts exhausted, sign in again")
		}
		return domain.MFAChallenge{}, autherr.Unauthorized("invalid code")
	}

	ok, err := s.Store.MFAChallenges().MarkChallengeVerified(ctx, challengeID, now)
	if err != nil {
		return domain.MFAChallenge{}, fmt.Errorf("mark challenge verified: %w", err)
	}
	if !ok {
		// A concurrent verification won the race.
		return domain.MFAChallenge{}, autherr.Unauthorized("challenge already completed")
	}

	challenge.VerifiedAt = &now
	return challenge, nil
}

func (s *MFAService) verifyTOTP(ctx context.Context, userID, code string) (bool, error) {
	device, err := s.Store.MFADevices().GetPrimaryMFADevice(ctx, userID, domain.MFAMethodTOTP)
	if errors.Is(err, store.ErrNotFound) {
		return false, autherr.Invariant("MFA enabled but no TOTP device on record")
	}
	if err != nil {
		return false, fmt.Errorf("load MFA device: %w", err)
	}

	secret, err := cryptox.DecryptSecret(device.SecretEnc)
	if err != nil {
		return false, fmt.Errorf("decrypt TOTP secret: %w", err)
	}
	return totp.Validate(code, string(secret)), nil
}

// RegenerateBackupCodes replaces the user's entire batch of backup codes.
// Old codes stop working immediately.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsMFAEnabled() {
		return nil, autherr.Conflict("MFA is not enabled")
	}

	backupCodes := make([]string, backupCodeCount)
	for i := range backupCodes {
		c, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		backupCodes[i] = c
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return err
		}
		for _, c := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, cryptox.FingerprintToken(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("regenerate backup codes: %w", err)
	}
	return backupCodes, nil
}

// DisableMFA removes all MFA material after re-verifying a current code, so a
// hijacked session alone cannot strip the second factor.
func (s *MFAService) DisableMFA(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !user.IsMFAEnabled() {
		return autherr.Conflict("MFA is not enabled")
	}

	verified, err := s.verifyTOTP(ctx, userID, code)
	if err != nil {
		return err
	}
	if !verified {
		// A remaining backup code also proves control of the account.
		verified, err = s.Store.BackupCodes().ConsumeBackupCode(ctx, userID, cryptox.FingerprintToken(code))
		if err != nil {
			return err
		}
	}
	if !verified {
		return autherr.Unauthorized("invalid code")
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFADevices().DeleteAllMFADevices(ctx, userID); err != nil {
			return err
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return err
		}
		return tx.Users().DisableMFA(ctx, userID)
	})
}
