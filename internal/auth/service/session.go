package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/cache"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/clubdeck/clubdeck/pkg/idx"
)

const (
	defaultSessionTTL    = 24 * time.Hour
	defaultRememberMeTTL = 30 * 24 * time.Hour
)

// SessionService issues, validates, refreshes and revokes opaque sessions.
// The relational store is the source of truth; the cache only accelerates
// validation and is evicted on every state change, so a revoked session can
// never be resurrected from it.
type SessionService struct {
	Store  store.Store
	Cache  cache.SessionCache
	Logger *slog.Logger

	TTL           time.Duration // default session lifetime
	RememberMeTTL time.Duration // lifetime with remember_me
}

func (s *SessionService) ttlFor(rememberMe bool) time.Duration {
	if rememberMe {
		if s.RememberMeTTL > 0 {
			return s.RememberMeTTL
		}
		return defaultRememberMeTTL
	}
	if s.TTL > 0 {
		return s.TTL
	}
	return defaultSessionTTL
}

// Create mints a new session for the user. The opaque tokens are returned
// exactly once; only fingerprints are stored.
func (s *SessionService) Create(ctx context.Context, userID, authMethod string, rememberMe bool, meta ClientMeta) (domain.SessionTokens, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.SessionTokens{}, fmt.Errorf("generate session token: %w", err)
	}
	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.SessionTokens{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	sess := domain.Session{
		ID:               idx.New().String(),
		UserID:           userID,
		TokenHash:        cryptox.FingerprintToken(token),
		RefreshTokenHash: cryptox.FingerprintToken(refresh),
		AuthMethod:       authMethod,
		RememberMe:       rememberMe,
		ExpiresAt:        now.Add(s.ttlFor(rememberMe)),
		LastActivityAt:   now,
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		CreatedAt:        now,
	}
	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.SessionTokens{}, fmt.Errorf("create session: %w", err)
	}

	s.cachePut(ctx, sess)

	return domain.SessionTokens{
		SessionID:    sess.ID,
		Token:        token,
		RefreshToken: refresh,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Validate resolves an opaque session token to its validity verdict. Invalid
// tokens produce a negative verdict, not an error; errors are reserved for
// infrastructure failures.
func (s *SessionService) Validate(ctx context.Context, token string) (domain.SessionValidation, error) {
	hash := cryptox.FingerprintToken(token)
	now := time.Now().UTC()

	// Cache hit: entries are TTL-bound to the session's remaining lifetime
	// and evicted on every revocation path, so a hit is answered without a
	// store round-trip. Out-of-band user deactivation converges on the next
	// miss, which purges the user's remaining cached sessions.
	if entry, ok, err := s.Cache.GetSession(ctx, hash); err != nil {
		s.Logger.WarnContext(ctx, "session cache read failed", slog.Any("err", err))
	} else if ok && now.Before(entry.ExpiresAt) {
		go s.touchAsync(entry.SessionID)
		return domain.SessionValidation{Valid: true, UserID: entry.UserID, SessionID: entry.SessionID}, nil
	}

	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SessionValidation{Valid: false, Reason: domain.ReasonNotFound}, nil
	}
	if err != nil {
		return domain.SessionValidation{}, fmt.Errorf("load session: %w", err)
	}

	switch {
	case sess.RevokedAt != nil:
		return domain.SessionValidation{Valid: false, Reason: domain.ReasonRevoked}, nil
	case !now.Before(sess.ExpiresAt):
		return domain.SessionValidation{Valid: false, Reason: domain.ReasonExpired}, nil
	}

	if verdict, done := s.checkUserActive(ctx, sess.UserID); done {
		return verdict, nil
	}

	s.cachePut(ctx, sess)
	go s.touchAsync(sess.ID)

	return domain.SessionValidation{Valid: true, UserID: sess.UserID, SessionID: sess.ID}, nil
}

// checkUserActive returns a terminal negative verdict when the session's user
// has been deactivated. Deactivation happens out of band, so the user's
// cached sessions are purged here to stop them being served as hits.
func (s *SessionService) checkUserActive(ctx context.Context, userID string) (domain.SessionValidation, bool) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil || !user.Active {
		if err := s.Cache.DeleteUserSessions(ctx, userID); err != nil {
			s.Logger.WarnContext(ctx, "session cache bulk eviction failed",
				slog.String("user_id", userID), slog.Any("err", err))
		}
		return domain.SessionValidation{Valid: false, Reason: domain.ReasonUserDeactivated}, true
	}
	return domain.SessionValidation{}, false
}

// Refresh rotates a session: the presented refresh token buys a brand new
// session and the old one is revoked in the same transaction, so a stolen
// refresh token is single-use.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (domain.SessionTokens, error) {
	hash := cryptox.FingerprintToken(refreshToken)
	now := time.Now().UTC()

	old, err := s.Store.Sessions().GetSessionByRefreshTokenHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.SessionTokens{}, autherr.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return domain.SessionTokens{}, fmt.Errorf("load session by refresh token: %w", err)
	}
	if !old.ActiveAt(now) {
		return domain.SessionTokens{}, autherr.Unauthorized("refresh token expired or revoked")
	}

	user, err := s.Store.Users().GetUserByID(ctx, old.UserID)
	if err != nil || !user.Active {
		return domain.SessionTokens{}, autherr.Unauthorized("account is deactivated")
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.SessionTokens{}, fmt.Errorf("generate session token: %w", err)
	}
	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.SessionTokens{}, fmt.Errorf("generate refresh token: %w", err)
	}

	next := domain.Session{
		ID:               idx.New().String(),
		UserID:           old.UserID,
		TokenHash:        cryptox.FingerprintToken(token),
		RefreshTokenHash: cryptox.FingerprintToken(refresh),
		AuthMethod:       domain.AuthMethodRefresh,
		RememberMe:       old.RememberMe,
		ExpiresAt:        now.Add(s.ttlFor(old.RememberMe)),
		LastActivityAt:   now,
		IP:               meta.IP,
		UserAgent:        meta.UserAgent,
		CreatedAt:        now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().RevokeSession(ctx, old.ID, now); err != nil {
			return err
		}
		return tx.Sessions().CreateSession(ctx, next)
	})
	if err != nil {
		return domain.SessionTokens{}, fmt.Errorf("rotate session: %w", err)
	}

	s.cacheEvict(ctx, old.TokenHash)
	s.cachePut(ctx, next)

	return domain.SessionTokens{
		SessionID:    next.ID,
		Token:        token,
		RefreshToken: refresh,
		ExpiresAt:    next.ExpiresAt,
	}, nil
}

// Invalidate revokes the session behind a presented token. Revoking an
// already-dead session is a successful no-op.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	hash := cryptox.FingerprintToken(token)

	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if err := s.Store.Sessions().RevokeSession(ctx, sess.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.cacheEvict(ctx, hash)
	return nil
}

// InvalidateByID revokes one of the user's own sessions by id.
func (s *SessionService) InvalidateByID(ctx context.Context, userID, sessionID string) error {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return autherr.NotFound("session not found")
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != userID {
		return autherr.NotFound("session not found")
	}

	if err := s.Store.Sessions().RevokeSession(ctx, sess.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.cacheEvict(ctx, sess.TokenHash)
	return nil
}

// InvalidateAll revokes every active session for the user, optionally keeping
// the current one alive.
func (s *SessionService) InvalidateAll(ctx context.Context, userID, exceptSessionID string) error {
	if err := s.Store.Sessions().RevokeAllUserSessions(ctx, userID, exceptSessionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	if err := s.Cache.DeleteUserSessions(ctx, userID); err != nil {
		s.Logger.WarnContext(ctx, "session cache bulk eviction failed",
			slog.String("user_id", userID), slog.Any("err", err))
	}
	return nil
}

// ListSessions returns the user's active sessions for self-service display.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Store.Sessions().ListActiveSessionsByUser(ctx, userID, time.Now().UTC())
}

func (s *SessionService) cachePut(ctx context.Context, sess domain.Session) {
	ttl := time.Until(sess.ExpiresAt)
	err := s.Cache.PutSession(ctx, sess.TokenHash, cache.SessionEntry{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
	}, ttl)
	if err != nil {
		s.Logger.WarnContext(ctx, "session cache write failed", slog.Any("err", err))
	}
}

func (s *SessionService) cacheEvict(ctx context.Context, tokenHash string) {
	if err := s.Cache.DeleteSession(ctx, tokenHash); err != nil {
		s.Logger.WarnContext(ctx, "session cache eviction failed", slog.Any("err", err))
	}
}

// touchAsync bumps last_activity_at off the hot path. Best effort.
func (s *SessionService) touchAsync(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.Store.Sessions().TouchSession(ctx, sessionID, time.Now().UTC())
}
