package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/idx"
)

const (
	defaultMaxFailures   = 5
	defaultFailureWindow = 15 * time.Minute
)

// ClientMeta is the caller metadata recorded on sessions and login history.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// SecurityService gates login attempts on the append-only login history.
// Counting failures straight from the database means lockouts survive process
// restarts and need no shared counter state.
type SecurityService struct {
	Store  store.Store
	Logger *slog.Logger

	MaxFailures int           // failures allowed inside the window, default 5
	Window      time.Duration // rolling window, default 15 minutes
}

func (s *SecurityService) maxFailures() int {
	if s.MaxFailures <= 0 {
		return defaultMaxFailures
	}
	return s.MaxFailures
}

func (s *SecurityService) window() time.Duration {
	if s.Window <= 0 {
		return defaultFailureWindow
	}
	return s.Window
}

// CheckLoginAllowed returns a too-many-requests error when the email has
// exhausted its failure budget inside the rolling window. Old failures age
// out naturally as the window slides.
func (s *SecurityService) CheckLoginAllowed(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	since := time.Now().Add(-s.window())

	n, err := s.Store.LoginHistory().CountFailuresSince(ctx, email, since)
	if err != nil {
		return fmt.Errorf("count login failures: %w", err)
	}
	if n >= s.maxFailures() {
		return autherr.TooManyRequests("too many failed login attempts, try again later")
	}
	return nil
}

// RecordAttempt appends a login history record. It is written before the auth
// outcome is returned to the caller; a history write failure is logged but
// never masks the auth result.
func (s *SecurityService) RecordAttempt(ctx context.Context, email, userID string, success bool, reason string, meta ClientMeta) {
	attempt := domain.LoginAttempt{
		ID:        idx.New().String(),
		Email:     normalizeEmail(email),
		UserID:    userID,
		Success:   success,
		Reason:    reason,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.LoginHistory().CreateLoginAttempt(ctx, attempt); err != nil {
		s.Logger.ErrorContext(ctx, "failed to record login attempt",
			slog.String("email", attempt.Email),
			slog.String("reason", reason),
			slog.Any("err", err),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
