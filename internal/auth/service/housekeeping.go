package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/store"
)

// HousekeepingService periodically cleans up expired database records to
// prevent unbounded growth of sessions, MFA challenges, and verification
// tokens. Login history is deliberately untouched: it is the rate limiter's
// and the monitor's source of truth, and retention is an external concern.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(s store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    s,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Non-blocking; call Stop() for a graceful shutdown.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts the worker down, blocking until any in-progress cleanup finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup deletes expired records. Each deletion is independent; a failure in
// one table does not stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Logger.Debug("starting housekeeping cleanup")

	if err := s.Store.Sessions().DeleteExpiredSessions(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	}

	if err := s.Store.MFAChallenges().DeleteExpiredMFAChallenges(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired MFA challenges", "error", err)
	}

	if err := s.Store.EmailVerifications().DeleteExpiredEmailVerifications(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired email verifications", "error", err)
	}

	s.Logger.Debug("housekeeping cleanup finished")
}
