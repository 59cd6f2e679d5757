package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/mailer"
	"github.com/clubdeck/clubdeck/internal/auth/store"
)

const (
	monitorScanLimit = 1000

	// alertFailureThreshold is the per-email failure count inside one scan
	// window that triggers an operator log line and a user alert email.
	alertFailureThreshold = 10

	// alertSpreadThreshold is the count of distinct source addresses failing
	// against one email inside the window. It catches distributed attempts
	// that stay under the volume threshold from any single address.
	alertSpreadThreshold = 5
)

// SecurityMonitor is a background scanner over the login history. It watches
// for credential-stuffing patterns (many failures against one account, or
// failures spread across many source addresses) and surfaces them as
// structured log events and security alert mail. It never blocks or alters
// the login path itself.
type SecurityMonitor struct {
	Store    store.Store
	Mailer   mailer.Mailer
	Logger   *slog.Logger
	Interval time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	alerted map[string]time.Time // last alert per email, to avoid repeats
}

func NewSecurityMonitor(s store.Store, m mailer.Mailer, logger *slog.Logger, interval time.Duration) *SecurityMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SecurityMonitor{
		Store:    s,
		Mailer:   m,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		alerted:  make(map[string]time.Time),
	}
}

func (s *SecurityMonitor) Start() {
	go s.run()
	s.Logger.Info("security monitor started", "interval", s.Interval)
}

func (s *SecurityMonitor) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("security monitor stopped")
}

func (s *SecurityMonitor) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Scan(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Scan inspects the last interval of login history and raises alerts for
// accounts under sustained failed-login pressure. Exported so tests and
// operators can run a scan on demand.
func (s *SecurityMonitor) Scan(ctx context.Context) {
	since := time.Now().Add(-s.Interval)

	attempts, err := s.Store.LoginHistory().ListAttemptsSince(ctx, since, monitorScanLimit)
	if err != nil {
		s.Logger.ErrorContext(ctx, "security monitor scan failed", slog.Any("err", err))
		return
	}

	failures := make(map[string]int)
	sources := make(map[string]map[string]struct{})
	for _, a := range attempts {
		if a.Success {
			continue
		}
		failures[a.Email]++
		if a.IP == "" {
			continue
		}
		if sources[a.Email] == nil {
			sources[a.Email] = make(map[string]struct{})
		}
		sources[a.Email][a.IP] = struct{}{}
	}

	now := time.Now()
	for email, n := range failures {
		spread := len(sources[email])
		if n < alertFailureThreshold && spread < alertSpreadThreshold {
			continue
		}
		// One alert per email per hour is plenty.
		if last, ok := s.alerted[email]; ok && now.Sub(last) < time.Hour {
			continue
		}
		s.alerted[email] = now

		msg := "multiple failed sign-in attempts were detected on your account"
		if spread >= alertSpreadThreshold {
			msg = "failed sign-in attempts from several locations were detected on your account"
		}
		s.Logger.WarnContext(ctx, "sustained failed logins detected",
			slog.String("email", email),
			slog.Int("failures", n),
			slog.Int("distinct_ips", spread),
			slog.Duration("window", s.Interval),
		)
		s.Mailer.SendSecurityAlert(ctx, email, msg)
	}
}
