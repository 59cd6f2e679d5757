// Package mailer dispatches account emails. Delivery is fire-and-forget from
// the caller's perspective: auth flows never fail because an email could not
// be sent, and they never confirm to the caller whether one was sent at all.
package mailer

import (
	"context"
	"log/slog"
)

// Mailer sends transactional account mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string)
	SendEmailVerification(ctx context.Context, email, token string)
	SendSecurityAlert(ctx context.Context, email, message string)
}

// LogMailer writes the mail that would be sent to the structured log. It is
// the default until an SMTP or provider-backed implementation is configured,
// and what tests observe.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) {
	m.log.InfoContext(ctx, "password reset email",
		slog.String("to", email),
		slog.String("token", token),
	)
}

func (m *LogMailer) SendEmailVerification(ctx context.Context, email, token string) {
	m.log.InfoContext(ctx, "email verification email",
		slog.String("to", email),
		slog.String("token", token),
	)
}

func (m *LogMailer) SendSecurityAlert(ctx context.Context, email, message string) {
	m.log.InfoContext(ctx, "security alert email",
		slog.String("to", email),
		slog.String("message", message),
	)
}
