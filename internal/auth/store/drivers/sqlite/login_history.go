package sqlite

import (
	"context"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type loginHistoryRepo struct {
	db dbtx
}

func (r *loginHistoryRepo) CreateLoginAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_history (id, email, user_id, success, reason, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.UserID, a.Success, a.Reason, a.IP, a.UserAgent, a.CreatedAt,
	)
	return err
}

func (r *loginHistoryRepo) CountFailuresSince(ctx context.Context, email string, since time.Time) (int, error) {
	// mfa_required marks a pending second factor, not a credential failure,
	// and rate_limited rows must not extend the lockout they describe.
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_history
		WHERE email = ? AND success = 0 AND created_at > ?
		  AND reason NOT IN ('mfa_required', 'rate_limited')`,
		email, since).Scan(&n)
	return n, err
}

func (r *loginHistoryRepo) ListAttemptsSince(ctx context.Context, since time.Time, limit int) ([]domain.LoginAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, user_id, success, reason, ip, user_agent, created_at
		FROM login_history
		WHERE created_at > ?
		ORDER BY created_at DESC
		LIMIT ?`,
		since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var a domain.LoginAttempt
		if err := rows.Scan(&a.ID, &a.Email, &a.UserID, &a.Success, &a.Reason,
			&a.IP, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
