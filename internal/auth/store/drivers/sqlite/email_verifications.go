package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type emailVerificationsRepo struct {
	db dbtx
}

func scanEmailVerification(row interface{ Scan(...any) error }) (domain.EmailVerification, error) {
	var (
		v      domain.EmailVerification
		usedAt sql.NullTime
	)
	err := row.Scan(&v.ID, &v.UserID, &v.TokenHash, &v.ExpiresAt, &usedAt, &v.CreatedAt)
	if err != nil {
		return domain.EmailVerification{}, err
	}
	v.UsedAt = mapNullTimePtr(usedAt)
	return v, nil
}

func (r *emailVerificationsRepo) CreateEmailVerification(ctx context.Context, v domain.EmailVerification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_verifications (id, user_id, token_hash, expires_at, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.TokenHash, v.ExpiresAt, mapOptionalTime(v.UsedAt), v.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *emailVerificationsRepo) GetEmailVerificationByTokenHash(ctx context.Context, hash string) (domain.EmailVerification, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM email_verifications WHERE token_hash = ?`, hash)
	v, err := scanEmailVerification(row)
	if err != nil {
		return domain.EmailVerification{}, mapNotFound(err)
	}
	return v, nil
}

func (r *emailVerificationsRepo) ConsumeEmailVerification(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_verifications SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *emailVerificationsRepo) DeleteExpiredEmailVerifications(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM email_verifications WHERE expires_at <= ? AND used_at IS NULL`, now)
	return err
}
