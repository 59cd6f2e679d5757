package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type passwordResetsRepo struct {
	db dbtx
}

func scanPasswordReset(row interface{ Scan(...any) error }) (domain.PasswordReset, error) {
	var (
		p      domain.PasswordReset
		usedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.TokenHash, &p.ExpiresAt, &usedAt, &p.CreatedAt)
	if err != nil {
		return domain.PasswordReset{}, err
	}
	p.UsedAt = mapNullTimePtr(usedAt)
	return p, nil
}

func (r *passwordResetsRepo) CreatePasswordReset(ctx context.Context, p domain.PasswordReset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.TokenHash, p.ExpiresAt, mapOptionalTime(p.UsedAt), p.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *passwordResetsRepo) GetPasswordResetByTokenHash(ctx context.Context, hash string) (domain.PasswordReset, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_resets WHERE token_hash = ?`, hash)
	p, err := scanPasswordReset(row)
	if err != nil {
		return domain.PasswordReset{}, mapNotFound(err)
	}
	return p, nil
}

// ConsumePasswordReset is a guarded update: the token is spent only when
// used_at is still NULL, so concurrent consumers race safely.
func (r *passwordResetsRepo) ConsumePasswordReset(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = ? WHERE id = ? AND used_at IS NULL`,
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
