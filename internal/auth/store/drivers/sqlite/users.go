package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, email_verified, active, mfa_enabled, locale, timezone,
	last_login_at, last_login_ip, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u           domain.User
		mfaEnabled  sql.NullTime
		lastLoginAt sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.EmailVerified, &u.Active, &mfaEnabled, &u.Locale,
		&u.Timezone, &lastLoginAt, &u.LastLoginIP, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.MFAEnabled = mapNullTimePtr(mfaEnabled)
	u.LastLoginAt = mapNullTimePtr(lastLoginAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, email_verified, active, mfa_enabled, locale, timezone,
			last_login_at, last_login_ip, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.EmailVerified, u.Active, mapOptionalTime(u.MFAEnabled),
		u.Locale, u.Timezone, mapOptionalTime(u.LastLoginAt), u.LastLoginIP,
		u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) SetEmailVerified(ctx context.Context, userID string, verified bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		verified, userID)
	return err
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, userID)
	return err
}

func (r *usersRepo) UpdateLastLogin(ctx context.Context, userID string, at time.Time, ip string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, last_login_ip = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at, ip, userID)
	return err
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at, userID)
	return err
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userID)
	return err
}
