package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, token_hash, refresh_token_hash, auth_method, remember_me,
	expires_at, revoked_at, last_activity_at, ip, user_agent, created_at`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var (
		s         domain.Session
		revokedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.RefreshTokenHash, &s.AuthMethod,
		&s.RememberMe, &s.ExpiresAt, &revokedAt, &s.LastActivityAt,
		&s.IP, &s.UserAgent, &s.CreatedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, refresh_token_hash, auth_method,
			remember_me, expires_at, revoked_at, last_activity_at, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenHash, s.RefreshTokenHash, s.AuthMethod,
		s.RememberMe, s.ExpiresAt, mapOptionalTime(s.RevokedAt),
		s.LastActivityAt, s.IP, s.UserAgent, s.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, hash)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) GetSessionByRefreshTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, hash)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListActiveSessionsByUser(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		ORDER BY last_activity_at DESC`,
		userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at, sessionID)
	return err
}

func (r *sessionsRepo) RevokeAllUserSessions(ctx context.Context, userID, exceptID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = ?
		WHERE user_id = ? AND revoked_at IS NULL AND (? = '' OR id != ?)`,
		at, userID, exceptID, exceptID)
	return err
}

func (r *sessionsRepo) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ? WHERE id = ?`,
		at, sessionID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}
