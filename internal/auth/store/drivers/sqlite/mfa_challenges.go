package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type mfaChallengesRepo struct {
	db dbtx
}

const mfaChallengeColumns = `id, user_id, auth_method, remember_me, attempts, max_attempts,
	expires_at, verified_at, ip, user_agent, created_at`

func scanMFAChallenge(row interface{ Scan(...any) error }) (domain.MFAChallenge, error) {
	var (
		c          domain.MFAChallenge
		verifiedAt sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.AuthMethod, &c.RememberMe, &c.Attempts, &c.MaxAttempts,
		&c.ExpiresAt, &verifiedAt, &c.IP, &c.UserAgent, &c.CreatedAt,
	)
	if err != nil {
		return domain.MFAChallenge{}, err
	}
	c.VerifiedAt = mapNullTimePtr(verifiedAt)
	return c, nil
}

func (r *mfaChallengesRepo) CreateMFAChallenge(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_challenges (id, user_id, auth_method, remember_me, attempts,
			max_attempts, expires_at, verified_at, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.AuthMethod, c.RememberMe, c.Attempts, c.MaxAttempts,
		c.ExpiresAt, mapOptionalTime(c.VerifiedAt), c.IP, c.UserAgent, c.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *mfaChallengesRepo) GetMFAChallenge(ctx context.Context, id string) (domain.MFAChallenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mfaChallengeColumns+` FROM mfa_challenges WHERE id = ?`, id)
	c, err := scanMFAChallenge(row)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return c, nil
}

// IncrementChallengeAttempts bumps the counter only while the challenge is
// still unverified and under budget. The RETURNING clause hands back the
// post-increment row; no matching row maps to ErrNotFound.
func (r *mfaChallengesRepo) IncrementChallengeAttempts(ctx context.Context, id string) (domain.MFAChallenge, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE mfa_challenges SET attempts = attempts + 1
		WHERE id = ? AND verified_at IS NULL AND attempts < max_attempts
		RETURNING `+mfaChallengeColumns, id)
	c, err := scanMFAChallenge(row)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *mfaChallengesRepo) MarkChallengeVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mfa_challenges SET verified_at = ?
		WHERE id = ? AND verified_at IS NULL AND expires_at > ?`,
		at, id, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *mfaChallengesRepo) DeleteExpiredMFAChallenges(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE expires_at <= ?`, now)
	return err
}
