package sqlite

import (
	"context"
	"database/sql"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type identitiesRepo struct {
	db dbtx
}

const identityColumns = `id, user_id, provider, subject, email, display_name, avatar_url,
	password_hash, verified, is_primary, created_at, updated_at`

func scanIdentity(row interface{ Scan(...any) error }) (domain.Identity, error) {
	var (
		i            domain.Identity
		passwordHash sql.NullString
	)
	err := row.Scan(
		&i.ID, &i.UserID, &i.Provider, &i.Subject, &i.Email, &i.DisplayName,
		&i.AvatarURL, &passwordHash, &i.Verified, &i.Primary, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return domain.Identity{}, err
	}
	i.PasswordHash = mapNullString(passwordHash)
	return i, nil
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	i, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return i, nil
}

func (r *identitiesRepo) GetIdentityByProviderSubject(ctx context.Context, provider, subject string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE provider = ? AND subject = ?`,
		provider, subject)
	i, err := scanIdentity(row)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	return i, nil
}

func (r *identitiesRepo) ListIdentitiesByUser(ctx context.Context, userID string) ([]domain.Identity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE user_id = ? ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *identitiesRepo) CountIdentitiesByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (r *identitiesRepo) CreateIdentity(ctx context.Context, i domain.Identity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (id, user_id, provider, subject, email, display_name,
			avatar_url, password_hash, verified, is_primary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.Provider, i.Subject, i.Email, i.DisplayName,
		i.AvatarURL, mapStringNull(i.PasswordHash), i.Verified, i.Primary,
		i.CreatedAt, i.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) DeleteIdentity(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	return err
}

func (r *identitiesRepo) SetPrimaryIdentity(ctx context.Context, userID, identityID string) error {
	// Two statements, expected to run within a caller-held transaction.
	if _, err := r.db.ExecContext(ctx,
		`UPDATE identities SET is_primary = 0, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		userID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET is_primary = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
		identityID, userID)
	return err
}

func (r *identitiesRepo) SetIdentityVerified(ctx context.Context, id string, verified bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET verified = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		verified, id)
	return err
}

func (r *identitiesRepo) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		hash, id)
	return err
}
