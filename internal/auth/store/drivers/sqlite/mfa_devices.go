package sqlite

import (
	"context"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

type mfaDevicesRepo struct {
	db dbtx
}

func (r *mfaDevicesRepo) CreateMFADevice(ctx context.Context, d domain.MFADevice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_devices (id, user_id, type, secret_enc, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Type, d.SecretEnc, d.Primary, d.CreatedAt,
	)
	return mapConstraint(err)
}

func (r *mfaDevicesRepo) GetPrimaryMFADevice(ctx context.Context, userID, deviceType string) (domain.MFADevice, error) {
	var d domain.MFADevice
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, secret_enc, is_primary, created_at
		FROM mfa_devices
		WHERE user_id = ? AND type = ? AND is_primary = 1`,
		userID, deviceType).Scan(&d.ID, &d.UserID, &d.Type, &d.SecretEnc, &d.Primary, &d.CreatedAt)
	if err != nil {
		return domain.MFADevice{}, mapNotFound(err)
	}
	return d, nil
}

func (r *mfaDevicesRepo) ListMFADevicesByUser(ctx context.Context, userID string) ([]domain.MFADevice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, secret_enc, is_primary, created_at
		FROM mfa_devices WHERE user_id = ? ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MFADevice
	for rows.Next() {
		var d domain.MFADevice
		if err := rows.Scan(&d.ID, &d.UserID, &d.Type, &d.SecretEnc, &d.Primary, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *mfaDevicesRepo) DeleteAllMFADevices(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_devices WHERE user_id = ?`, userID)
	return err
}
