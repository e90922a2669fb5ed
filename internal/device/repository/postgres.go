package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"proctor-integrity/backend/internal/db"
	"proctor-integrity/backend/internal/device/domain"
)

const deviceColumns = `id, user_id, public_key, created_at, last_seen_at`

// PostgresRepository persists devices with pgx.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a device repository that uses the given pool or transaction.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the device for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	return scanDevice(r.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
}

// Resolve upserts by public key. last_seen_at only moves when the caller is the owner.
func (r *PostgresRepository) Resolve(ctx context.Context, publicKey, userID string) (*domain.Device, error) {
	now := time.Now().UTC()
	return scanDevice(r.db.QueryRow(ctx, `
		INSERT INTO devices (id, user_id, public_key, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (public_key) DO UPDATE SET last_seen_at =
			CASE WHEN devices.user_id = EXCLUDED.user_id THEN EXCLUDED.last_seen_at ELSE devices.last_seen_at END
		RETURNING `+deviceColumns,
		uuid.New().String(), userID, publicKey, now))
}

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var d domain.Device
	if err := row.Scan(&d.ID, &d.UserID, &d.PublicKey, &d.CreatedAt, &d.LastSeenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}
