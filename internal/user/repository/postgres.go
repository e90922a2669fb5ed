package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"proctor-integrity/backend/internal/db"
	"proctor-integrity/backend/internal/user/domain"
)

const userColumns = `id, provider_id, login, role, created_at, updated_at`

// PostgresRepository persists users with pgx.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a user repository that uses the given pool or transaction.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByProviderID returns the user for the identity-provider id, or nil if not found.
func (r *PostgresRepository) GetByProviderID(ctx context.Context, providerID string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE provider_id = $1`, providerID)
}

// Upsert inserts u or updates login on the existing row for its provider id. The stored role is never overwritten.
func (r *PostgresRepository) Upsert(ctx context.Context, u *domain.User) (*domain.User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return r.getOne(ctx, `
		INSERT INTO users (id, provider_id, login, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (provider_id) DO UPDATE SET login = EXCLUDED.login, updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		u.ID, u.ProviderID, u.Login, string(u.Role), u.CreatedAt)
}

func (r *PostgresRepository) getOne(ctx context.Context, sql string, args ...any) (*domain.User, error) {
	var u domain.User
	var role string
	err := r.db.QueryRow(ctx, sql, args...).Scan(&u.ID, &u.ProviderID, &u.Login, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}
