package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"proctor-integrity/backend/internal/db"
	"proctor-integrity/backend/internal/session/domain"
)

// PostgresRepository persists refresh tokens with pgx.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a refresh token repository that uses the given pool or transaction.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create persists t. The token hash must be unique.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.RevokedAt, t.CreatedAt)
	return err
}

// GetByHash returns the token row for tokenHash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens WHERE token_hash = $1`, tokenHash).
		Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Revoke sets revoked_at on a live token and reports whether this call did it.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the token with id. Missing rows are not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	return err
}

// DeleteByHash removes the token with tokenHash. Missing rows are not an error.
func (r *PostgresRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteAllForUser removes every refresh token of userID and returns how many were removed.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PruneForUser deletes all but the keep newest live tokens of userID, plus its revoked tokens that expired by now.
func (r *PostgresRepository) PruneForUser(ctx context.Context, userID string, keep int, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE user_id = $1 AND (
			(revoked_at IS NOT NULL AND expires_at <= $3)
			OR (revoked_at IS NULL AND id NOT IN (
				SELECT id FROM refresh_tokens
				WHERE user_id = $1 AND revoked_at IS NULL
				ORDER BY created_at DESC, id DESC LIMIT $2
			))
		)`, userID, keep, now)
	return err
}
