package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"proctor-integrity/backend/internal/db"
	"proctor-integrity/backend/internal/tamper/domain"
)

const flagColumns = `id, device_id, assignment_id, kind, description, seq, signal_event_id,
	previous_checkpoint_id, new_checkpoint_id, reviewed, reviewed_by, reviewed_at, created_at`

// PostgresRepository persists tamper flags with pgx. Create is normally called with the ingest transaction.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a tamper flag repository that uses the given pool or transaction.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

// Create inserts f.
func (r *PostgresRepository) Create(ctx context.Context, f *domain.Flag) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tamper_flags (id, device_id, assignment_id, kind, description, seq, signal_event_id,
			previous_checkpoint_id, new_checkpoint_id, reviewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10)`,
		f.ID, f.DeviceID, f.AssignmentID, string(f.Kind), f.Description, f.Seq, f.SignalEventID,
		f.PreviousCheckpointID, f.NewCheckpointID, f.CreatedAt)
	return err
}

// GetByID returns the flag for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Flag, error) {
	f, err := scanFlag(r.db.QueryRow(ctx, `SELECT `+flagColumns+` FROM tamper_flags WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// MarkReviewed sets reviewed on an unreviewed flag. A flag that exists but was already reviewed
// returns ErrAlreadyReviewed.
func (r *PostgresRepository) MarkReviewed(ctx context.Context, id, reviewerID string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE tamper_flags SET reviewed = true, reviewed_by = $2, reviewed_at = $3
		WHERE id = $1 AND NOT reviewed`, id, reviewerID, at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	existing, err := r.GetByID(ctx, id)
	if err != nil || existing == nil {
		return false, err
	}
	return false, ErrAlreadyReviewed
}

func scanFlag(row pgx.Row) (*domain.Flag, error) {
	var f domain.Flag
	var kind string
	err := row.Scan(&f.ID, &f.DeviceID, &f.AssignmentID, &kind, &f.Description, &f.Seq, &f.SignalEventID,
		&f.PreviousCheckpointID, &f.NewCheckpointID, &f.Reviewed, &f.ReviewedBy, &f.ReviewedAt, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.Kind = domain.Kind(kind)
	return &f, nil
}
