// Package repository persists ingest state: signals, device sequences, checkpoints and tamper flags.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"proctor-integrity/backend/internal/checkpoint"
	"proctor-integrity/backend/internal/db"
	"proctor-integrity/backend/internal/ingest"
	"proctor-integrity/backend/internal/sequence"
	tamperdomain "proctor-integrity/backend/internal/tamper/domain"
	tamperrepo "proctor-integrity/backend/internal/tamper/repository"
)

// PostgresStore implements ingest.Store with pgx. Each unit of work is a serializable transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ ingest.Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// LastSeq returns the committed last sequence for the pair, 0 when none.
func (s *PostgresStore) LastSeq(ctx context.Context, deviceID, assignmentID string) (int64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT last_seq FROM device_sequences WHERE device_id = $1 AND assignment_id = $2`,
		deviceID, assignmentID).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}

// SignalExists reports whether (eventID, assignmentID) is stored.
func (s *PostgresStore) SignalExists(ctx context.Context, eventID, assignmentID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM signals WHERE event_id = $1 AND assignment_id = $2)`,
		eventID, assignmentID).Scan(&exists)
	return exists, err
}

// LoadCheckpoint returns the pair's checkpoint state, or nil if none.
func (s *PostgresStore) LoadCheckpoint(ctx context.Context, deviceID, assignmentID string) (*checkpoint.State, error) {
	var st checkpoint.State
	err := s.pool.QueryRow(ctx, `
		SELECT last_checkpoint_id, state_hash, seq, session_count, total_focused_seconds, has_discontinuity
		FROM device_checkpoints WHERE device_id = $1 AND assignment_id = $2`, deviceID, assignmentID).
		Scan(&st.LastCheckpointID, &st.StateHash, &st.Seq, &st.SessionCount, &st.TotalFocusedSeconds, &st.HasDiscontinuity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// WithinTx runs fn in a serializable transaction. Serialization failures and deadlocks are
// reported as sequence.ErrConcurrentUpdate so the signal is rejected rather than retried.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ingest.Tx) error) error {
	err := db.WithTx(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, flags: tamperrepo.NewPostgresRepository(tx)})
	})
	if err != nil && db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", sequence.ErrConcurrentUpdate, err)
	}
	return err
}

type pgTx struct {
	tx    pgx.Tx
	flags *tamperrepo.PostgresRepository
}

// LockSeq creates the counter row at 0 if absent and locks it for the rest of the transaction.
func (t *pgTx) LockSeq(ctx context.Context, deviceID, assignmentID string) (int64, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO device_sequences (device_id, assignment_id, last_seq) VALUES ($1, $2, 0)
		ON CONFLICT (device_id, assignment_id) DO NOTHING`, deviceID, assignmentID); err != nil {
		return 0, err
	}
	var seq int64
	err := t.tx.QueryRow(ctx, `SELECT last_seq FROM device_sequences
		WHERE device_id = $1 AND assignment_id = $2 FOR UPDATE`, deviceID, assignmentID).Scan(&seq)
	return seq, err
}

func (t *pgTx) SaveSeq(ctx context.Context, deviceID, assignmentID string, seq int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE device_sequences SET last_seq = $3, updated_at = now()
		WHERE device_id = $1 AND assignment_id = $2`, deviceID, assignmentID, seq)
	return err
}

func (t *pgTx) InsertSignal(ctx context.Context, rec *ingest.Record) error {
	s := rec.Signal
	payload, err := s.PayloadJSON()
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO signals (event_id, assignment_id, device_id, user_id, session_id, type, occurred_at, seq,
			payload, course_id, commit_sha, repo_identifier, signature, public_key, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.EventID, s.AssignmentID, rec.DeviceID, rec.UserID, s.SessionID, string(s.Type), s.Timestamp, s.Seq,
		payload, s.CourseID, s.CommitSHA, s.RepoIdentifier, s.Signature, s.PublicKey, rec.ReceivedAt)
	if db.IsUniqueViolation(err) {
		return ingest.ErrDuplicateEvent
	}
	return err
}

func (t *pgTx) SaveCheckpoint(ctx context.Context, deviceID, assignmentID string, st checkpoint.State) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO device_checkpoints (device_id, assignment_id, last_checkpoint_id, state_hash, seq,
			session_count, total_focused_seconds, has_discontinuity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (device_id, assignment_id) DO UPDATE SET
			last_checkpoint_id = EXCLUDED.last_checkpoint_id,
			state_hash = EXCLUDED.state_hash,
			seq = EXCLUDED.seq,
			session_count = EXCLUDED.session_count,
			total_focused_seconds = EXCLUDED.total_focused_seconds,
			has_discontinuity = device_checkpoints.has_discontinuity OR EXCLUDED.has_discontinuity,
			updated_at = now()`,
		deviceID, assignmentID, st.LastCheckpointID, st.StateHash, st.Seq,
		st.SessionCount, st.TotalFocusedSeconds, st.HasDiscontinuity)
	return err
}

func (t *pgTx) CreateTamperFlag(ctx context.Context, f *tamperdomain.Flag) error {
	return t.flags.Create(ctx, f)
}
