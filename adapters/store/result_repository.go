package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"llmusic/domain/core"
	"llmusic/internal/errors"
	"llmusic/ports"

	"github.com/jmoiron/sqlx"
)

// ResultRepositoryImpl implements ResultRepository on sqlx
type ResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &ResultRepositoryImpl{db: db}
}

// CreateRun stores a new run; a zero CreatedAt is set to now.
func (r *ResultRepositoryImpl) CreateRun(ctx context.Context, run *ports.RunInfo) error {
	if run.ID == "" {
		run.ID = core.NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, model, excerpts_file, topics_file, samples, temperatures, created_at)
		VALUES (:id, :model, :excerpts_file, :topics_file, :samples, :temperatures, :created_at)
	`, run)
	if err != nil {
		return errors.DatabaseError("failed to create run", err)
	}
	return nil
}

// GetRun retrieves a run by its ID
func (r *ResultRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*ports.RunInfo, error) {
	var run ports.RunInfo
	err := r.db.GetContext(ctx, &run, r.db.Rebind(`
		SELECT id, model, excerpts_file, topics_file, samples, temperatures, created_at
		FROM runs
		WHERE id = ?
	`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get run", err)
	}
	return &run, nil
}

// ListRuns returns all runs, newest first
func (r *ResultRepositoryImpl) ListRuns(ctx context.Context) ([]*ports.RunInfo, error) {
	var runs []*ports.RunInfo
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, model, excerpts_file, topics_file, samples, temperatures, created_at
		FROM runs
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return runs, nil
}

// SaveRecord inserts a consensus row, replacing an earlier row for the same
// pair of the same run.
func (r *ResultRepositoryImpl) SaveRecord(ctx context.Context, rec *ports.StoredRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO consensus_results (
			run_id, excerpt_index, topic_index, excerpt_id, excerpt_preview, topic_id, topic_name, scores,
			valid_count, mean_score, mode_score, std_dev, positive, confidence, created_at
		) VALUES (
			:run_id, :excerpt_index, :topic_index, :excerpt_id, :excerpt_preview, :topic_id, :topic_name, :scores,
			:valid_count, :mean_score, :mode_score, :std_dev, :positive, :confidence, :created_at
		)
		ON CONFLICT (run_id, excerpt_index, topic_index) DO UPDATE SET
			excerpt_id = excluded.excerpt_id,
			excerpt_preview = excluded.excerpt_preview,
			topic_id = excluded.topic_id,
			topic_name = excluded.topic_name,
			scores = excluded.scores,
			valid_count = excluded.valid_count,
			mean_score = excluded.mean_score,
			mode_score = excluded.mode_score,
			std_dev = excluded.std_dev,
			positive = excluded.positive,
			confidence = excluded.confidence,
			created_at = excluded.created_at
	`, rec)
	if err != nil {
		return errors.DatabaseError("failed to save consensus result", err)
	}
	return nil
}

// ListRecords returns the rows of a run in pair order
func (r *ResultRepositoryImpl) ListRecords(ctx context.Context, id core.RunID) ([]*ports.StoredRecord, error) {
	var records []*ports.StoredRecord
	err := r.db.SelectContext(ctx, &records, r.db.Rebind(`
		SELECT run_id, excerpt_index, topic_index, excerpt_id, excerpt_preview, topic_id, topic_name, scores,
			valid_count, mean_score, mode_score, std_dev, positive, confidence, created_at
		FROM consensus_results
		WHERE run_id = ?
		ORDER BY excerpt_index ASC, topic_index ASC
	`), id)
	if err != nil {
		return nil, errors.DatabaseError("failed to list consensus results", err)
	}
	return records, nil
}
