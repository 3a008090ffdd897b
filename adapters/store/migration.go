package store

import (
	"context"

	"llmusic/internal/errors"

	"github.com/jmoiron/sqlx"
)

// MigrationRunner creates the result tables. The DDL is portable between
// PostgreSQL and SQLite.
type MigrationRunner struct {
	version string
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner() *MigrationRunner {
	return &MigrationRunner{version: "1.1.0"}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all migrations in order; each step is idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create runs table")
	}
	if err := r.createConsensusResultsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create consensus_results table")
	}
	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}
	return nil
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id VARCHAR(64) PRIMARY KEY,
			model TEXT NOT NULL,
			excerpts_file TEXT NOT NULL DEFAULT '',
			topics_file TEXT NOT NULL DEFAULT '',
			samples INTEGER NOT NULL,
			temperatures TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createConsensusResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS consensus_results (
			run_id VARCHAR(64) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			excerpt_index INTEGER NOT NULL,
			topic_index INTEGER NOT NULL,
			excerpt_id TEXT NOT NULL,
			excerpt_preview TEXT NOT NULL DEFAULT '',
			topic_id TEXT NOT NULL,
			topic_name TEXT NOT NULL,
			scores TEXT NOT NULL,
			valid_count INTEGER NOT NULL,
			mean_score DOUBLE PRECISION NOT NULL,
			mode_score INTEGER NOT NULL,
			std_dev DOUBLE PRECISION NOT NULL,
			positive INTEGER NOT NULL,
			confidence VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (run_id, excerpt_index, topic_index)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_consensus_results_positive ON consensus_results(run_id, positive)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
