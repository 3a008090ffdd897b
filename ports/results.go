package ports

import (
	"context"
	"time"

	"llmusic/domain/core"
)

// RunInfo describes one classification run.
type RunInfo struct {
	ID           core.RunID `db:"id" json:"id"`
	Model        string     `db:"model" json:"model"`
	ExcerptsFile string     `db:"excerpts_file" json:"excerpts_file"`
	TopicsFile   string     `db:"topics_file" json:"topics_file"`
	Samples      int        `db:"samples" json:"samples"`
	Temperatures string     `db:"temperatures" json:"temperatures"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// StoredRecord is one persisted consensus row. A row is identified by the
// positions of its excerpt and topic in the run's inputs.
type StoredRecord struct {
	RunID          core.RunID `db:"run_id" json:"run_id"`
	ExcerptIndex   int        `db:"excerpt_index" json:"excerpt_index"`
	TopicIndex     int        `db:"topic_index" json:"topic_index"`
	ExcerptID      string     `db:"excerpt_id" json:"excerpt_id"`
	ExcerptPreview string     `db:"excerpt_preview" json:"excerpt_preview"`
	TopicID        string     `db:"topic_id" json:"topic_id"`
	TopicName      string     `db:"topic_name" json:"topic_name"`
	Scores         string     `db:"scores" json:"scores"`
	ValidCount     int        `db:"valid_count" json:"valid_count"`
	Mean           float64    `db:"mean_score" json:"mean_score"`
	Mode           int        `db:"mode_score" json:"mode_score"`
	StdDev         float64    `db:"std_dev" json:"std_dev"`
	Positive       int        `db:"positive" json:"positive"`
	Confidence     string     `db:"confidence" json:"confidence"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ResultRepository persists runs and their consensus rows so that an
// interrupted run can be resumed and results browsed later.
type ResultRepository interface {
	CreateRun(ctx context.Context, run *RunInfo) error
	GetRun(ctx context.Context, id core.RunID) (*RunInfo, error)
	ListRuns(ctx context.Context) ([]*RunInfo, error)
	SaveRecord(ctx context.Context, rec *StoredRecord) error
	ListRecords(ctx context.Context, id core.RunID) ([]*StoredRecord, error)
}
