package classify

import (
	"context"
	"fmt"

	"llmusic/domain/consensus"
	"llmusic/domain/core"
	"llmusic/ports"
)

// RepositorySink stores every completed record of one run.
type RepositorySink struct {
	repo  ports.ResultRepository
	runID core.RunID
}

// NewRepositorySink binds a sink to a run.
func NewRepositorySink(repo ports.ResultRepository, runID core.RunID) *RepositorySink {
	return &RepositorySink{repo: repo, runID: runID}
}

func (s *RepositorySink) Save(ctx context.Context, rec Record) error {
	return s.repo.SaveRecord(ctx, ToStored(s.runID, rec))
}

// ToStored converts a record for persistence.
func ToStored(runID core.RunID, rec Record) *ports.StoredRecord {
	return &ports.StoredRecord{
		RunID:          runID,
		ExcerptIndex:   rec.ExcerptIndex,
		TopicIndex:     rec.TopicIndex,
		ExcerptID:      rec.ExcerptID,
		ExcerptPreview: rec.ExcerptPreview,
		TopicID:        rec.TopicID,
		TopicName:      rec.TopicName,
		Scores:         FormatScores(rec.Scores),
		ValidCount:     rec.Count,
		Mean:           rec.Mean,
		Mode:           rec.Mode,
		StdDev:         rec.StdDev,
		Positive:       rec.Classification(),
		Confidence:     string(rec.Confidence),
	}
}

// FromStored rebuilds a record from its persisted form.
func FromStored(s *ports.StoredRecord) (Record, error) {
	scores, err := ParseScores(s.Scores)
	if err != nil {
		return Record{}, fmt.Errorf("stored scores %q for pair (%s, %s): %w", s.Scores, s.ExcerptID, s.TopicID, err)
	}
	return Record{
		ExcerptIndex:   s.ExcerptIndex,
		TopicIndex:     s.TopicIndex,
		ExcerptID:      s.ExcerptID,
		ExcerptPreview: s.ExcerptPreview,
		TopicID:        s.TopicID,
		TopicName:      s.TopicName,
		Result: consensus.Result{
			Scores:     scores,
			Count:      s.ValidCount,
			Mean:       s.Mean,
			Mode:       s.Mode,
			StdDev:     s.StdDev,
			Positive:   s.Positive == 1,
			Confidence: consensus.Confidence(s.Confidence),
		},
	}, nil
}

// LoadCompleted reads the records already stored for a run, for resuming.
func LoadCompleted(ctx context.Context, repo ports.ResultRepository, runID core.RunID) ([]Record, error) {
	stored, err := repo.ListRecords(ctx, runID)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(stored))
	for _, s := range stored {
		rec, err := FromStored(s)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
