package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"llmusic/domain/consensus"
	"llmusic/domain/lyrics"
	"llmusic/internal"
	"llmusic/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator answers from a per-topic script and records every call.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies func(req ports.GenerateRequest) (string, error)
	calls   []ports.GenerateRequest
}

func (g *scriptedGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.replies(req)
}

func (g *scriptedGenerator) temperatures() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]float64, len(g.calls))
	for i, c := range g.calls {
		out[i] = c.Temperature
	}
	return out
}

func constant(reply string) func(ports.GenerateRequest) (string, error) {
	return func(ports.GenerateRequest) (string, error) { return reply, nil }
}

type memorySink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

func (s *memorySink) Save(ctx context.Context, rec Record) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

var (
	twoExcerpts = []lyrics.Excerpt{{ID: "e1", Text: "amor e saudade"}, {ID: "e2", Text: "festa na praia"}}
	twoTopics   = []lyrics.Topic{{ID: "1", Name: "Amor"}, {ID: "2", Name: "Festa"}}
)

func newDriver(gen ports.Generator, opts Options) *Driver {
	return NewDriver(NewSampler(gen, "llama3:8b", 5), opts, internal.Discard)
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		reply string
		score int
		ok    bool
	}{
		{"4", 4, true},
		{"Score: 5", 5, true},
		{"0 ou 7 ... 3", 3, true},
		{"Nota 4 de 5", 4, true},
		{"", 0, false},
		{"nenhum", 0, false},
		{"0 6 7 8 9", 0, false},
	}
	for _, tc := range cases {
		score, ok := ParseScore(tc.reply)
		assert.Equal(t, tc.ok, ok, tc.reply)
		assert.Equal(t, tc.score, score, tc.reply)
	}
}

func TestBuildScorePromptIncludesPair(t *testing.T) {
	prompt := BuildScorePrompt("o mar azul", "Natureza")
	assert.Contains(t, prompt, "Topico: Natureza")
	assert.Contains(t, prompt, `Trecho: "o mar azul"`)
	assert.True(t, strings.HasSuffix(prompt, "(1, 2, 3, 4 ou 5)."))
}

func TestSamplerPassesRequest(t *testing.T) {
	gen := &scriptedGenerator{replies: constant(" 3\n")}
	s := NewSampler(gen, "m", 5)

	score, ok, err := s.Sample(context.Background(), "texto", "Tema", 0.7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, score)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, "m", gen.calls[0].Model)
	assert.Equal(t, 0.7, gen.calls[0].Temperature)
	assert.Equal(t, 5, gen.calls[0].NumPredict)
}

func TestSamplerSeparatesFailureFromInvalidReply(t *testing.T) {
	boom := errors.New("connection refused")
	_, ok, err := NewSampler(&scriptedGenerator{replies: func(ports.GenerateRequest) (string, error) { return "", boom }}, "m", 5).
		Sample(context.Background(), "t", "x", 0)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)

	_, ok, err = NewSampler(&scriptedGenerator{replies: constant("talvez")}, "m", 5).
		Sample(context.Background(), "t", "x", 0)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTemperatureFor(t *testing.T) {
	temps := []float64{0.1, 0.4, 0.7}
	var got []float64
	for k := 0; k < 5; k++ {
		got = append(got, TemperatureFor(temps, k))
	}
	assert.Equal(t, []float64{0.1, 0.4, 0.7, 0.1, 0.4}, got)
	assert.Equal(t, 0.0, TemperatureFor(nil, 3))
}

func TestRunAllAgree(t *testing.T) {
	gen := &scriptedGenerator{replies: constant("4")}
	records, stats, err := newDriver(gen, Options{Samples: 3, Temperatures: []float64{0.1, 0.4, 0.7}}).
		Run(context.Background(), twoExcerpts, twoTopics)
	require.NoError(t, err)

	require.Len(t, records, 4)
	for _, r := range records {
		assert.Equal(t, 4, r.Mode)
		assert.Equal(t, 0.0, r.StdDev)
		assert.Equal(t, 1, r.Classification())
		assert.Equal(t, consensus.ConfidenceHigh, r.Confidence)
		assert.Equal(t, 3, r.Count)
	}
	assert.Equal(t, "e1", records[0].ExcerptID)
	assert.Equal(t, "2", records[1].TopicID)
	assert.Equal(t, "e2", records[2].ExcerptID)

	assert.Equal(t, 4, stats.Pairs)
	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 12, stats.Attempted)
	assert.Zero(t, stats.Failed)
	assert.Len(t, gen.calls, 12)
}

func TestRunDropsStarvedPairs(t *testing.T) {
	gen := &scriptedGenerator{replies: func(req ports.GenerateRequest) (string, error) {
		if strings.Contains(req.Prompt, "Topico: Festa") {
			return "", errors.New("dial tcp: connection refused")
		}
		return "5", nil
	}}
	records, stats, err := newDriver(gen, Options{Samples: 3}).Run(context.Background(), twoExcerpts, twoTopics)
	require.NoError(t, err)

	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "1", r.TopicID)
	}
	assert.Equal(t, 2, stats.Starved)
	assert.Equal(t, 6, stats.Failed)
	assert.Equal(t, 12, stats.Attempted)
}

func TestRunInvalidRepliesDoNotCount(t *testing.T) {
	var mu sync.Mutex
	n := 0
	gen := &scriptedGenerator{replies: func(ports.GenerateRequest) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n%2 == 0 {
			return "sem nota", nil
		}
		return "2", nil
	}}
	records, stats, err := newDriver(gen, Options{Samples: 4}).
		Run(context.Background(), twoExcerpts[:1], twoTopics[:1])
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []int{2, 2}, records[0].Scores)
	assert.Equal(t, 2, records[0].Count)
	assert.Equal(t, 0, records[0].Classification())
	assert.Equal(t, 2, stats.Empty)
}

func TestRunTemperatureSequence(t *testing.T) {
	gen := &scriptedGenerator{replies: constant("3")}
	_, _, err := newDriver(gen, Options{Samples: 5, Temperatures: []float64{0.1, 0.5, 0.9}}).
		Run(context.Background(), twoExcerpts[:1], twoTopics[:1])
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.5, 0.9, 0.1, 0.5}, gen.temperatures())
}

func TestRunWorkersKeepPairOrder(t *testing.T) {
	gen := &scriptedGenerator{replies: func(req ports.GenerateRequest) (string, error) {
		if strings.Contains(req.Prompt, "Amor") {
			return "5", nil
		}
		return "1", nil
	}}
	excerpts := make([]lyrics.Excerpt, 6)
	for i := range excerpts {
		excerpts[i] = lyrics.Excerpt{ID: string(rune('a' + i)), Text: "verso"}
	}

	records, _, err := newDriver(gen, Options{Samples: 2, Workers: 4}).Run(context.Background(), excerpts, twoTopics)
	require.NoError(t, err)
	require.Len(t, records, 12)
	for i, r := range records {
		assert.Equal(t, excerpts[i/2].ID, r.ExcerptID)
		assert.Equal(t, twoTopics[i%2].ID, r.TopicID)
	}
}

func TestRunSkipsCompletedPairs(t *testing.T) {
	gen := &scriptedGenerator{replies: constant("4")}
	done := Record{ExcerptID: "e1", TopicID: "1", TopicName: "Amor", Result: consensus.Result{Scores: []int{1}, Count: 1, Mode: 1}}

	sink := &memorySink{}
	records, stats, err := newDriver(gen, Options{Samples: 2}).
		WithCompleted([]Record{done}).
		WithSink(sink).
		Run(context.Background(), twoExcerpts, twoTopics)
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []int{1}, records[0].Scores)
	assert.Equal(t, 1, stats.Resumed)
	assert.Len(t, gen.calls, 6)
	assert.Len(t, sink.records, 3)
}

func TestRunResumeWithRepeatedExcerptIDs(t *testing.T) {
	excerpts := []lyrics.Excerpt{
		{ID: "song-7", Text: "primeiro trecho da canção"},
		{ID: "song-7", Text: "segundo trecho diferente"},
	}
	topics := []lyrics.Topic{{ID: "1", Name: "Amor"}}

	first, _, err := newDriver(&scriptedGenerator{replies: constant("5")}, Options{Samples: 1}).
		Run(context.Background(), excerpts, topics)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].ExcerptIndex)
	assert.Equal(t, 1, first[1].ExcerptIndex)

	gen := &scriptedGenerator{replies: constant("2")}
	records, stats, err := newDriver(gen, Options{Samples: 1}).
		WithCompleted(first[:1]).
		Run(context.Background(), excerpts, topics)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Resumed)
	require.Len(t, gen.calls, 1)
	assert.Contains(t, gen.calls[0].Prompt, "segundo trecho diferente")
	require.Len(t, records, 2)
	assert.Equal(t, "primeiro trecho da canção", records[0].ExcerptPreview)
	assert.Equal(t, 5, records[0].Mode)
	assert.Equal(t, "segundo trecho diferente", records[1].ExcerptPreview)
	assert.Equal(t, 2, records[1].Mode)
}

func TestRunReclassifiesMismatchedStoredPair(t *testing.T) {
	stale := Record{ExcerptID: "outro", TopicID: "1", Result: consensus.Result{Scores: []int{1}, Count: 1, Mode: 1}}
	gen := &scriptedGenerator{replies: constant("4")}

	records, stats, err := newDriver(gen, Options{Samples: 1}).
		WithCompleted([]Record{stale}).
		Run(context.Background(), twoExcerpts, twoTopics)
	require.NoError(t, err)
	assert.Zero(t, stats.Resumed)
	assert.Len(t, gen.calls, 4)
	assert.Equal(t, "e1", records[0].ExcerptID)
	assert.Equal(t, 4, records[0].Mode)
}

func TestRunSinkErrorStopsRun(t *testing.T) {
	gen := &scriptedGenerator{replies: constant("4")}
	boom := errors.New("disk full")
	_, _, err := newDriver(gen, Options{Samples: 1}).
		WithSink(&memorySink{err: boom}).
		Run(context.Background(), twoExcerpts, twoTopics)
	assert.ErrorIs(t, err, boom)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &scriptedGenerator{}
	gen.replies = func(ports.GenerateRequest) (string, error) {
		cancel()
		return "4", nil
	}
	records, _, err := newDriver(gen, Options{Samples: 3}).Run(ctx, twoExcerpts, twoTopics)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
	assert.Len(t, gen.calls, 1)
}

func TestRecordRow(t *testing.T) {
	res, err := consensus.Aggregate([]int{5, 5, 4, 5, 5})
	require.NoError(t, err)
	rec := Record{ExcerptID: "7", ExcerptPreview: "x", TopicID: "3", TopicName: "Amor", Result: res}

	row := rec.Row()
	require.Len(t, row, len(RecordHeaders))
	assert.Equal(t, []string{"7", "x", "3", "Amor", "[5, 5, 4, 5, 5]", "5", "4.8", "5", "0.4", "1", "high"}, row)
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "4.0", FormatDecimal(4))
	assert.Equal(t, "1.79", FormatDecimal(1.788854))
	assert.Equal(t, "0.0", FormatDecimal(0))
}

func TestParseScores(t *testing.T) {
	scores, err := ParseScores("[4, 5, 1]")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 1}, scores)

	scores, err = ParseScores("[]")
	require.NoError(t, err)
	assert.Empty(t, scores)

	_, err = ParseScores("[a]")
	assert.Error(t, err)
}
