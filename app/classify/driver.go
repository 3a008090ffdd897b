package classify

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"llmusic/domain/consensus"
	"llmusic/domain/lyrics"
	"llmusic/internal"

	"golang.org/x/sync/errgroup"
)

// Options controls sampling for one run.
type Options struct {
	Samples      int
	Temperatures []float64
	// RequestDelay is slept after every model call; zero disables it.
	RequestDelay time.Duration
	// Workers bounds the number of pairs processed at once. One keeps the
	// run strictly sequential.
	Workers int
}

// TemperatureFor returns the temperature of the k-th sample (0-based),
// cycling through temps. An empty list means temperature 0.
func TemperatureFor(temps []float64, k int) float64 {
	if len(temps) == 0 {
		return 0
	}
	return temps[k%len(temps)]
}

// Record is the consensus for one (excerpt, topic) pair with at least one
// valid sample. ExcerptIndex and TopicIndex are the 0-based input positions;
// ids may repeat, positions do not.
type Record struct {
	ExcerptIndex   int
	TopicIndex     int
	ExcerptID      string
	ExcerptPreview string
	TopicID        string
	TopicName      string
	consensus.Result
}

// RecordHeaders is the output column order.
var RecordHeaders = []string{
	"trecho_id",
	"trecho_texto",
	"topico_id",
	"topico_nome",
	"scores_raw",
	"n_validos",
	"media_score",
	"moda_score",
	"desvio_padrao",
	"classificado_positivo",
	"confianca",
}

// Row renders the record in RecordHeaders order. Mean and standard
// deviation are rounded to two decimals.
func (r Record) Row() []string {
	return []string{
		r.ExcerptID,
		r.ExcerptPreview,
		r.TopicID,
		r.TopicName,
		FormatScores(r.Scores),
		strconv.Itoa(r.Count),
		FormatDecimal(r.Mean),
		strconv.Itoa(r.Mode),
		FormatDecimal(r.StdDev),
		strconv.Itoa(r.Classification()),
		string(r.Confidence),
	}
}

// FormatScores renders scores as a JSON list, e.g. "[4, 5, 4]".
func FormatScores(scores []int) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = strconv.Itoa(s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseScores reads a list written by FormatScores.
func ParseScores(raw string) ([]int, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(raw), "["), "]"))
	if raw == "" {
		return nil, nil
	}
	var scores []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		scores = append(scores, n)
	}
	return scores, nil
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatDecimal renders a value rounded to two decimals, always with a
// fractional part ("4.0", "4.8", "1.79").
func FormatDecimal(v float64) string {
	s := strconv.FormatFloat(Round2(v), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Stats summarises a run for the operator.
type Stats struct {
	Pairs     int
	Records   int
	Starved   int
	Resumed   int
	Attempted int
	Failed    int
	Empty     int
	Elapsed   time.Duration
}

// ResultSink receives every record as soon as its pair completes.
type ResultSink interface {
	Save(ctx context.Context, rec Record) error
}

// Driver enumerates excerpt × topic pairs and aggregates their samples.
type Driver struct {
	sampler *Sampler
	opts    Options
	logger  *internal.Logger
	sink    ResultSink
	done    map[pairPos]Record
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a batch driver.
func NewDriver(sampler *Sampler, opts Options, logger *internal.Logger) *Driver {
	if opts.Samples < 1 {
		opts.Samples = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Driver{sampler: sampler, opts: opts, logger: logger, sleep: sleepCtx}
}

// WithSink makes the driver hand every completed record to sink.
func (d *Driver) WithSink(sink ResultSink) *Driver {
	d.sink = sink
	return d
}

// WithCompleted marks pairs finished by an earlier run; they are emitted
// from the given records without calling the model again. A record only
// matches the pair at the same position carrying the same ids.
func (d *Driver) WithCompleted(records []Record) *Driver {
	d.done = make(map[pairPos]Record, len(records))
	for _, r := range records {
		d.done[pairPos{excerpt: r.ExcerptIndex, topic: r.TopicIndex}] = r
	}
	return d
}

type pairPos struct {
	excerpt int
	topic   int
}

// completed returns the stored record of the pair at (i, j), if any.
func (d *Driver) completed(i, j int, excerpt lyrics.Excerpt, topic lyrics.Topic) (Record, bool) {
	rec, ok := d.done[pairPos{excerpt: i, topic: j}]
	if !ok {
		return Record{}, false
	}
	if rec.ExcerptID != excerpt.ID || rec.TopicID != topic.ID {
		d.logger.Warn("stored result at excerpt %d, topic %d belongs to (%s, %s), not (%s, %s); classifying again",
			i+1, j+1, rec.ExcerptID, rec.TopicID, excerpt.ID, topic.ID)
		return Record{}, false
	}
	return rec, true
}

type pair struct {
	index        int
	excerptIndex int
	topicIndex   int
	excerpt      lyrics.Excerpt
	topic        lyrics.Topic
}

// Run classifies every excerpt against every topic. Records come back in
// pair order (excerpts outer, topics inner) whatever the worker count.
// Pairs without any valid sample are left out. When ctx is cancelled the
// records finished so far are returned together with the context error.
func (d *Driver) Run(ctx context.Context, excerpts []lyrics.Excerpt, topics []lyrics.Topic) ([]Record, Stats, error) {
	start := time.Now()
	stats := Stats{Pairs: len(excerpts) * len(topics)}
	d.logger.Info("classifying %d excerpts against %d topics (%d samples each, %d calls at most, %d workers)",
		len(excerpts), len(topics), d.opts.Samples, stats.Pairs*d.opts.Samples, d.opts.Workers)

	slots := make([]*Record, stats.Pairs)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)

schedule:
	for i, excerpt := range excerpts {
		for j, topic := range topics {
			if gctx.Err() != nil {
				break schedule
			}
			p := pair{index: i*len(topics) + j, excerptIndex: i, topicIndex: j, excerpt: excerpt, topic: topic}
			if j == 0 {
				d.logger.Info("excerpt %d/%d (id=%s)", i+1, len(excerpts), excerpt.ID)
			}

			if rec, ok := d.completed(i, j, excerpt, topic); ok {
				slots[p.index] = &rec
				stats.Resumed++
				continue
			}

			g.Go(func() error {
				rec, counts := d.processPair(gctx, p)
				if gctx.Err() != nil {
					return nil
				}
				mu.Lock()
				stats.Attempted += counts.Attempted
				stats.Failed += counts.Failed
				stats.Empty += counts.Empty
				if rec == nil {
					stats.Starved++
				}
				mu.Unlock()
				if rec == nil {
					return nil
				}
				if d.sink != nil {
					if err := d.sink.Save(gctx, *rec); err != nil {
						return err
					}
				}
				slots[p.index] = rec
				return nil
			})
		}
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	records := make([]Record, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			records = append(records, *r)
		}
	}
	stats.Records = len(records)
	stats.Elapsed = time.Since(start)
	d.logger.Info("done in %s: %d records, %d starved pairs, %d/%d calls failed, %d empty replies",
		stats.Elapsed.Round(time.Millisecond), stats.Records, stats.Starved, stats.Failed, stats.Attempted, stats.Empty)
	return records, stats, err
}

// processPair draws the samples of one pair. It returns nil when no sample
// was valid.
func (d *Driver) processPair(ctx context.Context, p pair) (*Record, Stats) {
	var counts Stats
	scores := make([]int, 0, d.opts.Samples)

	for k := 0; k < d.opts.Samples; k++ {
		if ctx.Err() != nil {
			return nil, counts
		}
		temp := TemperatureFor(d.opts.Temperatures, k)
		counts.Attempted++

		score, ok, err := d.sampler.Sample(ctx, p.excerpt.Text, p.topic.Name, temp)
		switch {
		case err != nil:
			counts.Failed++
			d.logger.Warn("  call failed (excerpt %s, topic %s, temp %.2f): %v", p.excerpt.ID, p.topic.ID, temp, err)
		case !ok:
			counts.Empty++
			d.logger.Warn("  no usable score for topic %s on sample %d", p.topic.ID, k+1)
		default:
			scores = append(scores, score)
		}

		if d.opts.RequestDelay > 0 {
			if err := d.sleep(ctx, d.opts.RequestDelay); err != nil {
				return nil, counts
			}
		}
	}

	result, err := consensus.Aggregate(scores)
	if err != nil {
		d.logger.Warn("  -> no valid reply for topic %s (%s)", p.topic.ID, p.topic.Name)
		return nil, counts
	}
	d.logger.Debug("  topic %s: scores=%v mode=%d std=%.2f -> %d (%s)",
		p.topic.ID, result.Scores, result.Mode, result.StdDev, result.Classification(), result.Confidence)

	return &Record{
		ExcerptIndex:   p.excerptIndex,
		TopicIndex:     p.topicIndex,
		ExcerptID:      p.excerpt.ID,
		ExcerptPreview: p.excerpt.Preview(),
		TopicID:        p.topic.ID,
		TopicName:      p.topic.Name,
		Result:         result,
	}, counts
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
