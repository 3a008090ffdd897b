package main

import (
	"context"
	"fmt"
	"time"

	"llmusic/adapters/store"
	"llmusic/adapters/tabular"
	"llmusic/app/classify"
	"llmusic/domain/core"
	"llmusic/internal"
	"llmusic/internal/config"
	"llmusic/internal/dataset"
	"llmusic/ports"

	"github.com/spf13/cobra"
)

type classifyFlags struct {
	excerpts string
	topics   string
	output   string
	sample   int
	seed     int64
	dbURL    string
	resume   string
	workers  int
}

func newClassifyCmd() *cobra.Command {
	var f classifyFlags

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Score every excerpt against every topic with self-consistency sampling",
		Long: `Score every (excerpt, topic) pair several times at varying temperatures
and reduce the samples to a consensus judgement.

Example: llmusic classify --excerpts trechos.xlsx --topics topicos.csv --db sqlite://runs.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runClassify(cmd.Context(), cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.excerpts, "excerpts", "", "Excerpts table (CSV or XLSX)")
	cmd.Flags().StringVar(&f.topics, "topics", "", "Topics table (CSV or XLSX)")
	cmd.Flags().StringVar(&f.output, "output", "", "Report path (default <excerpts>_relatorio_final.csv)")
	cmd.Flags().IntVar(&f.sample, "sample", 0, "Classify only N randomly drawn excerpts (0 = all)")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Random seed for excerpt sampling")
	cmd.Flags().StringVar(&f.dbURL, "db", "", "Result store URL (default DATABASE_URL)")
	cmd.Flags().StringVar(&f.resume, "resume", "", "Resume the stored run with this id")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Pairs processed concurrently (default LLMUSIC_WORKERS)")
	_ = cmd.MarkFlagRequired("excerpts")
	_ = cmd.MarkFlagRequired("topics")

	return cmd
}

func runClassify(ctx context.Context, cfg *config.Config, f classifyFlags) error {
	if f.output == "" {
		f.output = derivedPath(f.excerpts, "_relatorio_final.csv")
	}

	// Input errors abort before the run log is created.
	excerpts, eschema, err := dataset.ReadExcerpts(f.excerpts)
	if err != nil {
		return err
	}
	topics, tschema, err := dataset.ReadTopics(f.topics)
	if err != nil {
		return err
	}

	logger, closer, err := openLogger(cfg.LogLevel, derivedPath(f.output, ".log"))
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info("Loaded %d excerpts (id=%q, text=%q) and %d topics (id=%q, name=%q)",
		len(excerpts), eschema.IDColumn, eschema.TextColumn, len(topics), tschema.IDColumn, tschema.NameColumn)
	if f.sample > 0 {
		excerpts = dataset.Sample(excerpts, f.sample, f.seed)
		logger.Info("Sampled %d excerpts with seed %d", len(excerpts), f.seed)
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	opts := classify.Options{
		Samples:      cfg.Sampling.Samples,
		Temperatures: cfg.Sampling.Temperatures,
		RequestDelay: cfg.Sampling.RequestDelay,
		Workers:      cfg.Sampling.Workers,
	}
	if f.workers > 0 {
		opts.Workers = f.workers
	}
	driver := classify.NewDriver(classify.NewSampler(gen, cfg.LLM.Model, cfg.Sampling.NumPredict), opts, logger)

	dbURL := f.dbURL
	if dbURL == "" {
		dbURL = cfg.Database.URL
	}
	if dbURL != "" {
		db, err := store.Open(ctx, dbURL)
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err := prepareRun(ctx, store.NewResultRepository(db), driver, cfg, f, logger)
		if err != nil {
			return err
		}
		logger.Info("Storing results under run %s", runID)
	} else if f.resume != "" {
		return fmt.Errorf("--resume needs a result store (--db or DATABASE_URL)")
	}

	logger.Info("Classifying with model %s: %d samples per pair, temperatures [%s], %d worker(s)",
		cfg.LLM.Model, opts.Samples, formatTemperatures(opts.Temperatures), opts.Workers)

	records, stats, runErr := driver.Run(ctx, excerpts, topics)

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = r.Row()
	}
	if err := tabular.Write(f.output, classify.RecordHeaders, rows); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("Report saved to %s (%d rows)", f.output, len(records))
	logRunStats(logger, stats, records)
	logUsage(logger, gen)

	return runErr
}

// prepareRun registers a new run, or reloads a stored one, and attaches the
// store to the driver.
func prepareRun(ctx context.Context, repo ports.ResultRepository, driver *classify.Driver, cfg *config.Config, f classifyFlags, logger *internal.Logger) (core.RunID, error) {
	if f.resume != "" {
		runID, err := core.ParseRunID(f.resume)
		if err != nil {
			return "", err
		}
		if _, err := repo.GetRun(ctx, runID); err != nil {
			return "", err
		}
		done, err := classify.LoadCompleted(ctx, repo, runID)
		if err != nil {
			return "", err
		}
		logger.Info("Resuming run %s with %d completed pairs", runID, len(done))
		driver.WithCompleted(done).WithSink(classify.NewRepositorySink(repo, runID))
		return runID, nil
	}

	run := &ports.RunInfo{
		ID:           core.NewRunID(),
		Model:        cfg.LLM.Model,
		ExcerptsFile: f.excerpts,
		TopicsFile:   f.topics,
		Samples:      cfg.Sampling.Samples,
		Temperatures: formatTemperatures(cfg.Sampling.Temperatures),
		CreatedAt:    time.Now(),
	}
	if err := repo.CreateRun(ctx, run); err != nil {
		return "", err
	}
	driver.WithSink(classify.NewRepositorySink(repo, run.ID))
	return run.ID, nil
}

func logRunStats(logger *internal.Logger, stats classify.Stats, records []classify.Record) {
	logger.Info("Pairs: %d, records: %d, resumed: %d, without valid samples: %d",
		stats.Pairs, stats.Records, stats.Resumed, stats.Starved)
	logger.Info("Model calls: %d attempted, %d failed, %d unparseable replies",
		stats.Attempted, stats.Failed, stats.Empty)

	summary := classify.Summarize(records)
	logger.Info("Positive pairs: %d of %d", summary.Positive, summary.Records)
	for _, t := range summary.Ranked() {
		logger.Info("  %s (%s): %d positive of %d, mean %s", t.TopicName, t.TopicID, t.Positive, t.Pairs, classify.FormatDecimal(t.MeanScore))
	}
	logger.Info("Elapsed: %s", stats.Elapsed.Round(time.Second))
}
