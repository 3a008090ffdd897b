package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"llmusic/adapters/llm"
	"llmusic/internal"
	"llmusic/internal/config"
	"llmusic/internal/usage"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "llmusic",
		Short:        "Topic classification of song lyrics with local or hosted LLMs",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newClassifyCmd(),
		newThemesCmd(),
		newGenerateThemesCmd(),
		newScrapeCmd(),
		newStatsCmd(),
		newServeCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openLogger logs to stderr and, when logPath is set, to that file as well.
// The returned closer must be called once the command finishes.
func openLogger(level, logPath string) (*internal.Logger, io.Closer, error) {
	if logPath == "" {
		return internal.NewLogger(internal.ParseLevel(level)), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	return internal.NewLoggerTo(internal.ParseLevel(level), os.Stderr, f), f, nil
}

// derivedPath replaces the extension of input with suffix, e.g.
// trechos.xlsx + "_relatorio_final.csv" → trechos_relatorio_final.csv.
func derivedPath(input, suffix string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}

func formatTemperatures(temps []float64) string {
	parts := make([]string, len(temps))
	for i, t := range temps {
		parts[i] = strconv.FormatFloat(t, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// newGenerator builds the configured endpoint behind a usage tracker.
func newGenerator(cfg *config.Config) (*usage.Tracker, error) {
	gen, err := llm.NewGenerator(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return usage.NewTracker(gen), nil
}

func logUsage(logger *internal.Logger, tracker *usage.Tracker) {
	for _, u := range tracker.Summary() {
		logger.Info("Model %s: %d calls, %d failed, mean latency %s", u.Model, u.Calls, u.Failures, u.MeanLatency().Round(time.Millisecond))
	}
}
