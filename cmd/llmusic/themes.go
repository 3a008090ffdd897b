package main

import (
	"fmt"

	"llmusic/adapters/tabular"
	"llmusic/app/themes"
	"llmusic/internal/dataset"

	"github.com/spf13/cobra"
)

func newThemesCmd() *cobra.Command {
	var excerptsPath, themesPath, output string
	var iterations int

	cmd := &cobra.Command{
		Use:   "themes",
		Short: "Multi-label classification of excerpts against a list of themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if output == "" {
				output = derivedPath(excerptsPath, "_temas_classificados.csv")
			}
			if iterations <= 0 {
				iterations = cfg.Themes.Iterations
			}
			logger, closer, err := openLogger(cfg.LogLevel, derivedPath(output, ".log"))
			if err != nil {
				return err
			}
			defer closer.Close()

			excerpts, _, err := dataset.ReadExcerpts(excerptsPath)
			if err != nil {
				return err
			}
			table, err := tabular.Read(themesPath)
			if err != nil {
				return err
			}
			candidates, err := dataset.LoadThemeCandidates(table)
			if err != nil {
				return err
			}
			logger.Info("Loaded %d excerpts and %d themes from columns %v", len(excerpts), len(candidates.Themes), candidates.Columns)

			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			labels, err := themes.NewClassifier(gen, cfg.LLM.Model, iterations, logger).Classify(cmd.Context(), excerpts, candidates)
			logUsage(logger, gen)
			if err != nil {
				return err
			}

			rows := make([][]string, len(labels))
			positive := 0
			for i, l := range labels {
				rows[i] = l.Row()
				if l.Positive {
					positive++
				}
			}
			if err := tabular.Write(output, themes.ClassificationHeaders, rows); err != nil {
				return fmt.Errorf("failed to write classification: %w", err)
			}
			logger.Info("Saved %d rows (%d positive) to %s", len(labels), positive, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&excerptsPath, "excerpts", "", "Excerpts table (CSV or XLSX)")
	cmd.Flags().StringVar(&themesPath, "themes", "", "Table holding the candidate themes")
	cmd.Flags().StringVar(&output, "output", "", "Output path (default <excerpts>_temas_classificados.csv)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Passes over the excerpts (default LLMUSIC_ITERACOES)")
	_ = cmd.MarkFlagRequired("excerpts")
	_ = cmd.MarkFlagRequired("themes")

	return cmd
}

func newGenerateThemesCmd() *cobra.Command {
	var excerptsPath, output string
	var opts themes.GenerateOptions

	cmd := &cobra.Command{
		Use:   "generate-themes",
		Short: "Ask the model for short themes over shuffled batches of excerpts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if output == "" {
				output = derivedPath(excerptsPath, "_temas_gerados.csv")
			}
			if opts.Iterations <= 0 {
				opts.Iterations = cfg.Themes.Iterations
			}
			if opts.ExcerptsPerBatch <= 0 {
				opts.ExcerptsPerBatch = cfg.Themes.ExcerptsPerBatch
			}
			if opts.ThemesPerBatch <= 0 {
				opts.ThemesPerBatch = cfg.Themes.ThemesPerBatch
			}
			logger, closer, err := openLogger(cfg.LogLevel, derivedPath(output, ".log"))
			if err != nil {
				return err
			}
			defer closer.Close()

			excerpts, _, err := dataset.ReadExcerpts(excerptsPath)
			if err != nil {
				return err
			}
			texts := make([]string, len(excerpts))
			for i, e := range excerpts {
				texts[i] = e.Text
			}

			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			generated, err := themes.NewGenerator(gen, cfg.LLM.Model, opts, logger).Generate(cmd.Context(), texts)
			logUsage(logger, gen)
			if err != nil {
				return err
			}

			rows := make([][]string, len(generated))
			for i, g := range generated {
				rows[i] = g.Row()
			}
			if err := tabular.Write(output, themes.GeneratedHeaders, rows); err != nil {
				return fmt.Errorf("failed to write themes: %w", err)
			}
			logger.Info("Saved %d themes to %s", len(generated), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&excerptsPath, "excerpts", "", "Excerpts table (CSV or XLSX)")
	cmd.Flags().StringVar(&output, "output", "", "Output path (default <excerpts>_temas_gerados.csv)")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 0, "Shuffled passes (default LLMUSIC_ITERACOES)")
	cmd.Flags().IntVar(&opts.ExcerptsPerBatch, "batch", 0, "Excerpts per prompt (default LLMUSIC_TRECHOS_LOTE)")
	cmd.Flags().IntVar(&opts.ThemesPerBatch, "per-batch", 0, "Themes asked per prompt (default LLMUSIC_TEMAS_POR_LOTE)")
	cmd.Flags().Float64Var(&opts.Temperature, "temperature", 0.7, "Sampling temperature")
	cmd.Flags().IntVar(&opts.MaxTokens, "max-tokens", 100, "Output token budget per prompt")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "Shuffle seed")
	_ = cmd.MarkFlagRequired("excerpts")

	return cmd
}
