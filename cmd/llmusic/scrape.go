package main

import (
	"fmt"

	"llmusic/internal/scraper"

	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	var configPath, output, logLevel string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect lyrics for the artists listed in a YAML job file",
		Long: `Collect lyrics for the artists listed in a YAML job file.

Example job:
  artists: ["Henrique e Juliano", "Marília Mendonça"]
  max_songs: 50
  workers: 2
  min_delay: 1s
  max_delay: 3s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := scraper.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, closer, err := openLogger(logLevel, derivedPath(output, ".log"))
			if err != nil {
				return err
			}
			defer closer.Close()

			s := scraper.New(scraper.NewClient(job.ClientConfig(), nil), logger)
			results := s.ScrapeAll(cmd.Context(), job.Artists, job.MaxSongs, job.Workers)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}

			songs := scraper.Songs(results)
			if len(songs) == 0 {
				return fmt.Errorf("no songs collected")
			}
			if err := scraper.SaveSongs(output, songs); err != nil {
				return err
			}
			logger.Info("Saved %d songs from %d artists (%d failed) to %s", len(songs), len(job.Artists), failed, output)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "scrape.yaml", "YAML job file")
	cmd.Flags().StringVar(&output, "output", "musicas.json", "Output path (.json, .csv or .xlsx)")
	cmd.Flags().StringVar(&logLevel, "log-level", "INFO", "Log level")

	return cmd
}
