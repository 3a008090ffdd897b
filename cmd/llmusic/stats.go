package main

import (
	"fmt"
	"os"

	"llmusic/internal"
	"llmusic/internal/corpus"
	"llmusic/internal/scraper"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var markdownPath, xlsxPath, htmlPath string

	cmd := &cobra.Command{
		Use:   "stats <songs.json>",
		Short: "Descriptive statistics of a scraped corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			logger := internal.DefaultLogger

			songs, err := scraper.LoadSongs(input)
			if err != nil {
				return err
			}
			report := corpus.Analyze(input, songs)
			logger.Info("Analyzed %d songs by %d artists", report.Songs, report.Artists.Unique)

			if markdownPath == "" {
				markdownPath = derivedPath(input, "_relatorio.md")
			}
			if err := os.WriteFile(markdownPath, []byte(report.Markdown()), 0o644); err != nil {
				return fmt.Errorf("failed to write markdown report: %w", err)
			}
			logger.Info("Markdown report saved to %s", markdownPath)

			if xlsxPath == "" {
				xlsxPath = derivedPath(input, "_relatorio.xlsx")
			}
			if err := report.WriteWorkbook(xlsxPath); err != nil {
				return fmt.Errorf("failed to write workbook: %w", err)
			}
			logger.Info("Workbook saved to %s", xlsxPath)

			if htmlPath != "" {
				if err := os.WriteFile(htmlPath, report.HTML(), 0o644); err != nil {
					return fmt.Errorf("failed to write html report: %w", err)
				}
				logger.Info("HTML report saved to %s", htmlPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&markdownPath, "markdown", "", "Markdown output (default <input>_relatorio.md)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Workbook output (default <input>_relatorio.xlsx)")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Optional HTML output")

	return cmd
}
