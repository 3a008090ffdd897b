package main

import (
	"fmt"

	"llmusic/adapters/store"
	"llmusic/ui"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr, dbURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse stored runs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dbURL == "" {
				dbURL = cfg.Database.URL
			}
			if dbURL == "" {
				return fmt.Errorf("serve needs a result store (--db or DATABASE_URL)")
			}
			logger, closer, err := openLogger(cfg.LogLevel, "")
			if err != nil {
				return err
			}
			defer closer.Close()

			db, err := store.Open(cmd.Context(), dbURL)
			if err != nil {
				return err
			}
			defer db.Close()

			app, err := ui.NewApp(store.NewResultRepository(db), logger)
			if err != nil {
				return err
			}
			return app.Start(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&dbURL, "db", "", "Result store URL (default DATABASE_URL)")

	return cmd
}
