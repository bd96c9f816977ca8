package db

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/defisafe/hotwallet/internal/config"
	"github.com/defisafe/hotwallet/internal/storage"
	"github.com/defisafe/hotwallet/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("db",
		newInit(),
	)
}

func newInit() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := config.DefaultServiceConfigFromEnv()

			if cfg.DatabaseURL == "" {
				log.Fatal().Msg("HOTWALLET_DATABASE_URL is not set")
			}

			store, err := storage.NewPostgres(cfg.DatabaseURL)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to database")
			}
			defer store.Close()

			if err := store.InitSchema(context.Background()); err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize schema")
			}

			log.Info().Msg("Database schema initialized")
		},
	}
}
