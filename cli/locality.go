package cli

import (
	"context"

	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/credportal/credportal/engine/locality"
	"github.com/credportal/credportal/pkg/config"
	"github.com/credportal/credportal/pkg/logger"
	"github.com/spf13/cobra"
)

// SyncLocalitiesCmd refreshes states and municipalities from the IBGE API.
func SyncLocalitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-localities",
		Short: "Refresh states and municipalities from the IBGE localities API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if url, _ := cmd.Flags().GetString("base-url"); url != "" {
				cfg.Locality.BaseURL = url
				if err := config.Validate(cfg); err != nil {
					return err
				}
			}
			if cfg.Database.AutoMigrate {
				if err := postgres.ApplyMigrations(ctx, cfg.Database.DSN()); err != nil {
					return err
				}
			}
			store, err := postgres.NewStore(ctx, storeConfig(cfg))
			if err != nil {
				return err
			}
			defer store.Close(context.WithoutCancel(ctx))
			fetchers, _ := cmd.Flags().GetInt("fetchers")
			syncer := locality.NewSyncer(store.Pool(), locality.NewClient(&cfg.Locality), locality.WithFetchers(fetchers))
			report, err := syncer.Sync(ctx)
			if err != nil {
				return err
			}
			if len(report.Skipped) > 0 {
				logger.FromContext(ctx).Warn("Some states were synchronized without municipalities",
					"states", report.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().String("base-url", "", "Override the localities API base URL")
	cmd.Flags().Int("fetchers", 4, "States fetched concurrently")
	return cmd
}
