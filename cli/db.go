package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/credportal/credportal/engine/infra/postgres"
	"github.com/credportal/credportal/pkg/config"
	"github.com/credportal/credportal/pkg/logger"
	"github.com/spf13/cobra"
)

func storeConfig(cfg *config.Config) *postgres.Config {
	db := cfg.Database
	return &postgres.Config{
		ConnString:      db.DSN(),
		Host:            db.Host,
		DBName:          db.DBName,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnectTimeout:  db.ConnectTimeout,
	}
}

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			start := time.Now()
			if err := postgres.ApplyMigrations(ctx, cfg.Database.DSN()); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("Migrations applied", "duration", time.Since(start))
			return nil
		},
	}
}

// CheckCmd verifies the database is reachable and the upload root is writable.
func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify database connectivity and upload storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
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
			if err := store.HealthCheck(ctx); err != nil {
				return fmt.Errorf("database health check: %w", err)
			}
			if err := checkStorage(ctx, cfg); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("All checks passed")
			return nil
		},
	}
}
