package cli

import (
	"fmt"

	"github.com/credportal/credportal/pkg/config"
	"github.com/credportal/credportal/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "credportal",
		Short:         "Credit portal data tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	addGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		MigrateCmd(),
		CheckCmd(),
		ConfigCmd(),
		SyncLocalitiesCmd(),
	)
	return root
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("env-file", "", "Load environment variables from this file")
	fs.String("log-level", "", "Log level (debug, info, warn, error, disabled)")
	fs.Bool("log-json", false, "Emit logs as JSON")
	fs.Bool("log-source", false, "Include source locations in logs")
}

// SetupGlobalConfig loads the configuration, applies logging flags on top of
// it and attaches both to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	flags, err := logger.OverridesFromFlags(cmd.Flags())
	if err != nil {
		return err
	}
	rt := &cfg.Runtime
	if flags.Level != nil {
		rt.LogLevel = *flags.Level
	}
	if flags.JSON != nil {
		rt.LogJSON = *flags.JSON
	}
	if flags.Source != nil {
		rt.LogSource = *flags.Source
	}
	log := logger.SetupLogger(rt.LogLevel, rt.LogJSON, rt.LogSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}
