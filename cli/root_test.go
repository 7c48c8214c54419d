package cli

import (
	"context"
	"testing"

	"github.com/credportal/credportal/engine/attachment"
	"github.com/credportal/credportal/pkg/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parsedRoot returns the root command with its flags parsed, the state a
// subcommand sees when PersistentPreRunE runs.
func parsedRoot(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := RootCmd()
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should let flags override the environment", func(t *testing.T) {
		t.Setenv("CREDPORTAL_LOG_LEVEL", "warn")
		t.Setenv("CREDPORTAL_STORAGE_ROOT_DIR", "/srv/credportal")
		cmd := parsedRoot(t, "--log-level", "debug")
		require.NoError(t, SetupGlobalConfig(cmd))
		cfg := config.FromContext(cmd.Context())
		assert.Equal(t, "debug", cfg.Runtime.LogLevel)
		assert.Equal(t, "/srv/credportal", cfg.Storage.RootDir)
	})
	t.Run("Should keep the environment level without a flag", func(t *testing.T) {
		t.Setenv("CREDPORTAL_LOG_LEVEL", "error")
		cmd := parsedRoot(t)
		require.NoError(t, SetupGlobalConfig(cmd))
		assert.Equal(t, "error", config.FromContext(cmd.Context()).Runtime.LogLevel)
	})
	t.Run("Should fail on invalid configuration", func(t *testing.T) {
		t.Setenv("CREDPORTAL_INTAKE_PROTOCOL_BACKOFF", "0s")
		cmd := parsedRoot(t)
		assert.ErrorContains(t, SetupGlobalConfig(cmd), "loading configuration")
	})
}

func TestWriteCheck(t *testing.T) {
	t.Run("Should leave no marker file behind", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		err := writeCheck(t.Context(), attachment.NewFSStore(fs), attachment.NewLayout("/uploads"))
		require.NoError(t, err)
		entries, err := afero.ReadDir(fs, "uploads")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
	t.Run("Should report a read-only store", func(t *testing.T) {
		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		err := writeCheck(t.Context(), attachment.NewFSStore(fs), attachment.NewLayout("/uploads"))
		assert.ErrorContains(t, err, "not writable")
	})
}

func TestStoreConfig(t *testing.T) {
	t.Run("Should carry the pool bounds", func(t *testing.T) {
		cfg := config.Default()
		cfg.Database.MaxOpenConns = 7
		pc := storeConfig(cfg)
		assert.Equal(t, 7, pc.MaxOpenConns)
		assert.Equal(t, cfg.Database.DSN(), pc.ConnString)
	})
}
