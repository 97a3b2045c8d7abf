package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand(f *Flags) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd, f)
	return cmd
}

func TestFlags_OverrideOnlyWhenSet(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OUTPUT_DIR", "")

	var f Flags
	cmd := newFlagCommand(&f)
	require.NoError(t, cmd.ParseFlags([]string{"--use-memory", "--env-file", "", "--output-dir", "reports"}))

	cfg, err := f.LoadConfig(cmd)
	require.NoError(t, err)

	assert.True(t, cfg.UseMemory)
	assert.Equal(t, "reports", cfg.Report.OutputDir)
	assert.Equal(t, "warn", cfg.Logging.Level, "unset flag keeps the environment value")
}

func TestFlags_ConfigFileAndValidation(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	t.Setenv("TRENDRADAR_USE_MEMORY", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  schedule: \"*/5 * * * *\"\n"), 0644))

	var f Flags
	cmd := newFlagCommand(&f)
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--env-file", ""}))

	_, err := f.LoadConfig(cmd)
	require.Error(t, err, "database mode without DSNs is rejected")

	require.NoError(t, cmd.ParseFlags([]string{"--use-memory"}))
	cfg, err := f.LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.Schedule)
}

func TestFlags_EnvFileLoaded(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("# comment\nTRENDRADAR_USE_MEMORY=true\n"), 0644))
	t.Setenv("TRENDRADAR_USE_MEMORY", "")

	var f Flags
	cmd := newFlagCommand(&f)
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", envPath}))

	cfg, err := f.LoadConfig(cmd)
	require.NoError(t, err)
	assert.True(t, cfg.UseMemory)
}
