package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValidInMemoryMode(t *testing.T) {
	cfg := Default()
	cfg.UseMemory = true

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "@every 15m", cfg.Scheduler.Schedule)
	assert.Equal(t, 6, cfg.Aggregation.HistoryPeriods)
	assert.Equal(t, 70.0, cfg.Aggregation.BreakoutThreshold)
	assert.Equal(t, FlagPolicyRetain, cfg.Breakout.FlagPolicy)

	windows := cfg.TimeWindows()
	require.Len(t, windows, 3)
	assert.Equal(t, "24h", windows[1].Name)
	assert.Equal(t, 168*time.Hour, windows[2].Duration)
}

func TestValidate_RequiresDSNsOutsideMemoryMode(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Postgres.DSN = "postgres://localhost/trends"
	cfg.ClickHouse.DSN = "clickhouse://localhost:9000/default"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad schedule", func(c *Config) { c.Scheduler.Schedule = "every now and then" }},
		{"bad flag policy", func(c *Config) { c.Breakout.FlagPolicy = "forget" }},
		{"no windows", func(c *Config) { c.Aggregation.Windows = nil }},
		{"duplicate windows", func(c *Config) {
			c.Aggregation.Windows = append(c.Aggregation.Windows, WindowConfig{Name: "24h", Duration: time.Hour})
		}},
		{"zero window duration", func(c *Config) { c.Aggregation.Windows[0].Duration = 0 }},
		{"threshold over 100", func(c *Config) { c.Aggregation.BreakoutThreshold = 120 }},
		{"eps out of range", func(c *Config) { c.Breakout.Eps = 3 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.UseMemory = true
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.NoError(t, ValidateSchedule("@hourly"))
	assert.NoError(t, ValidateSchedule("@every 5m"))
	assert.Error(t, ValidateSchedule("* * *"))
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trendradar.yaml")
	yamlData := `
use_memory: true
scheduler:
  schedule: "@every 5m"
aggregation:
  history_periods: 3
  windows:
    - name: 1h
      duration: 1h
breakout:
  eps: 0.45
  flag_policy: clear
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("TRENDRADAR_SCHEDULE", "@every 1m")
	t.Setenv("METRICS_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.UseMemory)
	assert.Equal(t, "@every 1m", cfg.Scheduler.Schedule, "env overrides file")
	assert.Equal(t, ":9999", cfg.Server.MetricsAddr)
	assert.Equal(t, 3, cfg.Aggregation.HistoryPeriods)
	assert.Equal(t, 0.45, cfg.Breakout.Eps)
	assert.Equal(t, FlagPolicyClear, cfg.Breakout.FlagPolicy)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Aggregation.Windows, 1)
	assert.Equal(t, time.Hour, cfg.Aggregation.Windows[0].Duration)

	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.Breakout.MinSamples)
	assert.Equal(t, time.Hour, cfg.Aggregation.PreviousOffset)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFile_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nTRENDRADAR_TEST_A=from-file\nTRENDRADAR_TEST_B = spaced \nnot-a-pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("TRENDRADAR_TEST_A", "from-env")
	t.Setenv("TRENDRADAR_TEST_B", "")

	LoadEnvFile(path)

	assert.Equal(t, "from-env", os.Getenv("TRENDRADAR_TEST_A"))
	assert.Equal(t, "spaced", os.Getenv("TRENDRADAR_TEST_B"))
}
