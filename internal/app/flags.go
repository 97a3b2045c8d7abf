package app

import (
	"github.com/spf13/cobra"

	"trendradar/internal/config"
)

// Flags are the command-line overrides shared by every command.
type Flags struct {
	ConfigPath    string
	EnvFile       string
	UseMemory     bool
	PostgresDSN   string
	ClickHouseDSN string
	OutputDir     string
	LogLevel      string
}

// RegisterFlags adds the shared flags to cmd's persistent flag set.
func RegisterFlags(cmd *cobra.Command, f *Flags) {
	fs := cmd.PersistentFlags()
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "YAML config file (default: built-in defaults)")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "Env file loaded before the config")
	fs.BoolVar(&f.UseMemory, "use-memory", false, "Use in-memory stores seeded with demo fixtures")
	fs.StringVar(&f.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string (or POSTGRES_DSN)")
	fs.StringVar(&f.ClickHouseDSN, "clickhouse-dsn", "", "ClickHouse connection string (or CLICKHOUSE_DSN)")
	fs.StringVar(&f.OutputDir, "output-dir", "", "Report output directory (or OUTPUT_DIR)")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error (or LOG_LEVEL)")
}

// LoadConfig loads the env file and config, applies flags the user set and validates.
// Flags left at their zero value do not override the file or environment.
func (f *Flags) LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	if f.EnvFile != "" {
		config.LoadEnvFile(f.EnvFile)
	}

	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("use-memory") {
		cfg.UseMemory = f.UseMemory
	}
	if fs.Changed("postgres-dsn") {
		cfg.Postgres.DSN = f.PostgresDSN
	}
	if fs.Changed("clickhouse-dsn") {
		cfg.ClickHouse.DSN = f.ClickHouseDSN
	}
	if fs.Changed("output-dir") {
		cfg.Report.OutputDir = f.OutputDir
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
