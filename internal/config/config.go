// Package config loads service configuration.
// Priority: flags > environment > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"trendradar/internal/domain"
)

// Flag reset policies for tokens that drop out of every cluster.
const (
	FlagPolicyRetain = "retain"
	FlagPolicyClear  = "clear"
)

// Config is the full service configuration.
type Config struct {
	Postgres    PostgresConfig    `yaml:"postgres"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	UseMemory   bool              `yaml:"use_memory"` // in-memory stores with demo fixtures
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Breakout    BreakoutConfig    `yaml:"breakout"`
	Categorizer CategorizerConfig `yaml:"categorizer"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Report      ReportConfig      `yaml:"report"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type ClickHouseConfig struct {
	DSN string `yaml:"dsn"`
}

type SchedulerConfig struct {
	Schedule   string `yaml:"schedule" validate:"required,cron"` // cron expression or @every descriptor
	RunOnStart bool   `yaml:"run_on_start"`
}

// WindowConfig is a named trailing window.
type WindowConfig struct {
	Name     string        `yaml:"name" validate:"required"`
	Duration time.Duration `yaml:"duration" validate:"gt=0"`
}

type AggregationConfig struct {
	Windows           []WindowConfig `yaml:"windows" validate:"min=1,unique=Name,dive"`
	HistoryPeriods    int            `yaml:"history_periods" validate:"min=1"`
	PreviousOffset    time.Duration  `yaml:"previous_offset" validate:"gt=0"`
	BreakoutThreshold float64        `yaml:"breakout_threshold" validate:"gt=0,lte=100"`
	MaxParallel       int            `yaml:"max_parallel" validate:"min=1"`
	IncludeRollups    bool           `yaml:"include_rollups"`
}

type BreakoutConfig struct {
	Enabled               bool          `yaml:"enabled"`
	Lookback              time.Duration `yaml:"lookback" validate:"gt=0"`
	MinCohort             int           `yaml:"min_cohort" validate:"min=1"`
	MinClusterSize        int           `yaml:"min_cluster_size" validate:"min=1"`
	Eps                   float64       `yaml:"eps" validate:"gt=0,lte=2"`
	MinSamples            int           `yaml:"min_samples" validate:"min=1"`
	CatchAllCategories    []string      `yaml:"catch_all_categories"`
	FilterKnownCategories bool          `yaml:"filter_known_categories"`
	FlagPolicy            string        `yaml:"flag_policy" validate:"oneof=retain clear"`
}

type CategorizerConfig struct {
	KeywordTablePath  string `yaml:"keyword_table_path"` // empty = built-in table
	RecategorizeOnRun bool   `yaml:"recategorize_on_run"`
}

type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr" validate:"required"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

type ReportConfig struct {
	OutputDir string `yaml:"output_dir" validate:"required"`
	TopN      int    `yaml:"top_n" validate:"min=1"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Schedule:   "@every 15m",
			RunOnStart: true,
		},
		Aggregation: AggregationConfig{
			Windows: []WindowConfig{
				{Name: domain.Window12h, Duration: 12 * time.Hour},
				{Name: domain.Window24h, Duration: 24 * time.Hour},
				{Name: domain.Window7d, Duration: 168 * time.Hour},
			},
			HistoryPeriods:    6,
			PreviousOffset:    time.Hour,
			BreakoutThreshold: 70,
			MaxParallel:       4,
			IncludeRollups:    true,
		},
		Breakout: BreakoutConfig{
			Enabled:               true,
			Lookback:              24 * time.Hour,
			MinCohort:             10,
			MinClusterSize:        3,
			Eps:                   0.6,
			MinSamples:            3,
			CatchAllCategories:    []string{"Miscellaneous"},
			FilterKnownCategories: true,
			FlagPolicy:            FlagPolicyRetain,
		},
		Server: ServerConfig{
			MetricsAddr: ":9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Report: ReportConfig{
			OutputDir: "output",
			TopN:      10,
		},
	}
}

// Load reads defaults, then the YAML file at path (if any), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.ClickHouse.DSN = v
	}
	if v := os.Getenv("TRENDRADAR_SCHEDULE"); v != "" {
		cfg.Scheduler.Schedule = v
	}
	if v := os.Getenv("TRENDRADAR_USE_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.UseMemory = b
		}
	}
	if v := os.Getenv("TRENDRADAR_KEYWORD_TABLE"); v != "" {
		cfg.Categorizer.KeywordTablePath = v
	}
	if v := os.Getenv("TRENDRADAR_FLAG_POLICY"); v != "" {
		cfg.Breakout.FlagPolicy = strings.ToLower(v)
	}
	if v := os.Getenv("TRENDRADAR_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Aggregation.MaxParallel = n
		}
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Report.OutputDir = v
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("cron", validateCron); err != nil {
		return fmt.Errorf("register cron validation: %w", err)
	}

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.UseMemory && (c.Postgres.DSN == "" || c.ClickHouse.DSN == "") {
		return fmt.Errorf("invalid config: postgres and clickhouse DSNs are required unless use_memory is set")
	}
	return nil
}

func validateCron(fl validator.FieldLevel) bool {
	return ValidateSchedule(fl.Field().String()) == nil
}

// ValidateSchedule parses a standard cron expression or descriptor such as "@every 15m".
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// TimeWindows converts the configured windows.
func (c *Config) TimeWindows() []domain.TimeWindow {
	windows := make([]domain.TimeWindow, 0, len(c.Aggregation.Windows))
	for _, w := range c.Aggregation.Windows {
		windows = append(windows, domain.TimeWindow{Name: w.Name, Duration: w.Duration})
	}
	return windows
}

// LoadEnvFile loads KEY=VALUE lines from path into the environment.
// Existing variables are not overridden. A missing file is ignored.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
