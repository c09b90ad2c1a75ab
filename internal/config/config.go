package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultStartingLineupSize = 11
	DefaultMinBenchSize       = 7
	DefaultFormation          = "1-4-4-2"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type EmailConfig struct {
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

// Enabled reports whether enough is configured to send mail.
func (e EmailConfig) Enabled() bool {
	return e.Region != "" && e.Sender != "" && e.AccessKeyID != "" && e.SecretAccessKey != ""
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		TrustProxy  bool   `yaml:"trust_proxy"`
		SecretKey   string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Auth struct {
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`

	Squad struct {
		StartingLineupSize int    `yaml:"starting_lineup_size"`
		MinBenchSize       int    `yaml:"min_bench_size"`
		DefaultFormation   string `yaml:"default_formation"`
	} `yaml:"squad"`

	Drafts struct {
		AutosaveDebounce string `yaml:"autosave_debounce"`
		Retention        string `yaml:"retention"`
		CleanupCron      string `yaml:"cleanup_cron"`
	} `yaml:"drafts"`

	Reports struct {
		ReminderCron  string `yaml:"reminder_cron"`
		ReminderAfter string `yaml:"reminder_after"`
	} `yaml:"reports"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Email EmailConfig `yaml:"email"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.Email.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = "8h"
	}
	if c.Squad.StartingLineupSize == 0 {
		c.Squad.StartingLineupSize = DefaultStartingLineupSize
	}
	if c.Squad.MinBenchSize == 0 {
		c.Squad.MinBenchSize = DefaultMinBenchSize
	}
	if c.Squad.DefaultFormation == "" {
		c.Squad.DefaultFormation = DefaultFormation
	}
	if c.Drafts.AutosaveDebounce == "" {
		c.Drafts.AutosaveDebounce = "2s"
	}
	if c.Drafts.Retention == "" {
		c.Drafts.Retention = "720h"
	}
	if c.Drafts.CleanupCron == "" {
		c.Drafts.CleanupCron = "0 3 * * *"
	}
	if c.Reports.ReminderCron == "" {
		c.Reports.ReminderCron = "0 * * * *"
	}
	if c.Reports.ReminderAfter == "" {
		c.Reports.ReminderAfter = "24h"
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.App.SecretKey == "" {
		return fmt.Errorf("APP_SECRET_KEY is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	durations := map[string]string{
		"auth.token_ttl":           c.Auth.TokenTTL,
		"drafts.autosave_debounce": c.Drafts.AutosaveDebounce,
		"drafts.retention":         c.Drafts.Retention,
		"reports.reminder_after":   c.Reports.ReminderAfter,
	}
	for field, raw := range durations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s must be a duration: %w", field, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", field)
		}
	}

	crons := map[string]string{
		"drafts.cleanup_cron":   c.Drafts.CleanupCron,
		"reports.reminder_cron": c.Reports.ReminderCron,
	}
	for field, expr := range crons {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s is not a valid cron expression: %w", field, err)
		}
	}

	if c.Squad.StartingLineupSize < 1 {
		return fmt.Errorf("squad.starting_lineup_size must be positive")
	}
	if c.Squad.MinBenchSize < 0 {
		return fmt.Errorf("squad.min_bench_size must be 0 or greater")
	}

	for _, origin := range c.CORS.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("cors.allowed_origins must not contain empty entries")
		}
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// TokenTTL is only meaningful after Validate succeeded.
func (c *Config) TokenTTL() time.Duration {
	return mustDuration(c.Auth.TokenTTL)
}

func (c *Config) AutosaveDebounce() time.Duration {
	return mustDuration(c.Drafts.AutosaveDebounce)
}

func (c *Config) DraftRetention() time.Duration {
	return mustDuration(c.Drafts.Retention)
}

func (c *Config) ReminderAfter() time.Duration {
	return mustDuration(c.Reports.ReminderAfter)
}

func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
