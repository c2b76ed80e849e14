// Package config loads daybook configuration: a YAML file describing users,
// their calendar sources and the archiving schedule, with environment
// overrides for deployment-level knobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// CalendarConfig describes a single ICS subscription source.
type CalendarConfig struct {
	// ID is an internal identifier used as the appointment calendar id.
	ID string `yaml:"id"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty"`
}

// UserConfig describes one archived user and their calendars.
type UserConfig struct {
	ID        string           `yaml:"id"`
	Calendars []CalendarConfig `yaml:"calendars"`
}

// RetryConfig bounds collaborator retries.
type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"`
	BaseBackoffMillis int `yaml:"base_backoff_ms"`
	MaxIntervalMillis int `yaml:"max_interval_ms"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone defining day boundaries (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone"`

	// Schedule is a cron expression for scheduled archiving runs.
	Schedule string `yaml:"schedule"`

	// DayOffset is how many days back of today each scheduled run archives.
	// 1 archives yesterday, the default: a day is archived once it is over.
	DayOffset int `yaml:"day_offset"`

	// MaxConcurrentRuns bounds cross-user parallelism of scheduled runs.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`

	// ReportDir is where conflict reports are written. Relative paths are
	// resolved against the base directory.
	ReportDir string `yaml:"report_dir"`

	Retry RetryConfig `yaml:"retry"`

	Users []UserConfig `yaml:"users"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:          "UTC",
		Schedule:          "30 0 * * *",
		DayOffset:         1,
		MaxConcurrentRuns: 4,
		ReportDir:         "reports",
		Retry: RetryConfig{
			MaxAttempts:       4,
			BaseBackoffMillis: 250,
			MaxIntervalMillis: 5000,
		},
	}
}

// Load loads configuration from a YAML file, applying defaults for unset
// fields. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.DayOffset < 0 {
		return fmt.Errorf("day_offset must not be negative")
	}
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1")
	}

	seenUsers := make(map[string]bool)
	for _, u := range c.Users {
		if u.ID == "" {
			return fmt.Errorf("user with empty id")
		}
		if seenUsers[u.ID] {
			return fmt.Errorf("duplicate user id %q", u.ID)
		}
		seenUsers[u.ID] = true

		seenCals := make(map[string]bool)
		for _, cal := range u.Calendars {
			if cal.ID == "" || cal.URL == "" {
				return fmt.Errorf("user %q: calendar needs both id and url", u.ID)
			}
			if seenCals[cal.ID] {
				return fmt.Errorf("user %q: duplicate calendar id %q", u.ID, cal.ID)
			}
			seenCals[cal.ID] = true
		}
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Env holds deployment-level overrides read from the environment with the
// DAYBOOK_ prefix.
type Env struct {
	// BaseDir overrides the default ~/.daybook data directory.
	BaseDir string `envconfig:"BASE_DIR"`

	// ConfigPath overrides the default config file location.
	ConfigPath string `envconfig:"CONFIG_PATH"`
}

// LoadEnv reads environment overrides.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("daybook", &e); err != nil {
		return Env{}, err
	}
	return e, nil
}
