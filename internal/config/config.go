// Package config loads walkoff settings from a yaml file, WALKOFF_* environment
// variables and built-in defaults, in that order of precedence from last to first.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "WALKOFF"

type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Log       LogConfig       `mapstructure:"log"`
}

type DatabaseConfig struct {
	// Driver is sqlite3 or postgres
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type SchedulerConfig struct {
	Timezone     string        `mapstructure:"timezone"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
}

type ExecutorConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	Token          string  `mapstructure:"token"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	Burst          int     `mapstructure:"burst"`
	SlackWebhook   string  `mapstructure:"slack_webhook"`
	DiscordWebhook string  `mapstructure:"discord_webhook"`
	NotifyAlways   bool    `mapstructure:"notify_always"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultDataDir returns WALKOFF_DATA if set, otherwise ~/.walkoff
func DefaultDataDir() (string, error) {
	if dir := os.Getenv(envPrefix + "_DATA"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".walkoff"), nil
}

// Load reads configuration. An empty path searches config.yaml in the data
// directory and the working directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	dataDir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, dataDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dataDir)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite3" {
		cfg.Database.DSN = filepath.Join(cfg.DataDir, "walkoff.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.sync_interval", time.Minute)
	v.SetDefault("scheduler.job_timeout", 30*time.Minute)
	v.SetDefault("executor.endpoint", "")
	v.SetDefault("executor.token", "")
	v.SetDefault("executor.rate_limit", 0.0)
	v.SetDefault("executor.burst", 1)
	v.SetDefault("executor.slack_webhook", "")
	v.SetDefault("executor.discord_webhook", "")
	v.SetDefault("executor.notify_always", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server.addr %q: %w", c.Server.Addr, err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Scheduler.SyncInterval < 0 {
		return fmt.Errorf("scheduler.sync_interval must not be negative")
	}
	return nil
}

// Location returns the scheduler timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
