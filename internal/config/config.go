// Package config loads tripweave configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Scheduling SchedulingConfig `mapstructure:"scheduling" yaml:"scheduling"`
}

type DatabaseConfig struct {
	// Driver selects the ledger backend: sqlite, postgres, or memory.
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Path     string `mapstructure:"path" yaml:"path"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

type MetricsConfig struct {
	// Addr is the promhttp listen address, e.g. ":9090". Empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type SchedulingConfig struct {
	MinRangeDays int `mapstructure:"min_range_days" yaml:"min_range_days"`
	MaxRangeDays int `mapstructure:"max_range_days" yaml:"max_range_days"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Database:   DatabaseConfig{Driver: "sqlite", Path: "./tripweave.db", Port: 5432, Host: "localhost", User: "postgres", SSLMode: "disable"},
		Metrics:    MetricsConfig{Addr: ""},
		Scheduling: SchedulingConfig{MinRangeDays: 2, MaxRangeDays: 7},
	}
}

// Load reads config from path via viper, applying defaults and env
// overrides (DATABASE_PASSWORD, METRICS_ADDR).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./tripweave.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("scheduling.min_range_days", 2)
	v.SetDefault("scheduling.max_range_days", 7)
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if pw := v.GetString("DATABASE_PASSWORD"); pw != "" {
		cfg.Database.Password = pw
	}
	if addr := v.GetString("METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
