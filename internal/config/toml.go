// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	View    ViewConfig    `toml:"view"`
	Fit     FitConfig     `toml:"fit"`
	History HistoryConfig `toml:"history"`
	Fetch   FetchConfig   `toml:"fetch"`
	Watch   WatchConfig   `toml:"watch"`
}

// ViewConfig maps viewer settings.
type ViewConfig struct {
	Height     *int     `toml:"height"`
	PanStep    *float64 `toml:"pan-step"`
	ZoomFactor *float64 `toml:"zoom-factor"`
	Color      *bool    `toml:"color"`
	ExportDir  *string  `toml:"export-dir"`
}

// FitConfig maps optimizer settings.
type FitConfig struct {
	Optimizer *string  `toml:"optimizer"`
	MaxIter   *int     `toml:"max-iter"`
	FTol      *float64 `toml:"ftol"`
	XTol      *float64 `toml:"xtol"`
	GTol      *float64 `toml:"gtol"`
}

// HistoryConfig maps fit history storage settings.
type HistoryConfig struct {
	Driver   *string `toml:"driver"`
	DSN      *string `toml:"dsn"`
	Disabled *bool   `toml:"disabled"`
}

// FetchConfig maps remote source settings.
type FetchConfig struct {
	Timeout       *string `toml:"timeout"`
	RedisAddr     *string `toml:"redis-addr"`
	RedisPassword *string `toml:"redis-password"`
	RedisDB       *int    `toml:"redis-db"`
	CacheTTL      *string `toml:"cache-ttl"`
}

// WatchConfig maps scheduled refit settings.
type WatchConfig struct {
	Schedule *string `toml:"schedule"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	for name, v := range map[string]*string{
		"fetch.timeout":   c.Fetch.Timeout,
		"fetch.cache-ttl": c.Fetch.CacheTTL,
	} {
		if _, err := ParseDuration(v, 0); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Fit.Optimizer != nil {
		switch *c.Fit.Optimizer {
		case "lm", "bfgs":
		default:
			return fmt.Errorf("invalid fit.optimizer %q (want lm or bfgs)", *c.Fit.Optimizer)
		}
	}
	if c.History.Driver != nil {
		switch *c.History.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("invalid history.driver %q (want sqlite or postgres)", *c.History.Driver)
		}
	}
	return nil
}

// ParseDuration parses an optional duration string, returning fallback when
// it is unset.
func ParseDuration(value *string, fallback time.Duration) (time.Duration, error) {
	if value == nil || *value == "" {
		return fallback, nil
	}
	return time.ParseDuration(*value)
}
