// Package config holds the settings of the ringbus command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aradilov/ringbus/shm"
)

// Config is the command configuration, built from defaults, RINGBUS_*
// environment variables and finally flags.
type Config struct {
	Dir         string // segment directory shared by cooperating processes
	SlotSize    int    // payload bytes per slot for topics this process creates
	Capacity    int    // ring depth for topics this process creates
	MetricsAddr string // listen address of the serve command
	Topics      []string
	LogLevel    string
	LogFormat   string
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Dir:         shm.DefaultDir(),
		SlotSize:    shm.DefaultSlotSize,
		Capacity:    16,
		MetricsAddr: ":9464",
		LogFormat:   "text",
	}
}

// FromEnv overlays RINGBUS_* environment variables onto cfg. Malformed numbers
// are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("RINGBUS_DIR"); v != "" {
		cfg.Dir = v
	}
	if v := os.Getenv("RINGBUS_SLOT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SlotSize = n
		}
	}
	if v := os.Getenv("RINGBUS_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Capacity = n
		}
	}
	if v := os.Getenv("RINGBUS_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("RINGBUS_TOPICS"); v != "" {
		cfg.Topics = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Topics = append(cfg.Topics, p)
			}
		}
	}
	if v := os.Getenv("RINGBUS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RINGBUS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// Load returns the defaults overlaid with the environment.
func Load() Config {
	cfg := Default()
	FromEnv(&cfg)
	return cfg
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("dir must not be empty"))
	}
	if c.SlotSize <= 0 || c.SlotSize > shm.MaxSlotSize {
		errs = append(errs, fmt.Errorf("slot size must be in (0, %d], got %d", shm.MaxSlotSize, c.SlotSize))
	}
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be > 0, got %d", c.Capacity))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
