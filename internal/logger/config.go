package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format is the log output encoding.
type Format int

const (
	// FormatText writes logfmt-style lines (default).
	FormatText Format = iota
	// FormatJSON writes one JSON object per line.
	FormatJSON
)

// Config holds the logging configuration read from the environment.
type Config struct {
	DefaultLevel    slog.Level
	SubsystemLevels map[string]slog.Level
	Format          Format
}

// LevelFor returns the level configured for subsystem.
func (c *Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	configCache *Config
	configOnce  sync.Once
	configMu    sync.RWMutex
)

// ConfigFromEnv returns the active configuration. The environment is parsed
// once and cached until Configure replaces it.
//
//	RINGBUS_LOG_LEVEL   subsystem=level,...,default   e.g. shm=debug,warn
//	RINGBUS_LOG_FORMAT  text | json
func ConfigFromEnv() *Config {
	configOnce.Do(func() {
		cfg := ParseConfig(os.Getenv("RINGBUS_LOG_LEVEL"), os.Getenv("RINGBUS_LOG_FORMAT"))
		configMu.Lock()
		configCache = cfg
		configMu.Unlock()
	})
	configMu.RLock()
	defer configMu.RUnlock()
	return configCache
}

// Configure replaces the active configuration, e.g. with levels given on the
// command line. Existing loggers take their new level immediately, loggers
// created later start at it. The output format of existing loggers is kept.
func Configure(cfg *Config) {
	ConfigFromEnv()
	configMu.Lock()
	configCache = cfg
	configMu.Unlock()

	levels.Range(func(k, v any) bool {
		v.(*slog.LevelVar).Set(cfg.LevelFor(k.(string)))
		return true
	})
}

// ParseConfig builds a Config from a level spec and a format name.
// Unknown level names and formats are ignored.
func ParseConfig(levels, format string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if subsystem, name, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(name); ok {
				cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			cfg.DefaultLevel = level
		}
	}

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		cfg.Format = FormatJSON
	}
	return cfg
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig drops the cached environment configuration. Tests only.
func ResetConfig() {
	configMu.Lock()
	configOnce = sync.Once{}
	configCache = nil
	configMu.Unlock()
}
