// Package logger provides per-subsystem slog loggers for ringbus.
//
// Levels and format come from RINGBUS_LOG_LEVEL and RINGBUS_LOG_FORMAT:
//
//	var log = logger.Logger("registry")
//	log.Debug("topic created", "topic", name, "capacity", capacity)
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	loggers sync.Map // subsystem -> *slog.Logger
	levels  sync.Map // subsystem -> *slog.LevelVar

	output   io.Writer = os.Stderr
	outputMu sync.RWMutex
)

// dynamicWriter resolves the global output on every write so SetOutput
// affects loggers created before it was called.
type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// Logger returns the logger for subsystem, creating it on first use.
// Repeated calls with the same subsystem return the same instance.
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	lv, _ := levels.LoadOrStore(subsystem, new(slog.LevelVar))
	level := lv.(*slog.LevelVar)
	level.Set(cfg.LevelFor(subsystem))

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(dynamicWriter{}, opts)
	} else {
		h = slog.NewTextHandler(dynamicWriter{}, opts)
	}
	h = h.WithAttrs([]slog.Attr{slog.String("subsystem", subsystem)})

	actual, _ := loggers.LoadOrStore(subsystem, slog.New(h))
	return actual.(*slog.Logger)
}

// SetLevel changes the level of an existing subsystem logger at runtime.
func SetLevel(subsystem string, level slog.Level) {
	if lv, ok := levels.Load(subsystem); ok {
		lv.(*slog.LevelVar).Set(level)
	}
}

// SetGlobalLevel changes the level of every subsystem logger created so far.
func SetGlobalLevel(level slog.Level) {
	levels.Range(func(_, v any) bool {
		v.(*slog.LevelVar).Set(level)
		return true
	})
}

// SetOutput redirects all subsystem loggers, including existing ones, to w.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
