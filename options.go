package ringbus

import (
	"log/slog"

	"github.com/aradilov/ringbus/internal/logger"
)

type options struct {
	log        *slog.Logger
	maxPayload int
}

func defaultOptions() options {
	return options{
		log: logger.Logger("registry"),
	}
}

// Option configures a Registry.
type Option func(*options)

// WithLogger sets the logger used for topic lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMaxPayload bounds the size of payloads accepted by byte topics created by
// the registry. Zero or negative means unbounded.
func WithMaxPayload(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.maxPayload = n
	}
}
