package shm

import "log/slog"

type options struct {
	dir      string
	slotSize uint64
	log      *slog.Logger
}

func defaultOptions() options {
	return options{
		dir:      DefaultDir(),
		slotSize: DefaultSlotSize,
		log:      log,
	}
}

// Option configures a Registry.
type Option func(*options)

// WithDir sets the directory holding segment files. Processes that want to
// share topics must use the same directory.
func WithDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.dir = dir
		}
	}
}

// WithSlotSize sets the payload capacity of each slot for topics this registry
// creates. Topics attached from another process keep their own slot size.
func WithSlotSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.slotSize = uint64(n)
		}
	}
}

// WithLogger sets the logger used for attach and detach events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
