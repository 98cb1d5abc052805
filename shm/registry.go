package shm

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/aradilov/ringbus"
)

// Registry resolves topic names to shared segments under one directory.
// Registries in different processes that use the same directory share topics
// by name; the first process to create a topic fixes its capacity and slot size.
//
// A segment file is removed when the last attached registry closes.
type Registry struct {
	dir      string
	slotSize uint64
	log      *slog.Logger

	group singleflight.Group

	mu     sync.RWMutex
	closed bool
	topics map[string]*Topic
}

// NewRegistry prepares a registry rooted at the configured directory.
func NewRegistry(opts ...Option) (*Registry, error) {
	if !Supported {
		return nil, ErrUnsupported
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.slotSize > MaxSlotSize {
		return nil, fmt.Errorf("slot size %d exceeds %d", o.slotSize, MaxSlotSize)
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil, fmt.Errorf("segment dir: %w", err)
	}
	return &Registry{
		dir:      o.dir,
		slotSize: o.slotSize,
		log:      o.log,
		topics:   make(map[string]*Topic),
	}, nil
}

// Dir returns the directory holding the segment files.
func (r *Registry) Dir() string {
	return r.dir
}

// GetByteTopic attaches to the topic registered under name, creating its
// segment with the given capacity if no process has yet. For an existing
// segment, capacity is ignored.
func (r *Registry) GetByteTopic(name string, capacity int) (*Topic, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ringbus.ErrRegistryClosed
	}
	t, ok := r.topics[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		t, ok := r.topics[name]
		r.mu.RUnlock()
		if ok {
			return t, nil
		}

		var want uint64
		if capacity > 0 {
			want = uint64(capacity)
		}
		seg, created, err := attach(r.dir, name, want, r.slotSize)
		if err != nil {
			return nil, fmt.Errorf("attach topic %q: %w", name, err)
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, multierr.Append(ringbus.ErrRegistryClosed, seg.detach())
		}
		t = newTopic(name, seg)
		r.topics[name] = t
		r.mu.Unlock()

		r.log.Debug("shared topic attached", "topic", name, "created", created,
			"capacity", seg.cur.Capacity, "slot_size", seg.slotSize, "path", seg.path)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Topic), nil
}

// Len returns the number of topics this registry is attached to.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// Names returns the sorted names of the attached topics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Snapshot returns the stats of every attached topic, sorted by name.
func (r *Registry) Snapshot() []ringbus.TopicStats {
	r.mu.RLock()
	topics := make([]*Topic, 0, len(r.topics))
	for _, t := range r.topics {
		topics = append(topics, t)
	}
	r.mu.RUnlock()

	stats := make([]ringbus.TopicStats, 0, len(topics))
	for _, t := range topics {
		stats = append(stats, t.Stats())
	}
	slices.SortFunc(stats, func(a, b ringbus.TopicStats) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return stats
}

// Close detaches from every topic. Topics whose last attached process this
// was have their segment files removed. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	topics := make([]*Topic, 0, len(r.topics))
	for _, t := range r.topics {
		topics = append(topics, t)
	}
	clear(r.topics)
	r.mu.Unlock()

	var err error
	for _, t := range topics {
		err = multierr.Append(err, t.close())
	}
	r.log.Debug("shared registry closed", "topics", len(topics), "dir", r.dir)
	return err
}
