package ringbus

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Registry maps topic names to topics. Lookups of the same name converge on one
// topic: the first caller's capacity wins and later capacities are ignored.
// Topics are never removed while the registry is open.
//
// A Registry is created by NewRegistry, shared by everything that needs to
// exchange data, and torn down with Close.
type Registry struct {
	mu     sync.RWMutex
	closed bool
	bytes  map[string]*ByteTopic
	typed  map[string]any // name -> *Topic[T]

	maxPayload int
	log        *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		bytes:      make(map[string]*ByteTopic),
		typed:      make(map[string]any),
		maxPayload: o.maxPayload,
		log:        o.log,
	}
}

// GetByteTopic returns the byte topic registered under name, creating it with
// the given capacity on first use. For an existing topic, capacity is ignored.
// Concurrent callers racing on one name all receive the same *ByteTopic.
func (r *Registry) GetByteTopic(name string, capacity int) (*ByteTopic, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	t, ok := r.bytes[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	// another caller may have won the race between the two locks
	if t, ok := r.bytes[name]; ok {
		return t, nil
	}
	t, err := newByteTopic(name, capacity, r.maxPayload)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", name, err)
	}
	r.bytes[name] = t
	r.log.Debug("byte topic created", "topic", name, "capacity", capacity)
	return t, nil
}

// GetTopic is GetByteTopic for typed topics. Typed and byte topics live in
// separate namespaces. Requesting a name that holds a topic of another element
// type returns ErrTopicTypeMismatch.
func GetTopic[T any](r *Registry, name string, capacity int) (*Topic[T], error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	existing, ok := r.typed[name]
	r.mu.RUnlock()
	if ok {
		return assertTopic[T](name, existing)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if existing, ok := r.typed[name]; ok {
		return assertTopic[T](name, existing)
	}
	t, err := NewTopic[T](name, capacity)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", name, err)
	}
	r.typed[name] = t
	r.log.Debug("typed topic created", "topic", name, "capacity", capacity, "type", fmt.Sprintf("%T", *new(T)))
	return t, nil
}

func assertTopic[T any](name string, existing any) (*Topic[T], error) {
	t, ok := existing.(*Topic[T])
	if !ok {
		return nil, fmt.Errorf("topic %q: %w", name, ErrTopicTypeMismatch)
	}
	return t, nil
}

// Len returns the number of registered topics, byte and typed.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bytes) + len(r.typed)
}

// Names returns the sorted names of all byte topics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.bytes))
	for name := range r.bytes {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Snapshot returns the stats of every byte topic, sorted by name.
func (r *Registry) Snapshot() []TopicStats {
	r.mu.RLock()
	topics := make([]*ByteTopic, 0, len(r.bytes))
	for _, t := range r.bytes {
		topics = append(topics, t)
	}
	r.mu.RUnlock()

	stats := make([]TopicStats, 0, len(topics))
	for _, t := range topics {
		stats = append(stats, t.Stats())
	}
	slices.SortFunc(stats, func(a, b TopicStats) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return stats
}

// Close releases every topic. Later lookups fail with ErrRegistryClosed;
// handles obtained earlier keep working on their own. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	n := len(r.bytes) + len(r.typed)
	clear(r.bytes)
	clear(r.typed)
	r.log.Debug("registry closed", "topics", n)
	return nil
}
