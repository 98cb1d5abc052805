package ringbus

import (
	"sync"
)

// TopicStats is a point-in-time view of one topic.
type TopicStats struct {
	Name        string
	Capacity    int
	Len         int
	Published   uint64
	Received    uint64
	Dropped     uint64 // overwritten before being read
	LatestEpoch uint64
}

// Handle is the byte-topic API shared by in-process and shared-memory topics.
// Binding layers program against it.
type Handle interface {
	Name() string
	Publish(payload []byte) (uint64, error)
	TryReceive() ([]byte, uint64, bool)
	PeekLatest() ([]byte, uint64, bool)
	Len() int
	IsEmpty() bool
	Capacity() int
	LatestEpoch() uint64
	Stats() TopicStats
}

// Topic is a named channel of values of type T backed by one Ring.
// All methods are safe for concurrent use and return without waiting for
// producers or consumers.
type Topic[T any] struct {
	name string
	mu   sync.RWMutex
	ring *Ring[T]
}

// NewTopic creates a standalone topic. Most callers get topics from a Registry.
func NewTopic[T any](name string, capacity int) (*Topic[T], error) {
	ring, err := NewRing[T](capacity)
	if err != nil {
		return nil, err
	}
	return &Topic[T]{name: name, ring: ring}, nil
}

// Name returns the topic name.
func (t *Topic[T]) Name() string {
	return t.name
}

// Publish stores v and returns its epoch. Once Publish returns, v is visible to
// every other caller of this topic.
func (t *Topic[T]) Publish(v T) uint64 {
	t.mu.Lock()
	epoch := t.ring.Write(v)
	t.mu.Unlock()
	return epoch
}

// TryReceive consumes the oldest available value. Each value is delivered to at
// most one caller.
func (t *Topic[T]) TryReceive() (T, uint64, bool) {
	t.mu.Lock()
	v, epoch, ok := t.ring.ReadOldest()
	t.mu.Unlock()
	return v, epoch, ok
}

// PeekLatest returns the newest unread value without consuming it.
func (t *Topic[T]) PeekLatest() (T, uint64, bool) {
	t.mu.RLock()
	v, epoch, ok := t.ring.PeekNewest()
	t.mu.RUnlock()
	return v, epoch, ok
}

// Len returns the number of unread values. Advisory under concurrent use.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	n := t.ring.Len()
	t.mu.RUnlock()
	return n
}

// IsEmpty reports whether Len() == 0.
func (t *Topic[T]) IsEmpty() bool {
	return t.Len() == 0
}

// Capacity returns the ring depth fixed at creation.
func (t *Topic[T]) Capacity() int {
	return t.ring.Capacity()
}

// LatestEpoch returns the epoch of the last publish, or 0.
func (t *Topic[T]) LatestEpoch() uint64 {
	t.mu.RLock()
	e := t.ring.LatestEpoch()
	t.mu.RUnlock()
	return e
}

// Stats returns a snapshot of the topic counters.
func (t *Topic[T]) Stats() TopicStats {
	t.mu.RLock()
	st := t.ring.stats()
	t.mu.RUnlock()
	st.Name = t.name
	return st
}
