package ringbus

import (
	"github.com/aradilov/ringbus/internal/cursor"
)

// slot is one ring position: the stored value and the epoch it was published with.
type slot[T any] struct {
	epoch uint64 // epoch of the value currently held (0 = never written)
	val   T      // actual value stored in this slot
}

// Ring is a fixed-capacity circular store of the most recent values with
// freshness-biased overflow: a write into a full ring silently overwrites the
// oldest unread entry. Every write is stamped with an epoch that starts at 1 and
// increases by one per write; epochs are never reused.
//
// Ring does no synchronization of its own. Topic and ByteTopic wrap it with a guard.
type Ring[T any] struct {
	cur   cursor.Cursor
	slots []slot[T]
}

// NewRing creates a ring with room for capacity values.
// Returns ErrInvalidCapacity if capacity is not positive.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	r := &Ring[T]{
		slots: make([]slot[T], capacity),
	}
	r.cur.Init(uint64(capacity))
	return r, nil
}

// Write stores v and returns its epoch. Never fails and never blocks.
func (r *Ring[T]) Write(v T) uint64 {
	return r.WriteFunc(func(dst *T) { *dst = v })
}

// WriteFunc is like Write but lets fill update the slot value in place, so
// callers can reuse whatever the slot held before (e.g. a byte buffer).
// The previous value may be one that was never read.
func (r *Ring[T]) WriteFunc(fill func(dst *T)) uint64 {
	idx, epoch, _ := r.cur.Advance()
	s := &r.slots[idx]
	fill(&s.val)
	s.epoch = epoch
	return epoch
}

// ReadOldest removes and returns the oldest value still in the ring.
// Values overwritten before being read are never returned.
// Returns (zero, 0, false) if the ring is empty.
func (r *Ring[T]) ReadOldest() (T, uint64, bool) {
	var zero T
	idx, ok := r.cur.Consume()
	if !ok {
		return zero, 0, false
	}
	s := &r.slots[idx]
	v := s.val
	// drop the reference so the ring does not pin consumed values
	s.val = zero
	return v, s.epoch, true
}

// ReadOldestFunc removes the oldest value and hands it to fn in place.
// The slot keeps its value for reuse by a later WriteFunc; fn must not retain v.
func (r *Ring[T]) ReadOldestFunc(fn func(v *T, epoch uint64)) bool {
	idx, ok := r.cur.Consume()
	if !ok {
		return false
	}
	s := &r.slots[idx]
	fn(&s.val, s.epoch)
	return true
}

// PeekNewest returns the most recently written value still in the ring
// without consuming anything.
func (r *Ring[T]) PeekNewest() (T, uint64, bool) {
	var zero T
	idx, ok := r.cur.Newest()
	if !ok {
		return zero, 0, false
	}
	s := &r.slots[idx]
	return s.val, s.epoch, true
}

// PeekNewestFunc hands the newest value to fn in place; fn must not retain v.
func (r *Ring[T]) PeekNewestFunc(fn func(v *T, epoch uint64)) bool {
	idx, ok := r.cur.Newest()
	if !ok {
		return false
	}
	s := &r.slots[idx]
	fn(&s.val, s.epoch)
	return true
}

// PeekOldest returns the value ReadOldest would return, without consuming it.
func (r *Ring[T]) PeekOldest() (T, uint64, bool) {
	var zero T
	idx, ok := r.cur.Oldest()
	if !ok {
		return zero, 0, false
	}
	s := &r.slots[idx]
	return s.val, s.epoch, true
}

// Len returns the number of unread values.
func (r *Ring[T]) Len() int {
	return int(r.cur.Count)
}

// IsEmpty reports whether Len() == 0.
func (r *Ring[T]) IsEmpty() bool {
	return r.cur.Count == 0
}

// IsFull reports whether the next write overwrites an unread value.
func (r *Ring[T]) IsFull() bool {
	return r.cur.Full()
}

// Capacity returns the fixed number of slots.
func (r *Ring[T]) Capacity() int {
	return int(r.cur.Capacity)
}

// LatestEpoch returns the epoch of the last write, or 0 before the first one.
func (r *Ring[T]) LatestEpoch() uint64 {
	return r.cur.LatestEpoch()
}

// Dropped returns how many values were overwritten before being read.
func (r *Ring[T]) Dropped() uint64 {
	return r.cur.Dropped
}

func (r *Ring[T]) stats() TopicStats {
	return TopicStats{
		Capacity:    int(r.cur.Capacity),
		Len:         int(r.cur.Count),
		Published:   r.cur.Published,
		Received:    r.cur.Received,
		Dropped:     r.cur.Dropped,
		LatestEpoch: r.cur.LatestEpoch(),
	}
}
