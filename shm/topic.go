package shm

import (
	"sync"

	"github.com/aradilov/ringbus"
)

var _ ringbus.Handle = (*Topic)(nil)

// Topic is a byte topic whose ring lives in a shared segment. Every process
// attached to the segment sees the same epochs, the same unread entries and
// the same counters.
//
// Payloads are bounded by the segment's slot size.
type Topic struct {
	name string

	mu  sync.RWMutex // guards seg against detach
	seg *segment
}

func newTopic(name string, seg *segment) *Topic {
	return &Topic{name: name, seg: seg}
}

// Name returns the topic name.
func (t *Topic) Name() string {
	return t.name
}

// Publish copies payload into the shared ring and returns its epoch.
func (t *Topic) Publish(payload []byte) (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seg := t.seg
	if seg == nil {
		return 0, ErrClosed
	}
	if uint64(len(payload)) > seg.slotSize {
		return 0, ringbus.ErrPayloadTooLarge
	}

	seg.lock()
	idx, epoch, _ := seg.cur.Advance()
	slotEpoch, length, data := seg.slot(idx)
	copy(data, payload)
	*length = uint32(len(payload))
	*slotEpoch = epoch
	seg.unlock()
	return epoch, nil
}

// TryReceive consumes the oldest unread payload, across all attached processes.
func (t *Topic) TryReceive() ([]byte, uint64, bool) {
	return t.ReceiveInto(nil)
}

// ReceiveInto consumes the oldest unread payload and appends it to dst.
func (t *Topic) ReceiveInto(dst []byte) ([]byte, uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seg := t.seg
	if seg == nil {
		return dst, 0, false
	}

	seg.lock()
	defer seg.unlock()
	idx, ok := seg.cur.Consume()
	if !ok {
		return dst, 0, false
	}
	payload, epoch, ok := seg.read(idx)
	if !ok {
		return dst, 0, false
	}
	return appendPayload(dst, payload), epoch, true
}

// PeekLatest returns a copy of the newest unread payload without consuming it.
func (t *Topic) PeekLatest() ([]byte, uint64, bool) {
	return t.PeekLatestInto(nil)
}

// PeekLatestInto appends the newest unread payload to dst without consuming it.
func (t *Topic) PeekLatestInto(dst []byte) ([]byte, uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seg := t.seg
	if seg == nil {
		return dst, 0, false
	}

	seg.lock()
	defer seg.unlock()
	idx, ok := seg.cur.Newest()
	if !ok {
		return dst, 0, false
	}
	payload, epoch, ok := seg.read(idx)
	if !ok {
		return dst, 0, false
	}
	return appendPayload(dst, payload), epoch, true
}

// Len returns the number of unread payloads. Advisory under concurrent use.
func (t *Topic) Len() int {
	return t.Stats().Len
}

// IsEmpty reports whether Len() == 0.
func (t *Topic) IsEmpty() bool {
	return t.Len() == 0
}

// Capacity returns the ring depth chosen by the process that created the segment.
func (t *Topic) Capacity() int {
	return t.Stats().Capacity
}

// LatestEpoch returns the epoch of the last publish from any process, or 0.
func (t *Topic) LatestEpoch() uint64 {
	return t.Stats().LatestEpoch
}

// SlotSize returns the largest payload the topic accepts.
func (t *Topic) SlotSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.seg == nil {
		return 0
	}
	return int(t.seg.slotSize)
}

// Stats returns the shared counters. A closed topic reports only its name.
func (t *Topic) Stats() ringbus.TopicStats {
	st := ringbus.TopicStats{Name: t.name}

	t.mu.RLock()
	defer t.mu.RUnlock()
	seg := t.seg
	if seg == nil {
		return st
	}

	seg.lock()
	cur := *seg.cur
	seg.unlock()

	st.Capacity = int(cur.Capacity)
	st.Len = int(cur.Count)
	st.Published = cur.Published
	st.Received = cur.Received
	st.Dropped = cur.Dropped
	st.LatestEpoch = cur.LatestEpoch()
	return st
}

// close detaches from the segment. Later calls see ErrClosed.
func (t *Topic) close() error {
	t.mu.Lock()
	seg := t.seg
	t.seg = nil
	t.mu.Unlock()
	if seg == nil {
		return nil
	}
	return seg.detach()
}

func appendPayload(dst, p []byte) []byte {
	if dst == nil {
		dst = make([]byte, 0, len(p))
	}
	return append(dst, p...)
}
