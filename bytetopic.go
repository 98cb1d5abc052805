package ringbus

var _ Handle = (*ByteTopic)(nil)

// ByteTopic is a topic of opaque byte payloads.
//
// Payloads are copied into per-slot buffers that are reused as the ring wraps,
// so steady-state publishing does not allocate. Values handed back to callers
// are always copies they own.
type ByteTopic struct {
	topic      Topic[[]byte]
	maxPayload int // 0 = unbounded
}

// NewByteTopic creates a standalone byte topic.
func NewByteTopic(name string, capacity int) (*ByteTopic, error) {
	return newByteTopic(name, capacity, 0)
}

func newByteTopic(name string, capacity, maxPayload int) (*ByteTopic, error) {
	ring, err := NewRing[[]byte](capacity)
	if err != nil {
		return nil, err
	}
	return &ByteTopic{
		topic:      Topic[[]byte]{name: name, ring: ring},
		maxPayload: maxPayload,
	}, nil
}

// Publish copies payload into the ring and returns its epoch. An empty payload
// is valid and still takes a slot and an epoch. The only failure is
// ErrPayloadTooLarge when the topic has a payload bound.
func (t *ByteTopic) Publish(payload []byte) (uint64, error) {
	if t.maxPayload > 0 && len(payload) > t.maxPayload {
		return 0, ErrPayloadTooLarge
	}
	t.topic.mu.Lock()
	epoch := t.topic.ring.WriteFunc(func(dst *[]byte) {
		*dst = append((*dst)[:0], payload...)
	})
	t.topic.mu.Unlock()
	return epoch, nil
}

// TryReceive consumes the oldest available payload and returns a copy of it.
func (t *ByteTopic) TryReceive() ([]byte, uint64, bool) {
	return t.ReceiveInto(nil)
}

// ReceiveInto consumes the oldest available payload and appends it to dst.
func (t *ByteTopic) ReceiveInto(dst []byte) ([]byte, uint64, bool) {
	var epoch uint64
	t.topic.mu.Lock()
	ok := t.topic.ring.ReadOldestFunc(func(v *[]byte, e uint64) {
		dst = appendPayload(dst, *v)
		epoch = e
	})
	t.topic.mu.Unlock()
	return dst, epoch, ok
}

// PeekLatest returns a copy of the newest unread payload without consuming it.
func (t *ByteTopic) PeekLatest() ([]byte, uint64, bool) {
	return t.PeekLatestInto(nil)
}

// PeekLatestInto appends the newest unread payload to dst without consuming it.
func (t *ByteTopic) PeekLatestInto(dst []byte) ([]byte, uint64, bool) {
	var epoch uint64
	t.topic.mu.RLock()
	ok := t.topic.ring.PeekNewestFunc(func(v *[]byte, e uint64) {
		dst = appendPayload(dst, *v)
		epoch = e
	})
	t.topic.mu.RUnlock()
	return dst, epoch, ok
}

// Name returns the topic name.
func (t *ByteTopic) Name() string { return t.topic.name }

// Len returns the number of unread payloads. Advisory under concurrent use.
func (t *ByteTopic) Len() int { return t.topic.Len() }

// IsEmpty reports whether Len() == 0.
func (t *ByteTopic) IsEmpty() bool { return t.topic.IsEmpty() }

// Capacity returns the ring depth fixed at creation.
func (t *ByteTopic) Capacity() int { return t.topic.Capacity() }

// LatestEpoch returns the epoch of the last publish, or 0.
func (t *ByteTopic) LatestEpoch() uint64 { return t.topic.LatestEpoch() }

// Stats returns a snapshot of the topic counters.
func (t *ByteTopic) Stats() TopicStats { return t.topic.Stats() }

// MaxPayload returns the payload bound, 0 if unbounded.
func (t *ByteTopic) MaxPayload() int {
	return t.maxPayload
}

// appendPayload never returns nil, so an empty payload reads back as []byte{}.
func appendPayload(dst, p []byte) []byte {
	if dst == nil {
		dst = make([]byte, 0, len(p))
	}
	return append(dst, p...)
}
