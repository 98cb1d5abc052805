package ringbus

import "sync/atomic"

// Publisher is a write-only view of a topic.
type Publisher struct {
	topic Handle
}

// NewPublisher wraps h.
func NewPublisher(h Handle) *Publisher {
	return &Publisher{topic: h}
}

// Publish forwards to the topic and returns the new epoch.
func (p *Publisher) Publish(payload []byte) (uint64, error) {
	return p.topic.Publish(payload)
}

// TopicName returns the name of the underlying topic.
func (p *Publisher) TopicName() string {
	return p.topic.Name()
}

// Subscriber is a read view of a topic that remembers the last epoch it marked
// as seen, so control loops can cheaply ask whether anything new arrived.
type Subscriber struct {
	topic    Handle
	lastSeen atomic.Uint64
}

// NewSubscriber wraps h. Nothing is marked seen initially.
func NewSubscriber(h Handle) *Subscriber {
	return &Subscriber{topic: h}
}

// TryReceive consumes the oldest available payload.
func (s *Subscriber) TryReceive() ([]byte, uint64, bool) {
	return s.topic.TryReceive()
}

// PeekLatest returns the newest unread payload without consuming it.
func (s *Subscriber) PeekLatest() ([]byte, uint64, bool) {
	return s.topic.PeekLatest()
}

// HasNew reports whether anything was published after the last MarkSeen.
func (s *Subscriber) HasNew() bool {
	return s.topic.LatestEpoch() > s.lastSeen.Load()
}

// MarkSeen records the topic's latest epoch as seen.
func (s *Subscriber) MarkSeen() {
	s.lastSeen.Store(s.topic.LatestEpoch())
}

// LastSeen returns the epoch recorded by the last MarkSeen.
func (s *Subscriber) LastSeen() uint64 {
	return s.lastSeen.Load()
}

// TopicName returns the name of the underlying topic.
func (s *Subscriber) TopicName() string {
	return s.topic.Name()
}
