package ringbus

import "errors"

var (
	// ErrInvalidCapacity is returned when a topic is created with a non-positive depth.
	ErrInvalidCapacity = errors.New("ringbus: capacity must be > 0")
	// ErrPayloadTooLarge is returned by Publish when the payload exceeds the configured bound.
	ErrPayloadTooLarge = errors.New("ringbus: payload too large")
	// ErrRegistryClosed is returned by lookups on a closed registry.
	ErrRegistryClosed = errors.New("ringbus: registry closed")
	// ErrTopicTypeMismatch is returned when a typed topic is requested with a
	// different element type than the one it was created with.
	ErrTopicTypeMismatch = errors.New("ringbus: topic type mismatch")
)
