package shm

import (
	"errors"

	"github.com/aradilov/ringbus/internal/logger"
)

var (
	// ErrClosed is returned by operations on a topic whose registry was closed.
	ErrClosed = errors.New("shm: topic closed")
	// ErrBadSegment is returned when a segment file has an unexpected layout.
	ErrBadSegment = errors.New("shm: invalid segment")
	// ErrUnsupported is returned on platforms without shared-memory support.
	ErrUnsupported = errors.New("shm: not supported on this platform")

	errAttachContention = errors.New("shm: segment kept disappearing while attaching")
)

var log = logger.Logger("shm")
