package shm

import (
	"math"
	"unsafe"

	"github.com/aradilov/ringbus/internal/cursor"
)

// Memory layout constants
const (
	// Magic bytes for segment identification
	Magic = "RINGBUS\x00"

	// Current layout version
	Version = uint32(1)

	// HeaderSize is the segment header size; the shared cursor follows it.
	HeaderSize = 128

	// DefaultSlotSize is the payload capacity of one slot. With the 16-byte
	// slot header the default stride is 264 bytes.
	DefaultSlotSize = 244

	// MaxSlotSize bounds the payload capacity of one slot.
	MaxSlotSize = 1 << 20

	slotHeaderSize = 16 // epoch u64, length u32, pad u32
	cursorOffset   = HeaderSize
	slotsOffset    = cursorOffset + cursor.Size
)

// header is the shared segment header at offset 0. Mutable fields other than
// lock are only touched while lock is held.
type header struct {
	magic    [8]byte  // 0x00: Magic
	version  uint32   // 0x08: layout version
	lock     uint32   // 0x0C: pid of the lock owner, 0 = unlocked
	slotSize uint64   // 0x10: payload bytes per slot
	attached int64    // 0x18: processes currently attached
	released uint32   // 0x20: 1 once the last process detached and unlinked the file
	_        uint32   // 0x24
	_        [88]byte // 0x28-0x7F: reserved
}

var _ [HeaderSize - unsafe.Sizeof(header{})]byte // header must fit in HeaderSize

// slotStride returns the distance between consecutive slots.
func slotStride(slotSize uint64) uint64 {
	return slotHeaderSize + (slotSize+7)&^7
}

// segmentSize returns the mapping size for a ring of capacity slots.
func segmentSize(capacity, slotSize uint64) uint64 {
	return slotsOffset + capacity*slotStride(slotSize)
}

// maxCapacity returns the largest ring whose mapping size is addressable.
func maxCapacity(slotSize uint64) uint64 {
	return (math.MaxInt - slotsOffset) / slotStride(slotSize)
}
