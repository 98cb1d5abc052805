// Package cursor holds the index-and-count bookkeeping of a freshness-biased
// ring. It is shared by the in-process ring and the shared-memory segment,
// so Cursor is a fixed layout of uint64 words that may live inside a mapping.
//
// A Cursor is not safe for concurrent use; callers hold their own guard.
package cursor

// Size is the in-memory size of a Cursor in bytes.
const Size = 64

// Cursor tracks the circular positions of a ring of Capacity slots.
//
// Occupied slots run from Read (oldest) to Write-1 (newest), modulo Capacity,
// and hold Count entries whose epochs increase in that order.
type Cursor struct {
	Capacity  uint64
	Write     uint64 // next slot to be written
	Read      uint64 // oldest unread slot
	Count     uint64 // 0 <= Count <= Capacity
	NextEpoch uint64 // epoch assigned by the next Advance, starts at 1
	Published uint64
	Received  uint64
	Dropped   uint64 // entries overwritten before they were read
}

// Init resets c to an empty ring of the given capacity.
// Capacity must be > 0.
func (c *Cursor) Init(capacity uint64) {
	*c = Cursor{
		Capacity:  capacity,
		NextEpoch: 1,
	}
}

func (c *Cursor) next(i uint64) uint64 {
	i++
	if i == c.Capacity {
		return 0
	}
	return i
}

// Advance reserves the slot for the next write and issues its epoch.
// If the ring is full, the oldest unread entry lives in the returned slot:
// the read position moves past it and overwrote is true.
func (c *Cursor) Advance() (idx, epoch uint64, overwrote bool) {
	idx = c.Write
	epoch = c.NextEpoch
	c.NextEpoch++
	c.Published++

	if c.Count == c.Capacity {
		// full => Read == Write, the slot we are about to reuse is the oldest one
		c.Read = c.next(c.Read)
		c.Dropped++
		overwrote = true
	} else {
		c.Count++
	}
	c.Write = c.next(c.Write)
	return idx, epoch, overwrote
}

// Consume removes the oldest entry from the logical queue and returns its slot.
// Returns false if the ring is empty.
func (c *Cursor) Consume() (uint64, bool) {
	if c.Count == 0 {
		return 0, false
	}
	idx := c.Read
	c.Read = c.next(c.Read)
	c.Count--
	c.Received++
	return idx, true
}

// Oldest returns the slot Consume would return, without consuming it.
func (c *Cursor) Oldest() (uint64, bool) {
	if c.Count == 0 {
		return 0, false
	}
	return c.Read, true
}

// Newest returns the slot of the most recent write still in the ring.
func (c *Cursor) Newest() (uint64, bool) {
	if c.Count == 0 {
		return 0, false
	}
	if c.Write == 0 {
		return c.Capacity - 1, true
	}
	return c.Write - 1, true
}

// LatestEpoch returns the last epoch issued, or 0 if nothing was written.
func (c *Cursor) LatestEpoch() uint64 {
	return c.NextEpoch - 1
}

// Full reports whether the next Advance will overwrite an unread entry.
func (c *Cursor) Full() bool {
	return c.Count == c.Capacity
}
