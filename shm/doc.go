// Package shm provides byte topics whose rings live in memory-mapped segment
// files, so that processes on one host can exchange data through them.
//
// Each topic maps to one file under the registry directory (by default
// /dev/shm). The file starts with a fixed header, followed by the ring cursor
// and the slots:
//
//	0x00  header (magic, version, lock, slot size, attach count)
//	0x80  cursor (capacity, positions, epochs, counters)
//	0xC0  slots: epoch u64 | length u32 | pad u32 | payload[slot size]
//
// All mutation happens under a spin lock in the header that records the pid of
// its owner; a lock held by a process that died is taken over.
//
// A Topic satisfies ringbus.Handle, so Publisher and Subscriber work on it
// unchanged.
package shm
