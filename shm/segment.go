package shm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"unsafe"

	"go.uber.org/multierr"

	"github.com/aradilov/ringbus"
	"github.com/aradilov/ringbus/internal/cursor"
)

const (
	filePrefix = "ringbus_"

	goschedEvery    = 64      // reduce runtime.Gosched() frequency in the lock spin
	ownerCheckEvery = 1 << 14 // how often a spinning locker checks the owner is alive

	maxAttachAttempts = 16
	maxEscapedName    = 200
)

var selfPID = uint32(os.Getpid())

// segment is one topic's mapping: header, shared cursor and slots.
type segment struct {
	path     string
	info     fs.FileInfo // identity of the mapped file, to avoid unlinking a successor
	mem      []byte
	hdr      *header
	cur      *cursor.Cursor
	slotSize uint64
	stride   uint64
}

func newSegment(path string, info fs.FileInfo, mem []byte) *segment {
	hdr := (*header)(unsafe.Pointer(&mem[0]))
	return &segment{
		path:     path,
		info:     info,
		mem:      mem,
		hdr:      hdr,
		cur:      (*cursor.Cursor)(unsafe.Pointer(&mem[cursorOffset])),
		slotSize: hdr.slotSize,
		stride:   slotStride(hdr.slotSize),
	}
}

// initialize writes a fresh header and cursor. The mapping is not yet visible
// to other processes.
func (s *segment) initialize(capacity, slotSize uint64) {
	copy(s.hdr.magic[:], Magic)
	s.hdr.version = Version
	s.hdr.slotSize = slotSize
	s.hdr.attached = 1
	s.cur.Init(capacity)
	s.slotSize = slotSize
	s.stride = slotStride(slotSize)
}

// validate checks a mapping produced by another process.
func validate(mem []byte) error {
	if len(mem) < slotsOffset {
		return fmt.Errorf("%w: %d bytes", ErrBadSegment, len(mem))
	}
	hdr := (*header)(unsafe.Pointer(&mem[0]))
	if string(hdr.magic[:]) != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrBadSegment, hdr.magic[:])
	}
	if hdr.version != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrBadSegment, hdr.version, Version)
	}
	if hdr.slotSize == 0 || hdr.slotSize > MaxSlotSize {
		return fmt.Errorf("%w: slot size %d", ErrBadSegment, hdr.slotSize)
	}
	cur := (*cursor.Cursor)(unsafe.Pointer(&mem[cursorOffset]))
	if cur.Capacity == 0 {
		return fmt.Errorf("%w: zero capacity", ErrBadSegment)
	}
	if cur.Capacity > (uint64(len(mem))-slotsOffset)/slotStride(hdr.slotSize) {
		return fmt.Errorf("%w: capacity %d does not fit %d bytes", ErrBadSegment, cur.Capacity, len(mem))
	}
	if want := segmentSize(cur.Capacity, hdr.slotSize); uint64(len(mem)) != want {
		return fmt.Errorf("%w: size %d, want %d", ErrBadSegment, len(mem), want)
	}
	return nil
}

// read returns the payload and epoch held in slot idx. A length word larger
// than the slot means something other than a topic wrote to the mapping; the
// entry is reported as absent.
func (s *segment) read(idx uint64) ([]byte, uint64, bool) {
	epoch, length, data := s.slot(idx)
	if uint64(*length) > s.slotSize {
		log.Warn("corrupt slot skipped", "segment", s.path, "slot", idx, "length", *length)
		return nil, 0, false
	}
	return data[:*length], *epoch, true
}

// slot returns views of slot idx: its epoch, its payload length and its payload area.
func (s *segment) slot(idx uint64) (*uint64, *uint32, []byte) {
	off := slotsOffset + idx*s.stride
	epoch := (*uint64)(unsafe.Pointer(&s.mem[off]))
	length := (*uint32)(unsafe.Pointer(&s.mem[off+8]))
	data := s.mem[off+slotHeaderSize : off+slotHeaderSize+s.slotSize]
	return epoch, length, data
}

// lock acquires the inter-process guard. Hold times are bounded by one slot
// copy, so spinning is cheap. A lock left behind by a dead process is taken over.
func (s *segment) lock() {
	var spins uint32
	for {
		if atomic.CompareAndSwapUint32(&s.hdr.lock, 0, selfPID) {
			return
		}
		spins++
		if spins%goschedEvery == 0 {
			runtime.Gosched()
		}
		if spins%ownerCheckEvery == 0 {
			owner := atomic.LoadUint32(&s.hdr.lock)
			if owner != 0 && owner != selfPID && !processAlive(int(owner)) &&
				atomic.CompareAndSwapUint32(&s.hdr.lock, owner, selfPID) {
				log.Warn("took over lock of dead process", "segment", s.path, "owner", owner)
				return
			}
		}
	}
}

func (s *segment) unlock() {
	atomic.StoreUint32(&s.hdr.lock, 0)
}

// join registers one more attached process. It fails if the last process
// detached after we opened the file.
func (s *segment) join() bool {
	s.lock()
	defer s.unlock()
	if s.hdr.released != 0 {
		return false
	}
	s.hdr.attached++
	return true
}

// detach unregisters this mapping. The last process to detach unlinks the file.
func (s *segment) detach() error {
	var err error
	s.lock()
	s.hdr.attached--
	if s.hdr.attached <= 0 {
		s.hdr.released = 1
		err = s.unlink()
	}
	s.unlock()
	return multierr.Append(err, unmap(s.mem))
}

// unlink removes the segment file if it still is the file we mapped.
func (s *segment) unlink() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !os.SameFile(info, s.info) {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// attach opens the segment for name, creating it with the given geometry if it
// does not exist. Geometry of an existing segment wins over the arguments.
func attach(dir, name string, capacity, slotSize uint64) (seg *segment, created bool, err error) {
	path := segmentPath(dir, name)
	for attempt := 0; attempt < maxAttachAttempts; attempt++ {
		seg, err = openSegment(path)
		if err == nil {
			if seg.join() {
				return seg, false, nil
			}
			// released between open and join, start over
			_ = unmap(seg.mem)
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, err
		}
		if capacity == 0 {
			return nil, false, ringbus.ErrInvalidCapacity
		}
		if limit := maxCapacity(slotSize); capacity > limit {
			return nil, false, fmt.Errorf("%w: %d slots of %d bytes, at most %d",
				ringbus.ErrInvalidCapacity, capacity, slotSize, limit)
		}

		seg, err = createSegment(dir, path, capacity, slotSize)
		if err == nil {
			return seg, true, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, false, err
		}
		// another process won the race, attach to its segment
	}
	return nil, false, fmt.Errorf("attach %s: %w", path, errAttachContention)
}

// segmentPath maps a topic name to a file under dir.
func segmentPath(dir, name string) string {
	escaped := url.PathEscape(name)
	if len(escaped) > maxEscapedName {
		sum := sha256.Sum256([]byte(name))
		escaped = hex.EncodeToString(sum[:])
	}
	return filepath.Join(dir, filePrefix+escaped)
}

// DefaultDir returns /dev/shm when available and the temp directory otherwise.
func DefaultDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Remove unlinks the segment of name under dir. Processes still attached keep
// their mapping; later attaches create a fresh segment.
func Remove(dir, name string) error {
	err := os.Remove(segmentPath(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
