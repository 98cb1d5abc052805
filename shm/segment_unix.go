//go:build unix

package shm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Supported reports whether shared-memory topics work on this platform.
const Supported = true

// createSegment builds a fully initialised segment in a temp file and links it
// to path. The link fails with EEXIST if another process got there first, so an
// attacher never observes a half-initialised segment.
func createSegment(dir, path string, capacity, slotSize uint64) (*segment, error) {
	tmp, err := os.CreateTemp(dir, ".ringbus-*")
	if err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size := segmentSize(capacity, slotSize)
	if err := tmp.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("resize segment: %w", err)
	}
	mem, err := mapFile(tmp, int(size))
	if err != nil {
		return nil, err
	}

	info, err := tmp.Stat()
	if err != nil {
		_ = unmap(mem)
		return nil, fmt.Errorf("stat segment: %w", err)
	}
	seg := newSegment(path, info, mem)
	seg.initialize(capacity, slotSize)

	if err := unix.Link(tmp.Name(), path); err != nil {
		_ = unmap(mem)
		return nil, fmt.Errorf("publish segment %s: %w", path, err)
	}
	return seg, nil
}

// openSegment maps an existing segment file.
func openSegment(path string) (*segment, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment: %w", err)
	}
	if info.Size() < slotsOffset {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrBadSegment, path, info.Size())
	}

	mem, err := mapFile(file, int(info.Size()))
	if err != nil {
		return nil, err
	}
	if err := validate(mem); err != nil {
		_ = unmap(mem)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return newSegment(path, info, mem), nil
}

func mapFile(file *os.File, size int) ([]byte, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return mem, nil
}

func unmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap failed: %w", err)
	}
	return nil
}

// processAlive reports whether pid still exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
