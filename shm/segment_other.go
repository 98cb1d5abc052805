//go:build !unix

package shm

import "os"

// Supported reports whether shared-memory topics work on this platform.
const Supported = false

func createSegment(dir, path string, capacity, slotSize uint64) (*segment, error) {
	return nil, ErrUnsupported
}

func openSegment(path string) (*segment, error) {
	return nil, ErrUnsupported
}

func mapFile(file *os.File, size int) ([]byte, error) {
	return nil, ErrUnsupported
}

func unmap(mem []byte) error {
	return nil
}

func processAlive(pid int) bool {
	return true
}
