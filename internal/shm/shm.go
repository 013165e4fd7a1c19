// Package shm wraps the file-backed shared pixel region used for zero-copy
// frame transfer between a core and a server on the same machine. The region
// is Width*Height*4 bytes of RGBA8888; the "frame is ready" signal is a
// single byte on the control socket and stays the caller's concern.
package shm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrSizeMismatch is returned when a pixel buffer does not match the mapped
// region size.
var ErrSizeMismatch = errors.New("shm: buffer size does not match region")

// Region is a memory-mapped pixel buffer. Create it on the side that owns
// the file (the server), Open it on the side that attaches (the core);
// either way Close unmaps and releases the handle exactly once.
type Region struct {
	f      *os.File
	data   []byte
	width  int
	height int
}

// Create makes (or truncates) the backing file and maps it read-write.
// Conventionally path lives under /dev/shm so the mapping never touches a
// real disk.
func Create(path string, width, height int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", path, err)
	}
	size := width * height * 4
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate %s to %d: %w", path, size, err)
	}
	return mapRegion(f, width, height)
}

// Open attaches to an existing region created by the peer. The file must be
// at least Width*Height*4 bytes.
func Open(path string, width, height int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	if need := int64(width * height * 4); fi.Size() < need {
		f.Close()
		return nil, fmt.Errorf("shm: region %s is %d bytes, need %d", path, fi.Size(), need)
	}
	return mapRegion(f, width, height)
}

func mapRegion(f *os.File, width, height int) (*Region, error) {
	size := width * height * 4
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %d bytes: %w", size, err)
	}
	return &Region{f: f, data: data, width: width, height: height}, nil
}

// Size returns the mapped byte count.
func (r *Region) Size() int { return len(r.data) }

// CopyIn writes a full frame into the region. The buffer must match the
// region size exactly.
func (r *Region) CopyIn(pixels []byte) error {
	if len(pixels) != len(r.data) {
		return fmt.Errorf("%w: %d vs %d", ErrSizeMismatch, len(pixels), len(r.data))
	}
	copy(r.data, pixels)
	return nil
}

// CopyOut reads the current frame into dst, which must match the region
// size exactly.
func (r *Region) CopyOut(dst []byte) error {
	if len(dst) != len(r.data) {
		return fmt.Errorf("%w: %d vs %d", ErrSizeMismatch, len(dst), len(r.data))
	}
	copy(dst, r.data)
	return nil
}

// Close unmaps the region and closes the backing file. Idempotent.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
