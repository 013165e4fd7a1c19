package shm

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestCreateWriteReadAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.shm")

	host, err := Create(path, 4, 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer host.Close()

	if host.Size() != 4*2*4 {
		t.Fatalf("Size() = %d, want %d", host.Size(), 4*2*4)
	}

	frame := make([]byte, host.Size())
	for i := range frame {
		frame[i] = byte(i * 7)
	}
	if err := host.CopyIn(frame); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}

	// A second mapping of the same file must observe the pixels.
	peer, err := Open(path, 4, 2)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer peer.Close()

	got := make([]byte, peer.Size())
	if err := peer.CopyOut(got); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Error("frame did not survive the shared mapping")
	}
}

func TestSizeMismatch(t *testing.T) {
	r, err := Create(filepath.Join(t.TempDir(), "frame.shm"), 2, 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer r.Close()

	if err := r.CopyIn(make([]byte, 3)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("CopyIn: got %v, want ErrSizeMismatch", err)
	}
	if err := r.CopyOut(make([]byte, 99)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("CopyOut: got %v, want ErrSizeMismatch", err)
	}
}

func TestOpenRejectsShortRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.shm")
	r, err := Create(path, 2, 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	r.Close()

	if _, err := Open(path, 64, 64); err == nil {
		t.Error("Open succeeded on a region smaller than requested")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r, err := Create(filepath.Join(t.TempDir(), "frame.shm"), 1, 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}
