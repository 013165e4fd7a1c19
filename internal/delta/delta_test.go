package delta

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"
)

// TestSymmetry verifies Apply(Compute(a, b), b) == a for random equal-length
// buffers, the defining property of the codec.
func TestSymmetry(t *testing.T) {
	sizes := []int{0, 1, 4, 255, 4096, 64 * 32 * 4}

	for _, size := range sizes {
		current := make([]byte, size)
		previous := make([]byte, size)
		for i := range current {
			current[i] = byte(rand.IntN(256))
			previous[i] = byte(rand.IntN(256))
		}

		d, err := Compute(current, previous)
		if err != nil {
			t.Fatalf("Compute failed for size %d: %v", size, err)
		}
		if len(d) != size {
			t.Fatalf("delta length %d, want %d", len(d), size)
		}

		restored, err := Apply(d, previous)
		if err != nil {
			t.Fatalf("Apply failed for size %d: %v", size, err)
		}
		if !bytes.Equal(restored, current) {
			t.Errorf("round trip mismatch for size %d", size)
		}
	}
}

// TestIdenticalFramesProduceZeroDelta pins the XOR semantics: equal inputs
// yield an all-zero delta.
func TestIdenticalFramesProduceZeroDelta(t *testing.T) {
	frame := []byte{1, 2, 3, 4, 250, 251, 252, 253}
	d, err := Compute(frame, frame)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	for i, b := range d {
		if b != 0 {
			t.Fatalf("delta[%d] = %d, want 0", i, b)
		}
	}
}

func TestSizeMismatch(t *testing.T) {
	if _, err := Compute(make([]byte, 4), make([]byte, 8)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Compute: got %v, want ErrSizeMismatch", err)
	}
	if _, err := Apply(make([]byte, 8), make([]byte, 4)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Apply: got %v, want ErrSizeMismatch", err)
	}
}

// TestInputsNotMutated verifies the codec allocates its result instead of
// writing into either argument.
func TestInputsNotMutated(t *testing.T) {
	current := []byte{0xAA, 0xBB}
	previous := []byte{0x11, 0x22}
	if _, err := Compute(current, previous); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if current[0] != 0xAA || previous[0] != 0x11 {
		t.Error("Compute mutated an input buffer")
	}
}
