// Package delta implements the placeholder XOR transform used for
// FlagDelta video payloads. It is pure and stateless: deciding when a delta
// may be sent (never for the first frame of a stream) is the caller's job.
package delta

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrSizeMismatch is returned when the two buffers differ in length. It is a
// caller error and never affects connection state.
var ErrSizeMismatch = errors.New("delta: buffer sizes must match")

// Compute returns a new buffer where each byte is current[i] XOR previous[i].
func Compute(current, previous []byte) ([]byte, error) {
	return xorBuffers(current, previous)
}

// Apply reverses Compute: Apply(Compute(a, b), b) == a for all equal-length
// a and b. The operation is its own inverse; it is named separately because
// that symmetry is a correctness property of the codec, not something the
// caller should have to know.
func Apply(deltaBuf, previous []byte) ([]byte, error) {
	return xorBuffers(deltaBuf, previous)
}

func xorBuffers(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrSizeMismatch, len(a), len(b))
	}
	out := make([]byte, len(a))
	subtle.XORBytes(out, a, b)
	return out, nil
}
