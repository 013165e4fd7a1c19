package conn

import (
	"fmt"

	"github.com/perun-emu/perun-go/internal/protocol"
)

// ErrOversizedPacket is returned when a buffered header claims a payload
// larger than protocol.MaxPayloadSize. The stream cannot be resynchronized
// past a bad length, so the connection treats it as fatal.
var ErrOversizedPacket = fmt.Errorf("conn: packet exceeds maximum payload size")

// assembler is the inbound byte accumulator. Transport reads are appended in
// arrival order and complete header+payload units are extracted from the
// front, FIFO, with no reordering. A partial unit stays buffered until the
// missing bytes arrive; the result is independent of how the stream was
// chunked by the transport.
//
// It is exclusively owned by one connection's Receive path and needs no
// locking.
type assembler struct {
	buf []byte
}

// feed appends freshly read transport bytes.
func (a *assembler) feed(data []byte) {
	a.buf = append(a.buf, data...)
}

// buffered reports how many bytes are waiting, complete or not.
func (a *assembler) buffered() int {
	return len(a.buf)
}

// next extracts one complete packet from the front of the accumulator.
// It returns (nil, nil) while fewer than a full header+payload is buffered.
// A header that fails to decode, or one claiming more than MaxPayloadSize,
// is a protocol violation: the error is returned and the caller is expected
// to close the connection, since the byte stream is no longer trustworthy.
func (a *assembler) next() (*protocol.Packet, error) {
	if len(a.buf) < protocol.HeaderSize {
		return nil, nil
	}

	h, err := protocol.DecodeHeader(a.buf[:protocol.HeaderSize])
	if err != nil {
		return nil, err
	}
	if h.Length > protocol.MaxPayloadSize {
		return nil, fmt.Errorf("%w: header claims %d bytes", ErrOversizedPacket, h.Length)
	}

	total := protocol.HeaderSize + int(h.Length)
	if len(a.buf) < total {
		return nil, nil
	}

	payload := make([]byte, h.Length)
	copy(payload, a.buf[protocol.HeaderSize:total])

	// Shift the remainder down instead of re-slicing so the accumulator does
	// not pin the whole history of the stream.
	rest := copy(a.buf, a.buf[total:])
	a.buf = a.buf[:rest]

	return &protocol.Packet{Header: h, Payload: payload}, nil
}

// reset drops all buffered bytes. Used on close.
func (a *assembler) reset() {
	a.buf = nil
}
