// Package handshake builds and parses the Perun handshake exchange that
// precedes all framed packets: a 15-byte client hello, answered by either an
// "OK" grant or an "ERROR" rejection. Both sides of the exchange live here;
// the server half is what test peers and embedding servers use to answer a
// core.
package handshake

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/perun-emu/perun-go/internal/protocol"
)

// MagicHello opens every client hello.
const MagicHello = "PERUN_HELLO"

// HelloSize is the fixed size of the client hello: magic + version + caps.
const HelloSize = len(MagicHello) + 4

var (
	ErrTruncatedResponse = errors.New("handshake: response truncated")
	ErrInvalidResponse   = errors.New("handshake: response not recognized")
	ErrBadHello          = errors.New("handshake: malformed hello")
	ErrVersionMismatch   = errors.New("handshake: unsupported protocol version")
)

// RejectedError carries the human-readable message of an ERROR response.
// It is fatal: a connection that sees one never reaches Ready.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("handshake: rejected by peer: %s", e.Message)
}

// Result is the outcome of a successful exchange. Caps is the set the server
// granted, which the client must use as-is; requested bits are not implied.
type Result struct {
	Version uint16
	Caps    protocol.Capabilities
}

// Hello builds the client hello: MagicHello, version, requested capabilities,
// all big-endian. 15 bytes total.
func Hello(version uint16, requested protocol.Capabilities) []byte {
	buf := make([]byte, 0, HelloSize)
	buf = append(buf, MagicHello...)
	buf = binary.BigEndian.AppendUint16(buf, version)
	buf = binary.BigEndian.AppendUint16(buf, uint16(requested))
	return buf
}

// ParseResponse classifies a server response by its leading bytes.
//
// "OK" + version + granted caps is a success. "ERROR" + message (trailing
// NULs stripped) is a rejection reported as *RejectedError. Anything else is
// ErrInvalidResponse.
func ParseResponse(data []byte) (Result, error) {
	if len(data) >= 2 && bytes.Equal(data[:2], []byte("OK")) {
		if len(data) < 6 {
			return Result{}, fmt.Errorf("%w: OK needs 6 bytes, have %d", ErrTruncatedResponse, len(data))
		}
		return Result{
			Version: binary.BigEndian.Uint16(data[2:4]),
			Caps:    protocol.Capabilities(binary.BigEndian.Uint16(data[4:6])),
		}, nil
	}
	if len(data) >= 5 && bytes.Equal(data[:5], []byte("ERROR")) {
		msg := strings.TrimRight(string(data[5:]), "\x00")
		return Result{}, &RejectedError{Message: msg}
	}
	return Result{}, ErrInvalidResponse
}

// ParseHello validates a client hello and intersects the requested
// capabilities with what the server offers. The returned set is what an OK
// response should grant.
func ParseHello(data []byte, serverCaps protocol.Capabilities) (Result, error) {
	if len(data) < HelloSize {
		return Result{}, fmt.Errorf("%w: needs %d bytes, have %d", ErrBadHello, HelloSize, len(data))
	}
	if string(data[:len(MagicHello)]) != MagicHello {
		return Result{}, fmt.Errorf("%w: bad magic", ErrBadHello)
	}
	version := binary.BigEndian.Uint16(data[len(MagicHello) : len(MagicHello)+2])
	if version != protocol.Version {
		return Result{}, fmt.Errorf("%w: %d", ErrVersionMismatch, version)
	}
	requested := protocol.Capabilities(binary.BigEndian.Uint16(data[len(MagicHello)+2:]))
	return Result{Version: version, Caps: requested & serverCaps}, nil
}

// OK builds the success response a server sends back.
func OK(version uint16, granted protocol.Capabilities) []byte {
	buf := make([]byte, 0, 6)
	buf = append(buf, "OK"...)
	buf = binary.BigEndian.AppendUint16(buf, version)
	buf = binary.BigEndian.AppendUint16(buf, uint16(granted))
	return buf
}

// ErrorResponse builds the rejection response a server sends back.
func ErrorResponse(msg string) []byte {
	return append([]byte("ERROR"), msg...)
}
