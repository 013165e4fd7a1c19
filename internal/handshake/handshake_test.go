package handshake

import (
	"bytes"
	"errors"
	"testing"

	"github.com/perun-emu/perun-go/internal/protocol"
)

func TestHelloLayout(t *testing.T) {
	hello := Hello(1, protocol.CapDelta|protocol.CapAudio)
	if len(hello) != HelloSize {
		t.Fatalf("hello is %d bytes, want %d", len(hello), HelloSize)
	}
	if string(hello[:11]) != MagicHello {
		t.Errorf("bad magic: %q", hello[:11])
	}
	want := []byte{0x00, 0x01, 0x00, 0x03} // version=1, caps=CAP_DELTA|CAP_AUDIO
	if !bytes.Equal(hello[11:], want) {
		t.Errorf("hello tail = % x, want % x", hello[11:], want)
	}
}

func TestParseResponseOK(t *testing.T) {
	res, err := ParseResponse([]byte{'O', 'K', 0x00, 0x01, 0x00, 0x05})
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if res.Version != 1 {
		t.Errorf("version = %d, want 1", res.Version)
	}
	if res.Caps != protocol.CapDelta|protocol.CapDebug {
		t.Errorf("caps = 0x%04x, want 0x0005", uint16(res.Caps))
	}
}

func TestParseResponseTruncated(t *testing.T) {
	for _, data := range [][]byte{
		{'O', 'K'},
		{'O', 'K', 0x00, 0x01},
		{'O', 'K', 0x00, 0x01, 0x00},
	} {
		if _, err := ParseResponse(data); !errors.Is(err, ErrTruncatedResponse) {
			t.Errorf("ParseResponse(% x): got %v, want ErrTruncatedResponse", data, err)
		}
	}
}

func TestParseResponseError(t *testing.T) {
	data := append([]byte("ERROR"), "server full\x00\x00"...)
	_, err := ParseResponse(data)

	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want *RejectedError", err)
	}
	if rej.Message != "server full" {
		t.Errorf("message = %q, want %q (trailing NULs stripped)", rej.Message, "server full")
	}
}

func TestParseResponseInvalid(t *testing.T) {
	for _, data := range [][]byte{nil, {'X'}, []byte("NOPE"), []byte("ER")} {
		if _, err := ParseResponse(data); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("ParseResponse(%q): got %v, want ErrInvalidResponse", data, err)
		}
	}
}

// TestNegotiationSubset verifies the server grants only the intersection of
// requested and offered capabilities, and that the client adopts the granted
// set rather than its request.
func TestNegotiationSubset(t *testing.T) {
	hello := Hello(protocol.Version, protocol.CapDelta|protocol.CapAudio)

	// Server only offers delta.
	res, err := ParseHello(hello, protocol.CapDelta)
	if err != nil {
		t.Fatalf("ParseHello failed: %v", err)
	}
	if res.Caps != protocol.CapDelta {
		t.Fatalf("granted = 0x%04x, want CapDelta only", uint16(res.Caps))
	}

	// Round the grant through the wire response.
	clientRes, err := ParseResponse(OK(res.Version, res.Caps))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if !clientRes.Caps.Has(protocol.CapDelta) {
		t.Error("client should see delta granted")
	}
	if clientRes.Caps.Has(protocol.CapAudio) {
		t.Error("client must not assume requested audio was granted")
	}
}

func TestParseHelloErrors(t *testing.T) {
	if _, err := ParseHello([]byte("PERUN_HEL"), protocol.CapDelta); !errors.Is(err, ErrBadHello) {
		t.Errorf("short hello: got %v, want ErrBadHello", err)
	}

	bad := Hello(protocol.Version, 0)
	copy(bad, "XXXXX")
	if _, err := ParseHello(bad, protocol.CapDelta); !errors.Is(err, ErrBadHello) {
		t.Errorf("bad magic: got %v, want ErrBadHello", err)
	}

	if _, err := ParseHello(Hello(99, 0), protocol.CapDelta); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("bad version: got %v, want ErrVersionMismatch", err)
	}
}
