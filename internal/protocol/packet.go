// Package protocol defines the Perun wire format: the fixed 8-byte packet
// header, the per-kind payload layouts, and the protocol constants shared by
// core and server. All integers are big-endian.
package protocol

// Version is the protocol version carried in the handshake hello.
const Version uint16 = 1

// Packet type constants.
const (
	TypeVideoFrame uint8 = 0x01 // RGBA frame or XOR delta against the previous frame
	TypeAudioChunk uint8 = 0x02 // Signed 16-bit PCM samples
	TypeInputEvent uint8 = 0x03 // Button bitmask
	TypeConfig     uint8 = 0x04 // Opaque configuration blob
	TypeDebugInfo  uint8 = 0x05 // Opaque debug blob
)

// Header flag bits. Only meaningful on VideoFrame packets today.
const (
	FlagCompressed uint8 = 0x01 // Payload body is compressed
	FlagDelta      uint8 = 0x02 // Payload body is an XOR delta, not raw pixels
)

// Capabilities is the bitset negotiated once per connection. The effective
// set is whatever the server granted, never what the client requested.
type Capabilities uint16

const (
	CapDelta Capabilities = 0x01 // Peer accepts/produces delta frames
	CapAudio Capabilities = 0x02 // Peer accepts audio chunks
	CapDebug Capabilities = 0x04 // Peer accepts debug info packets
)

// Has reports whether every bit of want is present in c.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// HeaderSize is the fixed header size: Type(1) + Flags(1) + Sequence(2) + Length(4).
const HeaderSize = 8

// MaxPayloadSize bounds the Length field a receiver will accept. A header
// claiming more is a protocol violation, not a buffering obligation; without
// this cap a malformed length would grow the inbound accumulator without
// limit. 32 MiB covers a 2048×2048 RGBA frame with room to spare.
const MaxPayloadSize = 32 << 20

// Header is the fixed 8-byte record preceding every payload. Sequence is
// producer-assigned and purely informational; the transport is an ordered
// byte stream, so it is never used for reordering or dedup.
type Header struct {
	Type     uint8
	Flags    uint8
	Sequence uint16
	Length   uint32
}

// Packet is one header plus its payload, the atomic unit of the protocol.
type Packet struct {
	Header  Header
	Payload []byte
}
