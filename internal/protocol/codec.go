package protocol

import (
	"encoding/binary"
	"fmt"
)

// Decode errors. Callers match with errors.Is; the connection treats any of
// them on the receive path as fatal to the stream.
var (
	ErrShortBuffer  = fmt.Errorf("protocol: buffer too short")
	ErrUnknownType  = fmt.Errorf("protocol: unknown packet type")
	ErrBadFrameSize = fmt.Errorf("protocol: frame data does not match dimensions")
	ErrOddAudioBody = fmt.Errorf("protocol: audio body not a whole number of samples")
)

// EncodeHeader serializes h into exactly HeaderSize bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Type
	buf[1] = h.Flags
	binary.BigEndian.PutUint16(buf[2:4], h.Sequence)
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
	return buf
}

// AppendHeader serializes h onto dst, avoiding a second allocation when the
// payload is appended right after.
func AppendHeader(dst []byte, h Header) []byte {
	dst = append(dst, h.Type, h.Flags)
	dst = binary.BigEndian.AppendUint16(dst, h.Sequence)
	dst = binary.BigEndian.AppendUint32(dst, h.Length)
	return dst
}

// DecodeHeader parses the first HeaderSize bytes of data. A type byte outside
// the closed enumeration fails with ErrUnknownType: this implementation takes
// the strict reading of the wire contract rather than passing unknown kinds
// through as opaque.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortBuffer, HeaderSize, len(data))
	}
	if data[0] < TypeVideoFrame || data[0] > TypeDebugInfo {
		return Header{}, fmt.Errorf("%w: 0x%02x", ErrUnknownType, data[0])
	}
	return Header{
		Type:     data[0],
		Flags:    data[1],
		Sequence: binary.BigEndian.Uint16(data[2:4]),
		Length:   binary.BigEndian.Uint32(data[4:8]),
	}, nil
}

// VideoFrame is the payload of a TypeVideoFrame packet: a 4-byte dimension
// header followed by Width*Height*4 bytes of RGBA8888 pixels, or the XOR
// delta of such a buffer when FlagDelta is set on the packet header.
type VideoFrame struct {
	Width  uint16
	Height uint16
	Data   []byte
}

// Encode serializes the frame payload.
func (f VideoFrame) Encode() []byte {
	buf := make([]byte, 4, 4+len(f.Data))
	binary.BigEndian.PutUint16(buf[0:2], f.Width)
	binary.BigEndian.PutUint16(buf[2:4], f.Height)
	return append(buf, f.Data...)
}

// DecodeVideoFrame parses a frame payload. The pixel data length must equal
// Width*Height*4 exactly; both raw frames and the placeholder XOR delta are
// full resolution, so the invariant holds for either.
func DecodeVideoFrame(data []byte) (VideoFrame, error) {
	if len(data) < 4 {
		return VideoFrame{}, fmt.Errorf("%w: video frame needs 4 bytes, have %d", ErrShortBuffer, len(data))
	}
	f := VideoFrame{
		Width:  binary.BigEndian.Uint16(data[0:2]),
		Height: binary.BigEndian.Uint16(data[2:4]),
	}
	want := int(f.Width) * int(f.Height) * 4
	if len(data)-4 != want {
		return VideoFrame{}, fmt.Errorf("%w: %dx%d wants %d bytes, have %d",
			ErrBadFrameSize, f.Width, f.Height, want, len(data)-4)
	}
	f.Data = make([]byte, want)
	copy(f.Data, data[4:])
	return f, nil
}

// InputEvent is the payload of a TypeInputEvent packet. Bit i of Buttons set
// means key/button i is held. Reserved carries no semantics but must
// round-trip.
type InputEvent struct {
	Buttons  uint16
	Reserved uint16
}

// Encode serializes the input payload to exactly 4 bytes.
func (e InputEvent) Encode() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], e.Buttons)
	binary.BigEndian.PutUint16(buf[2:4], e.Reserved)
	return buf
}

// DecodeInputEvent parses an input payload.
func DecodeInputEvent(data []byte) (InputEvent, error) {
	if len(data) < 4 {
		return InputEvent{}, fmt.Errorf("%w: input event needs 4 bytes, have %d", ErrShortBuffer, len(data))
	}
	return InputEvent{
		Buttons:  binary.BigEndian.Uint16(data[0:2]),
		Reserved: binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

// AudioChunk is the payload of a TypeAudioChunk packet. The sample count is
// derived from the payload length, never carried explicitly.
type AudioChunk struct {
	SampleRate uint16
	Channels   uint8
	Samples    []int16
}

// Encode serializes the audio payload.
func (a AudioChunk) Encode() []byte {
	buf := make([]byte, 3, 3+len(a.Samples)*2)
	binary.BigEndian.PutUint16(buf[0:2], a.SampleRate)
	buf[2] = a.Channels
	for _, s := range a.Samples {
		buf = binary.BigEndian.AppendUint16(buf, uint16(s))
	}
	return buf
}

// DecodeAudioChunk parses an audio payload. The body after the 3-byte
// sub-header must contain whole 16-bit samples.
func DecodeAudioChunk(data []byte) (AudioChunk, error) {
	if len(data) < 3 {
		return AudioChunk{}, fmt.Errorf("%w: audio chunk needs 3 bytes, have %d", ErrShortBuffer, len(data))
	}
	body := data[3:]
	if len(body)%2 != 0 {
		return AudioChunk{}, fmt.Errorf("%w: %d trailing bytes", ErrOddAudioBody, len(body))
	}
	a := AudioChunk{
		SampleRate: binary.BigEndian.Uint16(data[0:2]),
		Channels:   data[2],
		Samples:    make([]int16, len(body)/2),
	}
	for i := range a.Samples {
		a.Samples[i] = int16(binary.BigEndian.Uint16(body[i*2 : i*2+2]))
	}
	return a, nil
}
