// Package conn implements the Perun connection: handshake, typed packet
// sends with an explicit backpressure policy, and non-suspending receive
// with stream reassembly.
//
// A Conn is driven by a single logical actor. None of its methods are safe
// for concurrent use and none of them need locks: the one operation allowed
// to suspend the caller is the handshake inside Dial/Client, everything
// after that polls the transport instead of waiting on it.
package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/perun-emu/perun-go/internal/handshake"
	"github.com/perun-emu/perun-go/internal/protocol"
	"github.com/perun-emu/perun-go/internal/util"
)

// Mode selects the send discipline for one packet.
type Mode int

const (
	// Blocking retries partial writes until the whole unit is on the wire or
	// the transport dies. It never drops a unit it started sending.
	Blocking Mode = iota

	// NonBlocking drops the whole unit when the transport is not currently
	// accepting writes and reports ErrFrameDropped without closing the
	// connection. A slow consumer costs frames, never stalls the producer,
	// and never corrupts the stream with a half-written unit.
	NonBlocking
)

var (
	// ErrClosed is returned by operations on a closed connection, and by
	// Receive when the drain observes end-of-stream. Distinct from the
	// (nil, nil) "no packet buffered yet" result.
	ErrClosed = errors.New("conn: connection closed")

	// ErrFrameDropped is the normal backpressure outcome of a NonBlocking
	// send, not a hard failure: the connection stays Ready and the caller
	// decides whether the next frame is worth trying.
	ErrFrameDropped = errors.New("conn: frame dropped, transport not writable")
)

// DefaultHandshakeTimeout bounds the one blocking exchange of a connection's
// life. A peer that never answers the hello must not suspend the caller
// forever.
const DefaultHandshakeTimeout = 5 * time.Second

// writeProbe is the deadline given to the first write attempt of a
// NonBlocking send on transports that cannot be polled for writability.
const writeProbe = time.Millisecond

// readPoll is the deadline used while draining the transport in Receive.
// Short enough that Receive is effectively non-suspending.
const readPoll = time.Millisecond

// Options configures Dial and Client.
type Options struct {
	// Capabilities requested in the hello. The granted set may be smaller.
	Capabilities protocol.Capabilities

	// HandshakeTimeout bounds the blocking handshake exchange.
	// DefaultHandshakeTimeout when zero.
	HandshakeTimeout time.Duration
}

// state is the connection lifecycle. closed is terminal: no transition
// leaves it.
type state int

const (
	stateReady state = iota
	stateClosed
)

// Conn owns its transport handle exclusively. Lifecycle: Dial/Client run the
// handshake and return a Ready connection or an error; there is no
// observable half-connected state.
type Conn struct {
	tr    net.Conn
	state state
	caps  protocol.Capabilities
	seq   uint16

	asm     assembler
	readBuf []byte
}

// Client performs the handshake over an already-open transport and returns a
// Ready connection. The transport is closed on any failure. The handshake is
// always a blocking exchange, bounded by opts.HandshakeTimeout and ctx; the
// protocol has no notion of a partial handshake.
func Client(ctx context.Context, tr net.Conn, opts Options) (*Conn, error) {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	res, err := runHandshake(tr, deadline, opts.Capabilities)
	if err != nil {
		tr.Close()
		return nil, err
	}

	util.LogDebug("handshake complete: version=%d caps=0x%04x", res.Version, uint16(res.Caps))

	return &Conn{
		tr:      tr,
		state:   stateReady,
		caps:    res.Caps,
		readBuf: make([]byte, 64*1024),
	}, nil
}

// runHandshake writes the hello and reads one response under a deadline.
func runHandshake(tr net.Conn, deadline time.Time, want protocol.Capabilities) (handshake.Result, error) {
	if err := tr.SetDeadline(deadline); err != nil {
		return handshake.Result{}, fmt.Errorf("conn: arm handshake deadline: %w", err)
	}

	if _, err := tr.Write(handshake.Hello(protocol.Version, want)); err != nil {
		return handshake.Result{}, fmt.Errorf("conn: send hello: %w", err)
	}

	// The response is at most a short OK or ERROR record; one read suffices
	// on every transport this protocol runs over.
	buf := make([]byte, 256)
	n, err := tr.Read(buf)
	if err != nil {
		return handshake.Result{}, fmt.Errorf("conn: read handshake response: %w", err)
	}

	res, err := handshake.ParseResponse(buf[:n])
	if err != nil {
		return handshake.Result{}, err
	}

	// Disarm the handshake deadline; later operations set their own.
	if err := tr.SetDeadline(time.Time{}); err != nil {
		return handshake.Result{}, fmt.Errorf("conn: disarm handshake deadline: %w", err)
	}
	return res, nil
}

// SupportsDelta reports whether the peer granted delta frames. Always false
// before Ready and after Close; querying is harmless, never an error.
func (c *Conn) SupportsDelta() bool { return c.state == stateReady && c.caps.Has(protocol.CapDelta) }

// SupportsAudio reports whether the peer granted audio streaming.
func (c *Conn) SupportsAudio() bool { return c.state == stateReady && c.caps.Has(protocol.CapAudio) }

// SupportsDebug reports whether the peer granted debug info packets.
func (c *Conn) SupportsDebug() bool { return c.state == stateReady && c.caps.Has(protocol.CapDebug) }

// Capabilities returns the granted capability set, zero unless Ready.
func (c *Conn) Capabilities() protocol.Capabilities {
	if c.state != stateReady {
		return 0
	}
	return c.caps
}

// Send frames payload under a header carrying the next sequence number and
// writes it to the transport as one contiguous unit, under the given mode's
// discipline. Payloads above protocol.MaxPayloadSize are refused outright;
// the peer would tear the connection down anyway.
func (c *Conn) Send(packetType uint8, flags uint8, payload []byte, mode Mode) error {
	if c.state != stateReady {
		return ErrClosed
	}
	if len(payload) > protocol.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrOversizedPacket, len(payload))
	}

	h := protocol.Header{
		Type:     packetType,
		Flags:    flags,
		Sequence: c.nextSeq(),
		Length:   uint32(len(payload)),
	}
	unit := protocol.AppendHeader(make([]byte, 0, protocol.HeaderSize+len(payload)), h)
	unit = append(unit, payload...)

	if mode == NonBlocking {
		return c.writeNonBlocking(unit)
	}
	return c.writeBlocking(unit)
}

// SendVideoFrame sends a frame payload. Pass FlagDelta (and a delta-encoded
// body) only when the peer granted CapDelta and a prior full frame exists.
func (c *Conn) SendVideoFrame(f protocol.VideoFrame, flags uint8, mode Mode) error {
	return c.Send(protocol.TypeVideoFrame, flags, f.Encode(), mode)
}

// SendAudioChunk sends PCM samples.
func (c *Conn) SendAudioChunk(a protocol.AudioChunk, mode Mode) error {
	return c.Send(protocol.TypeAudioChunk, 0, a.Encode(), mode)
}

// SendInput sends the current button bitmask.
func (c *Conn) SendInput(e protocol.InputEvent, mode Mode) error {
	return c.Send(protocol.TypeInputEvent, 0, e.Encode(), mode)
}

// SendConfig sends an opaque configuration blob.
func (c *Conn) SendConfig(payload []byte, mode Mode) error {
	return c.Send(protocol.TypeConfig, 0, payload, mode)
}

// SendDebugInfo sends an opaque debug blob.
func (c *Conn) SendDebugInfo(payload []byte, mode Mode) error {
	return c.Send(protocol.TypeDebugInfo, 0, payload, mode)
}

// writeBlocking writes the whole unit, however long it takes. Any error is
// fatal: the unit may be partially sent, so the stream is unusable.
func (c *Conn) writeBlocking(unit []byte) error {
	if err := c.tr.SetWriteDeadline(time.Time{}); err != nil {
		return c.fatal(fmt.Errorf("conn: disarm write deadline: %w", err))
	}
	if _, err := c.tr.Write(unit); err != nil {
		return c.fatal(fmt.Errorf("conn: write: %w", err))
	}
	util.Stats.AddSent(len(unit))
	return nil
}

// writeNonBlocking implements the drop policy. On real sockets the kernel is
// polled for writability first (zero timeout); a non-writable socket drops
// the unit cleanly with nothing sent. If the write begins but stalls, the
// remainder is completed in blocking mode: a started unit is always finished
// so that bytes of two units never interleave.
func (c *Conn) writeNonBlocking(unit []byte) error {
	if writable, checked := c.pollWritable(); checked && !writable {
		util.Stats.AddDropped()
		return ErrFrameDropped
	}

	if err := c.tr.SetWriteDeadline(time.Now().Add(writeProbe)); err != nil {
		return c.fatal(fmt.Errorf("conn: arm write deadline: %w", err))
	}
	n, err := c.tr.Write(unit)
	if err == nil {
		util.Stats.AddSent(len(unit))
		return nil
	}

	if !isTimeout(err) {
		return c.fatal(fmt.Errorf("conn: write: %w", err))
	}
	if n == 0 {
		// Nothing hit the wire; the unit can be dropped without corrupting
		// the stream.
		util.Stats.AddDropped()
		return ErrFrameDropped
	}

	// Partially sent. Finish it.
	if err := c.writeBlocking(unit[n:]); err != nil {
		return err
	}
	util.Stats.AddSent(n)
	return nil
}

// pollWritable asks the kernel whether the socket would accept a write right
// now. checked is false for transports that do not expose a file descriptor
// (pipes, the websocket adapter); those fall back to the probe-deadline
// write in writeNonBlocking.
func (c *Conn) pollWritable() (writable, checked bool) {
	sc, ok := c.tr.(syscall.Conn)
	if !ok {
		return false, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, false
	}

	ctrlErr := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, perr := unix.Poll(fds, 0)
		writable = perr == nil && n > 0 && fds[0].Revents&unix.POLLOUT != 0
	})
	if ctrlErr != nil {
		return false, false
	}
	return writable, true
}

// Receive drains all currently available transport bytes into the assembler
// and extracts at most one complete packet, in arrival order.
//
// It returns (nil, nil) when no complete packet is buffered yet, and
// (nil, ErrClosed) once the peer has shut down the stream. Malformed headers
// and oversized lengths close the connection: skipping past them would
// desynchronize the framing.
func (c *Conn) Receive() (*protocol.Packet, error) {
	if c.state != stateReady {
		return nil, ErrClosed
	}

	for {
		if err := c.tr.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			return nil, c.fatal(fmt.Errorf("conn: arm read deadline: %w", err))
		}
		n, err := c.tr.Read(c.readBuf)
		if n > 0 {
			c.asm.feed(c.readBuf[:n])
			util.Stats.AddRecv(n)
		}
		if err == nil {
			continue
		}
		if isTimeout(err) {
			break // would block: everything available has been drained
		}
		if errors.Is(err, io.EOF) {
			c.Close()
			return nil, ErrClosed
		}
		return nil, c.fatal(fmt.Errorf("conn: read: %w", err))
	}

	pkt, err := c.asm.next()
	if err != nil {
		return nil, c.fatal(err)
	}
	return pkt, nil
}

// Close releases the transport and clears all connection state. Idempotent;
// closed is terminal.
func (c *Conn) Close() error {
	if c.state == stateClosed {
		return nil
	}
	c.state = stateClosed
	c.caps = 0
	c.seq = 0
	c.asm.reset()
	return c.tr.Close()
}

// fatal closes the connection and passes the error through.
func (c *Conn) fatal(err error) error {
	c.Close()
	return err
}

// nextSeq returns the next producer sequence number, wrapping at 65536.
// Plain arithmetic: the connection is single-actor by contract.
func (c *Conn) nextSeq() uint16 {
	s := c.seq
	c.seq++
	return s
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
