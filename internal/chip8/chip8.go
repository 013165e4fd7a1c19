// Package chip8 is a small CHIP-8 interpreter used as a traffic source: it
// produces 64x32 monochrome frames at emulator speed, which the feed command
// expands to RGBA and streams out. It is deliberately minimal, not a
// compatibility-focused emulator.
package chip8

import (
	"fmt"
	"math/rand/v2"
	"os"
)

// Display dimensions fixed by the CHIP-8 architecture.
const (
	DisplayWidth  = 64
	DisplayHeight = 32
)

const (
	memorySize   = 4096
	programStart = 0x200
)

// fontset holds the builtin 4x5 hex digit sprites, loaded at address 0.
var fontset = [80]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// Machine is a CHIP-8 virtual machine. Not safe for concurrent use; the feed
// loop owns it.
type Machine struct {
	memory [memorySize]byte
	v      [16]byte
	i      uint16
	pc     uint16
	stack  []uint16

	gfx [DisplayWidth * DisplayHeight]byte // 0 or 1 per pixel

	delayTimer byte
	soundTimer byte

	key      [16]byte
	drawFlag bool

	rand func() byte
}

// New returns a machine with the fontset loaded and the program counter at
// the conventional start address.
func New() *Machine {
	m := &Machine{
		pc:   programStart,
		rand: func() byte { return byte(rand.UintN(256)) },
	}
	copy(m.memory[:], fontset[:])
	return m
}

// LoadROM copies a ROM image from disk into program memory.
func (m *Machine) LoadROM(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("chip8: load rom: %w", err)
	}
	if len(data) > memorySize-programStart {
		return fmt.Errorf("chip8: rom is %d bytes, max %d", len(data), memorySize-programStart)
	}
	copy(m.memory[programStart:], data)
	return nil
}

// LoadTestProgram installs a builtin demo that draws random hex digit
// sprites at random screen positions forever. Handy when no ROM is at hand.
func (m *Machine) LoadTestProgram() {
	ops := []uint16{
		0x00E0, // CLS
		0xC03F, // RND V0, 0x3F  (x)
		0xC11F, // RND V1, 0x1F  (y)
		0xC20F, // RND V2, 0x0F  (digit)
		0xF229, // LD F, V2
		0xD015, // DRW V0, V1, 5
		0x1202, // JP 0x202
	}
	off := programStart
	for _, op := range ops {
		m.memory[off] = byte(op >> 8)
		m.memory[off+1] = byte(op)
		off += 2
	}
}

// SetKeys updates the 16-key pad from a button bitmask, bit n mapping to
// CHIP-8 key n.
func (m *Machine) SetKeys(buttons uint16) {
	for i := range m.key {
		if buttons&(1<<i) != 0 {
			m.key[i] = 1
		} else {
			m.key[i] = 0
		}
	}
}

// DrawFlag reports whether the display changed since the last ClearDrawFlag.
func (m *Machine) DrawFlag() bool { return m.drawFlag }

// ClearDrawFlag resets the dirty marker after the frame has been shipped.
func (m *Machine) ClearDrawFlag() { m.drawFlag = false }

// Framebuffer expands the monochrome display into an RGBA8888 buffer, lit
// pixels white and unlit black, both fully opaque.
func (m *Machine) Framebuffer() []byte {
	rgba := make([]byte, DisplayWidth*DisplayHeight*4)
	for i, px := range m.gfx {
		var v byte
		if px != 0 {
			v = 0xFF
		}
		rgba[i*4] = v
		rgba[i*4+1] = v
		rgba[i*4+2] = v
		rgba[i*4+3] = 0xFF
	}
	return rgba
}

// Cycle fetches, decodes and executes one instruction, then ticks the
// timers.
func (m *Machine) Cycle() {
	op := uint16(m.memory[m.pc])<<8 | uint16(m.memory[m.pc+1])
	m.pc += 2

	x := (op & 0x0F00) >> 8
	y := (op & 0x00F0) >> 4
	nn := byte(op)
	nnn := op & 0x0FFF

	switch op & 0xF000 {
	case 0x0000:
		switch op {
		case 0x00E0: // CLS
			clear(m.gfx[:])
			m.drawFlag = true
		case 0x00EE: // RET
			m.pc = m.stack[len(m.stack)-1]
			m.stack = m.stack[:len(m.stack)-1]
		}
	case 0x1000: // JP addr
		m.pc = nnn
	case 0x2000: // CALL addr
		m.stack = append(m.stack, m.pc)
		m.pc = nnn
	case 0x3000: // SE Vx, byte
		if m.v[x] == nn {
			m.pc += 2
		}
	case 0x4000: // SNE Vx, byte
		if m.v[x] != nn {
			m.pc += 2
		}
	case 0x5000: // SE Vx, Vy
		if m.v[x] == m.v[y] {
			m.pc += 2
		}
	case 0x6000: // LD Vx, byte
		m.v[x] = nn
	case 0x7000: // ADD Vx, byte
		m.v[x] += nn
	case 0x8000:
		m.alu(op, x, y)
	case 0x9000: // SNE Vx, Vy
		if m.v[x] != m.v[y] {
			m.pc += 2
		}
	case 0xA000: // LD I, addr
		m.i = nnn
	case 0xB000: // JP V0, addr
		m.pc = nnn + uint16(m.v[0])
	case 0xC000: // RND Vx, byte
		m.v[x] = m.rand() & nn
	case 0xD000: // DRW Vx, Vy, nibble
		m.draw(x, y, op&0x000F)
	case 0xE000:
		switch nn {
		case 0x9E: // SKP Vx
			if m.key[m.v[x]&0xF] != 0 {
				m.pc += 2
			}
		case 0xA1: // SKNP Vx
			if m.key[m.v[x]&0xF] == 0 {
				m.pc += 2
			}
		}
	case 0xF000:
		m.misc(nn, x)
	}

	if m.delayTimer > 0 {
		m.delayTimer--
	}
	if m.soundTimer > 0 {
		m.soundTimer--
	}
}

func (m *Machine) alu(op, x, y uint16) {
	switch op & 0x000F {
	case 0x0: // LD Vx, Vy
		m.v[x] = m.v[y]
	case 0x1: // OR
		m.v[x] |= m.v[y]
	case 0x2: // AND
		m.v[x] &= m.v[y]
	case 0x3: // XOR
		m.v[x] ^= m.v[y]
	case 0x4: // ADD with carry
		sum := uint16(m.v[x]) + uint16(m.v[y])
		m.v[x] = byte(sum)
		m.v[0xF] = byte(sum >> 8)
	case 0x5: // SUB with borrow
		vf := byte(0)
		if m.v[x] > m.v[y] {
			vf = 1
		}
		m.v[x] -= m.v[y]
		m.v[0xF] = vf
	case 0x6: // SHR
		vf := m.v[x] & 0x1
		m.v[x] >>= 1
		m.v[0xF] = vf
	case 0x7: // SUBN
		vf := byte(0)
		if m.v[y] > m.v[x] {
			vf = 1
		}
		m.v[x] = m.v[y] - m.v[x]
		m.v[0xF] = vf
	case 0xE: // SHL
		vf := m.v[x] >> 7
		m.v[x] <<= 1
		m.v[0xF] = vf
	}
}

// draw XORs an 8xN sprite at (Vx, Vy), wrapping around the display and
// setting VF when any lit pixel is erased.
func (m *Machine) draw(x, y, height uint16) {
	m.v[0xF] = 0
	for row := uint16(0); row < height; row++ {
		sprite := m.memory[m.i+row]
		for col := uint16(0); col < 8; col++ {
			if sprite&(0x80>>col) == 0 {
				continue
			}
			idx := (int(m.v[x]) + int(col) + (int(m.v[y])+int(row))*DisplayWidth) % len(m.gfx)
			if m.gfx[idx] == 1 {
				m.v[0xF] = 1
			}
			m.gfx[idx] ^= 1
		}
	}
	m.drawFlag = true
}

func (m *Machine) misc(nn byte, x uint16) {
	switch nn {
	case 0x07: // LD Vx, DT
		m.v[x] = m.delayTimer
	case 0x0A: // LD Vx, K (blocks by repeating the instruction)
		for i, k := range m.key {
			if k != 0 {
				m.v[x] = byte(i)
				return
			}
		}
		m.pc -= 2
	case 0x15: // LD DT, Vx
		m.delayTimer = m.v[x]
	case 0x18: // LD ST, Vx
		m.soundTimer = m.v[x]
	case 0x1E: // ADD I, Vx
		m.i += uint16(m.v[x])
	case 0x29: // LD F, Vx
		m.i = uint16(m.v[x]) * 5
	case 0x33: // LD B, Vx
		m.memory[m.i] = m.v[x] / 100
		m.memory[m.i+1] = (m.v[x] / 10) % 10
		m.memory[m.i+2] = m.v[x] % 10
	case 0x55: // LD [I], V0..Vx
		for i := uint16(0); i <= x; i++ {
			m.memory[m.i+i] = m.v[i]
		}
	case 0x65: // LD V0..Vx, [I]
		for i := uint16(0); i <= x; i++ {
			m.v[i] = m.memory[m.i+i]
		}
	}
}
