package cpu

import (
	"errors"
	"fmt"

	"github.com/mknezic/go-dotboy/dotboy/addr"
	"github.com/mknezic/go-dotboy/dotboy/bit"
)

// Bus is the memory interface the CPU fetches and stores through.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

// Flag is one of the 4 flags in the F register.
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

const (
	baseInterruptVector uint16 = 0x40
	// Servicing an interrupt costs 5 machine cycles.
	interruptCycles = 20
)

// LockedOpcodeError reports that the CPU hit one of the unassigned opcodes
// that lock up real hardware. The CPU stays frozen at the faulting address;
// every further Step returns this error.
type LockedOpcodeError struct {
	Opcode byte
	Addr   uint16
}

func (e *LockedOpcodeError) Error() string {
	return fmt.Sprintf("cpu locked by opcode 0x%02X at 0x%04X", e.Opcode, e.Addr)
}

// ErrLockedOpcode matches any LockedOpcodeError under errors.Is.
var ErrLockedOpcode = errors.New("cpu locked")

func (e *LockedOpcodeError) Is(target error) bool { return target == ErrLockedOpcode }

// CPU is the SM83 core: the register file plus interrupt/halt bookkeeping.
type CPU struct {
	a  uint8
	f  uint8
	b  uint8
	c  uint8
	d  uint8
	e  uint8
	h  uint8
	l  uint8
	sp uint16
	pc uint16

	ime     bool
	eiDelay uint8 // EI enables interrupts one instruction late
	halted  bool
	locked  bool

	// haltBug makes the next opcode fetch skip its PC increment. Set by
	// executing HALT with IME=0 while an interrupt is already pending.
	haltBug bool

	lockedOp byte
	cycles   uint64

	bus Bus
}

// New returns a CPU with the post-boot-ROM register values.
func New(bus Bus) *CPU {
	cpu := &CPU{bus: bus}
	cpu.Reset()
	return cpu
}

// Reset restores the documented post-boot register values.
func (c *CPU) Reset() {
	c.setAF(0x01B0)
	c.setBC(0x0013)
	c.setDE(0x00D8)
	c.setHL(0x014D)
	c.sp = 0xFFFE
	c.pc = 0x0100
	c.ime = false
	c.eiDelay = 0
	c.halted = false
	c.haltBug = false
	c.locked = false
	c.cycles = 0
}

// Step executes exactly one instruction (or services one interrupt, which
// preempts the next instruction entirely) and returns the clock cycles it
// consumed. All side effects are applied before Step returns.
func (c *CPU) Step() (int, error) {
	if c.locked {
		return 0, &LockedOpcodeError{Opcode: c.lockedOp, Addr: c.pc}
	}

	enabled := c.bus.Read(addr.IE)
	fired := c.bus.Read(addr.IF)
	pending := enabled & fired & 0x1F

	// Any pending enabled interrupt wakes HALT, even with IME off.
	if pending != 0 && c.halted {
		c.halted = false
	}

	if c.ime && pending != 0 {
		c.service(pending, fired)
		c.cycles += interruptCycles
		return interruptCycles, nil
	}

	if c.halted {
		c.cycles += 4
		return 4, nil
	}

	op := c.fetchOpcode()
	cycles, err := c.execute(op)
	c.cycles += uint64(cycles)

	if c.eiDelay > 0 {
		c.eiDelay--
		if c.eiDelay == 0 {
			c.ime = true
		}
	}

	return cycles, err
}

// service dispatches the highest-priority pending interrupt (bit 0 first):
// clears its IF bit, disables IME, pushes PC and jumps to the fixed vector.
func (c *CPU) service(pending, fired byte) {
	for i := uint8(0); i < 5; i++ {
		if !bit.IsSet(i, pending) {
			continue
		}
		c.bus.Write(addr.IF, bit.Clear(i, fired))
		c.ime = false
		c.pushWord(c.pc)
		c.pc = baseInterruptVector + uint16(i)*8
		return
	}
}

// fetchOpcode reads the opcode byte at PC. Under the halt bug the PC
// increment is skipped, so the byte is decoded again as the next operand.
func (c *CPU) fetchOpcode() byte {
	op := c.bus.Read(c.pc)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}
	return op
}

func (c *CPU) readImmediate() uint8 {
	n := c.bus.Read(c.pc)
	c.pc++
	return n
}

func (c *CPU) readImmediateWord() uint16 {
	low := c.readImmediate()
	high := c.readImmediate()
	return bit.Combine(high, low)
}

func (c *CPU) pushWord(value uint16) {
	c.sp--
	c.bus.Write(c.sp, bit.High(value))
	c.sp--
	c.bus.Write(c.sp, bit.Low(value))
}

func (c *CPU) popWord() uint16 {
	low := c.bus.Read(c.sp)
	c.sp++
	high := c.bus.Read(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

func (c *CPU) setFlag(flag Flag, condition bool) {
	if condition {
		c.f |= uint8(flag)
	} else {
		c.f &^= uint8(flag)
	}
}

func (c *CPU) isSet(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

func (c *CPU) carryBit() uint8 {
	if c.isSet(carryFlag) {
		return 1
	}
	return 0
}

func (c *CPU) setBC(value uint16) { c.b, c.c = bit.High(value), bit.Low(value) }
func (c *CPU) getBC() uint16      { return bit.Combine(c.b, c.c) }
func (c *CPU) setDE(value uint16) { c.d, c.e = bit.High(value), bit.Low(value) }
func (c *CPU) getDE() uint16      { return bit.Combine(c.d, c.e) }
func (c *CPU) setHL(value uint16) { c.h, c.l = bit.High(value), bit.Low(value) }
func (c *CPU) getHL() uint16      { return bit.Combine(c.h, c.l) }

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// low nibble of F always reads 0
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getAF() uint16 { return bit.Combine(c.a, c.f) }

// State is the full register file and interrupt bookkeeping, flat for
// snapshotting.
type State struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
	IME                    bool
	EIDelay                uint8
	Halted                 bool
	HaltBug                bool
	Locked                 bool
	LockedOp               byte
	Cycles                 uint64
}

// Save copies the CPU state out.
func (c *CPU) Save() State {
	return State{
		A: c.a, F: c.f, B: c.b, C: c.c, D: c.d, E: c.e, H: c.h, L: c.l,
		SP: c.sp, PC: c.pc,
		IME: c.ime, EIDelay: c.eiDelay,
		Halted: c.halted, HaltBug: c.haltBug,
		Locked: c.locked, LockedOp: c.lockedOp,
		Cycles: c.cycles,
	}
}

// Load restores a previously saved state.
func (c *CPU) Load(s State) {
	c.a, c.f, c.b, c.c = s.A, s.F&0xF0, s.B, s.C
	c.d, c.e, c.h, c.l = s.D, s.E, s.H, s.L
	c.sp, c.pc = s.SP, s.PC
	c.ime, c.eiDelay = s.IME, s.EIDelay
	c.halted, c.haltBug = s.Halted, s.HaltBug
	c.locked, c.lockedOp = s.Locked, s.LockedOp
	c.cycles = s.Cycles
}

// Accessors used by the shell and tests.
func (c *CPU) PC() uint16     { return c.pc }
func (c *CPU) SP() uint16     { return c.sp }
func (c *CPU) AF() uint16     { return c.getAF() }
func (c *CPU) BC() uint16     { return c.getBC() }
func (c *CPU) DE() uint16     { return c.getDE() }
func (c *CPU) HL() uint16     { return c.getHL() }
func (c *CPU) IME() bool      { return c.ime }
func (c *CPU) Halted() bool   { return c.halted }
func (c *CPU) Cycles() uint64 { return c.cycles }
