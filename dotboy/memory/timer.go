package memory

import (
	"github.com/mknezic/go-dotboy/dotboy/addr"
	"github.com/mknezic/go-dotboy/dotboy/bit"
)

// tacBit maps the TAC clock select (bits 1-0) to the bit of the internal
// 16-bit divider the timer watches. TIMA increments on a falling edge of the
// selected bit while the timer is enabled (TAC bit 2).
//
//	00 -> bit 9  (4096 Hz)
//	01 -> bit 3  (262144 Hz)
//	10 -> bit 5  (65536 Hz)
//	11 -> bit 7  (16384 Hz)
var tacBit = [4]uint16{9, 3, 5, 7}

// Timer implements DIV/TIMA/TMA/TAC. DIV is the upper byte of the internal
// divider; writing it resets the whole counter and leaves TAC untouched.
type Timer struct {
	divider      uint16
	lastEdge     bool
	overflowWait int  // cycles until TIMA reloads from TMA after overflow
	pendingIRQ   bool // interrupt fires one machine cycle after the reload

	tima byte
	tma  byte
	tac  byte

	// Interrupt is called when the timer interrupt should be requested.
	Interrupt func()
}

func (t *Timer) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if t.pendingIRQ {
			if t.Interrupt != nil {
				t.Interrupt()
			}
			t.pendingIRQ = false
		}

		t.divider++

		if t.overflowWait > 0 {
			t.overflowWait--
			if t.overflowWait == 0 {
				t.tima = t.tma
				t.pendingIRQ = true
			}
			continue
		}

		if !bit.IsSet(2, t.tac) {
			t.lastEdge = false
			continue
		}

		edge := bit.IsSet16(tacBit[t.tac&0x03], t.divider)
		if t.lastEdge && !edge {
			if t.tima == 0xFF {
				t.overflowWait = 4
			}
			t.tima++
		}
		t.lastEdge = edge
	}
}

func (t *Timer) Read(address uint16) byte {
	switch address {
	case addr.DIV:
		return byte(t.divider >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	default:
		return 0xFF
	}
}

func (t *Timer) Write(address uint16, value byte) {
	switch address {
	case addr.DIV:
		// any write resets the divider; TAC is unaffected
		t.divider = 0
	case addr.TIMA:
		t.tima = value
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
	}
}

// TimerState is the snapshot form of the timer.
type TimerState struct {
	Divider      uint16
	LastEdge     bool
	OverflowWait int
	PendingIRQ   bool
	TIMA         byte
	TMA          byte
	TAC          byte
}

func (t *Timer) State() TimerState {
	return TimerState{
		Divider: t.divider, LastEdge: t.lastEdge,
		OverflowWait: t.overflowWait, PendingIRQ: t.pendingIRQ,
		TIMA: t.tima, TMA: t.tma, TAC: t.tac,
	}
}

func (t *Timer) SetState(s TimerState) {
	t.divider, t.lastEdge = s.Divider, s.LastEdge
	t.overflowWait, t.pendingIRQ = s.OverflowWait, s.PendingIRQ
	t.tima, t.tma, t.tac = s.TIMA, s.TMA, s.TAC
}
