package memory

import "github.com/mknezic/go-dotboy/dotboy/bit"

// serialBitCycles is the cycle cost per transferred bit at the DMG's
// 8192 Hz internal bit clock.
const serialBitCycles = 512

// Serial implements SB/SC with no peer attached: a started transfer shifts
// in 0xFF and completes with the serial interrupt after eight bit periods.
type Serial struct {
	sb        byte
	sc        byte
	countdown int

	Interrupt func()
}

func (s *Serial) Tick(cycles int) {
	if s.countdown <= 0 {
		return
	}
	s.countdown -= cycles
	if s.countdown <= 0 {
		s.countdown = 0
		s.sb = 0xFF // disconnected peer
		s.sc = bit.Clear(7, s.sc)
		if s.Interrupt != nil {
			s.Interrupt()
		}
	}
}

func (s *Serial) Read(address uint16) byte {
	if address == 0xFF01 {
		return s.sb
	}
	return s.sc | 0x7E
}

func (s *Serial) Write(address uint16, value byte) {
	if address == 0xFF01 {
		s.sb = value
		return
	}
	s.sc = value & 0x81
	// only an internally clocked transfer completes on its own
	if bit.IsSet(7, s.sc) && bit.IsSet(0, s.sc) {
		s.countdown = serialBitCycles * 8
	}
}

// SerialState is the snapshot form of the serial port.
type SerialState struct {
	SB        byte
	SC        byte
	Countdown int
}

func (s *Serial) State() SerialState {
	return SerialState{SB: s.sb, SC: s.sc, Countdown: s.countdown}
}

func (s *Serial) SetState(st SerialState) {
	s.sb, s.sc, s.countdown = st.SB, st.SC, st.Countdown
}
