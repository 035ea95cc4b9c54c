package memory

import "github.com/mknezic/go-dotboy/dotboy/bit"

// Button identifies one input line on the pad.
type Button uint8

const (
	ButtonRight Button = iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

// Input is the full pad state sampled at a frame boundary, one bit per
// Button, set when pressed.
type Input uint8

func (i Input) Pressed(b Button) bool { return i>>Input(b)&1 == 1 }

func (i *Input) Press(b Button) { *i |= 1 << Input(b) }

// Joypad implements the P1 button matrix. Bits 4-5 select which button group
// the low nibble reflects; lines are active low. Button state is latched once
// per frame by the machine, never mid-frame.
type Joypad struct {
	selectBits uint8 // P1 bits 4-5 as last written
	buttons    uint8 // A/B/Select/Start, low 4 bits, active low
	dpad       uint8 // Right/Left/Up/Down, low 4 bits, active low

	// Interrupt is called when any selected line falls.
	Interrupt func()
}

func NewJoypad() *Joypad {
	return &Joypad{selectBits: 0x30, buttons: 0x0F, dpad: 0x0F}
}

func (j *Joypad) Read() byte {
	result := uint8(0xC0) | j.selectBits | 0x0F
	if !bit.IsSet(4, j.selectBits) {
		result &= 0xF0 | j.dpad
	}
	if !bit.IsSet(5, j.selectBits) {
		result &= 0xF0 | j.buttons
	}
	return result
}

func (j *Joypad) Write(value byte) {
	j.selectBits = value & 0x30
}

// Latch replaces the full button state. Each argument is a low nibble with
// pressed lines as 0. A high-to-low transition on a selected group requests
// the joypad interrupt.
func (j *Joypad) Latch(buttons, dpad uint8) {
	falling := j.buttons&^buttons | j.dpad&^dpad
	j.buttons = buttons & 0x0F
	j.dpad = dpad & 0x0F
	if falling != 0 && j.Interrupt != nil {
		j.Interrupt()
	}
}

// LatchInput converts pressed bits to the active-low line groups and
// latches them.
func (j *Joypad) LatchInput(in Input) {
	dpad := ^uint8(in) & 0x0F
	buttons := ^uint8(in>>4) & 0x0F
	j.Latch(buttons, dpad)
}

// JoypadState is the snapshot form of the joypad.
type JoypadState struct {
	SelectBits uint8
	Buttons    uint8
	Dpad       uint8
}

func (j *Joypad) State() JoypadState {
	return JoypadState{SelectBits: j.selectBits, Buttons: j.buttons, Dpad: j.dpad}
}

func (j *Joypad) SetState(s JoypadState) {
	j.selectBits, j.buttons, j.dpad = s.SelectBits, s.Buttons, s.Dpad
}
