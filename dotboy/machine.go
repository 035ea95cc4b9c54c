// Package dotboy is a cycle-driven Game Boy (DMG) core. A Machine owns one
// cartridge and emulates whole frames at a time; the surrounding shell feeds
// it input and consumes framebuffers and audio samples.
package dotboy

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/mknezic/go-dotboy/dotboy/addr"
	"github.com/mknezic/go-dotboy/dotboy/audio"
	"github.com/mknezic/go-dotboy/dotboy/cpu"
	"github.com/mknezic/go-dotboy/dotboy/memory"
	"github.com/mknezic/go-dotboy/dotboy/state"
	"github.com/mknezic/go-dotboy/dotboy/video"
)

// cyclesPerFrame is one full LCD sweep: 154 lines of 456 dots.
const cyclesPerFrame = 70224

var (
	// ErrInvalidROM wraps every cartridge validation failure from PowerOn.
	ErrInvalidROM = errors.New("invalid rom")
	// ErrRewindDisabled is returned by Rewind when the history buffer is
	// configured off.
	ErrRewindDisabled = errors.New("rewind is disabled")
	// ErrNoHistory is returned by Rewind when not enough frames are
	// retained to go that far back.
	ErrNoHistory = errors.New("not enough rewind history")
)

// Input and Button re-export the pad types so shells only need this
// package.
type (
	Input  = memory.Input
	Button = memory.Button
)

// Button values for building an Input.
const (
	ButtonRight  = memory.ButtonRight
	ButtonLeft   = memory.ButtonLeft
	ButtonUp     = memory.ButtonUp
	ButtonDown   = memory.ButtonDown
	ButtonA      = memory.ButtonA
	ButtonB      = memory.ButtonB
	ButtonSelect = memory.ButtonSelect
	ButtonStart  = memory.ButtonStart
)

// Machine is one running console. It is single threaded: callers drive it
// one frame at a time and must not call methods concurrently.
type Machine struct {
	cfg   Config
	rom   []byte
	clock memory.Clock

	cart *memory.Cartridge
	bus  *memory.Bus
	cpu  *cpu.CPU
	ppu  *video.PPU
	apu  *audio.APU

	romHash [sha256.Size]byte
	frame   uint64
	rewind  *state.Rewind
}

// Option adjusts machine construction.
type Option func(*Machine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(m *Machine) { m.cfg = cfg }
}

// WithClock supplies a time source for mapper RTC support. Without one the
// RTC registers stay frozen, which keeps replay deterministic.
func WithClock(clock memory.Clock) Option {
	return func(m *Machine) { m.clock = clock }
}

// PowerOn validates the ROM and builds a machine in post-boot state. All
// cartridge problems are reported as ErrInvalidROM before anything is
// constructed.
func PowerOn(rom []byte, opts ...Option) (*Machine, error) {
	m := &Machine{cfg: DefaultConfig(), rom: rom}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.cfg.validate(); err != nil {
		return nil, err
	}

	cart, err := memory.LoadCartridge(rom)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidROM, err)
	}
	m.cart = cart
	m.romHash = state.HashROM(rom)
	m.wire()

	if m.cfg.RewindFrames > 0 {
		m.rewind = state.NewRewind(m.cfg.RewindFrames)
	}

	log.WithFields(log.Fields{
		"title":  cart.Title,
		"mapper": cart.Mapper.String(),
		"rewind": m.cfg.RewindFrames,
	}).Info("machine powered on")
	return m, nil
}

// wire builds the component graph from the loaded cartridge.
func (m *Machine) wire() {
	bus := memory.New(memory.NewMBC(m.cart, m.clock))
	ppu := video.New()
	ppu.SetPalette(m.cfg.Palette)
	ppu.VBlank = func() { bus.RequestInterrupt(addr.VBlankInterrupt) }
	ppu.Stat = func() { bus.RequestInterrupt(addr.StatInterrupt) }
	bus.AttachVideo(ppu)

	apu := audio.New(m.cfg.SampleRate)
	bus.AttachAudio(apu)

	m.bus = bus
	m.ppu = ppu
	m.apu = apu
	m.cpu = cpu.New(bus)
}

// Reset returns the machine to power-on state with the same cartridge.
// Rewind history is discarded.
func (m *Machine) Reset() {
	m.wire()
	m.frame = 0
	if m.rewind != nil {
		m.rewind = state.NewRewind(m.cfg.RewindFrames)
	}
}

// RunFrame latches the given input for the whole frame, runs the machine
// until the frame completes, and returns the framebuffer by value along
// with the audio samples it produced. A locked CPU surfaces
// cpu.ErrLockedOpcode; the machine stays intact and can be Reset.
func (m *Machine) RunFrame(input Input) (video.FrameBuffer, []int16, error) {
	var snap *state.Snapshot
	if m.rewind != nil && m.frame%uint64(m.cfg.SnapshotInterval) == 0 {
		s := m.Capture()
		snap = &s
	}

	fb, samples, err := m.runFrame(input)
	// a faulted frame never completed; it earns no history entry
	if err == nil && m.rewind != nil {
		m.rewind.Record(snap, input)
	}
	return fb, samples, err
}

// runFrame is RunFrame without the history recording, used for replay.
func (m *Machine) runFrame(input Input) (video.FrameBuffer, []int16, error) {
	m.bus.Joypad.LatchInput(input)

	// The budget bounds the loop when the LCD is off and no v-blank will
	// ever arrive; the frame then covers exactly one frame's cycles.
	budget := cyclesPerFrame
	for !m.ppu.FrameDone() && budget > 0 {
		cycles, err := m.cpu.Step()
		if err != nil {
			return m.ppu.Frame(), m.apu.DrainSamples(), fmt.Errorf("frame %d: %w", m.frame, err)
		}
		m.bus.Tick(cycles)
		m.ppu.Tick(cycles)
		m.apu.Tick(cycles)
		budget -= cycles
	}

	m.frame++
	return m.ppu.TakeFrame(), m.apu.DrainSamples(), nil
}

// Capture produces a self-contained snapshot of the whole machine.
func (m *Machine) Capture() state.Snapshot {
	return state.Snapshot{
		Frame: m.frame,
		CPU:   m.cpu.Save(),
		Bus:   m.bus.State(),
		Video: m.ppu.Save(),
		Audio: m.apu.Save(),
	}
}

// Restore loads a snapshot produced by Capture. It never fails for
// self-produced snapshots.
func (m *Machine) Restore(s state.Snapshot) {
	m.frame = s.Frame
	m.cpu.Load(s.CPU)
	m.bus.SetState(s.Bus)
	m.ppu.Load(s.Video)
	m.apu.Load(s.Audio)
}

// Rewind steps n frames back through retained history, replaying journaled
// inputs when the restore point predates the target frame.
func (m *Machine) Rewind(n int) error {
	if m.rewind == nil {
		return ErrRewindDisabled
	}
	snap, inputs, ok := m.rewind.Seek(n)
	if !ok {
		return ErrNoHistory
	}
	m.Restore(snap)
	for _, input := range inputs {
		if _, _, err := m.runFrame(input); err != nil {
			return err
		}
	}
	return nil
}

// SaveState writes a versioned save state to w.
func (m *Machine) SaveState(w io.Writer) error {
	return state.Encode(w, m.romHash, m.Capture())
}

// LoadState restores a save state, rejecting files written for another ROM
// or an incompatible format version.
func (m *Machine) LoadState(r io.Reader) error {
	snap, err := state.Decode(r, m.romHash)
	if err != nil {
		return err
	}
	m.Restore(snap)
	// history recorded before the load belongs to another timeline
	if m.rewind != nil {
		m.rewind = state.NewRewind(m.cfg.RewindFrames)
	}
	return nil
}

// Frame returns the number of completed frames since power-on or the last
// restore.
func (m *Machine) Frame() uint64 { return m.frame }

// Cartridge exposes the parsed cartridge header.
func (m *Machine) Cartridge() *memory.Cartridge { return m.cart }

// SampleRate returns the audio output rate in Hz.
func (m *Machine) SampleRate() int { return m.apu.SampleRate() }
