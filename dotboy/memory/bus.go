package memory

import (
	"github.com/mknezic/go-dotboy/dotboy/addr"
	"github.com/mknezic/go-dotboy/dotboy/bit"
)

// Device is a memory-mapped peripheral the bus routes a range of addresses
// to. The PPU serves VRAM, OAM and its registers through this; the APU its
// register block.
type Device interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
}

type region uint8

const (
	regionROM region = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// Bus routes every address of the 16-bit space to exactly one owner: the
// cartridge mapper, work/high RAM held here, or a peripheral. The bus itself
// has no side effects beyond dispatch.
type Bus struct {
	mbc  MBC
	wram [0x2000]byte
	hram [0x7F]byte
	io   [0x80]byte // last written values for registers without a read handler
	ie   byte
	ifl  byte

	regionMap [256]region

	Timer  Timer
	Joypad *Joypad
	Serial Serial

	video Device
	audio Device
}

// New builds a bus around the given mapper. Video and audio devices are
// attached separately to break the construction cycle.
func New(mbc MBC) *Bus {
	b := &Bus{mbc: mbc, Joypad: NewJoypad()}
	b.Timer.Interrupt = func() { b.RequestInterrupt(addr.TimerInterrupt) }
	b.Serial.Interrupt = func() { b.RequestInterrupt(addr.SerialInterrupt) }
	b.Joypad.Interrupt = func() { b.RequestInterrupt(addr.JoypadInterrupt) }
	b.initRegionMap()
	return b
}

func (b *Bus) initRegionMap() {
	for page := 0; page < 256; page++ {
		switch {
		case page <= 0x7F:
			b.regionMap[page] = regionROM
		case page <= 0x9F:
			b.regionMap[page] = regionVRAM
		case page <= 0xBF:
			b.regionMap[page] = regionExtRAM
		case page <= 0xDF:
			b.regionMap[page] = regionWRAM
		case page <= 0xFD:
			b.regionMap[page] = regionEcho
		case page == 0xFE:
			b.regionMap[page] = regionOAM
		default:
			b.regionMap[page] = regionIO
		}
	}
}

func (b *Bus) AttachVideo(d Device) { b.video = d }
func (b *Bus) AttachAudio(d Device) { b.audio = d }

// Tick advances the bus-owned peripherals that run off the shared clock.
func (b *Bus) Tick(cycles int) {
	b.Timer.Tick(cycles)
	b.Serial.Tick(cycles)
}

// RequestInterrupt sets the IF bit for the given source.
func (b *Bus) RequestInterrupt(i addr.Interrupt) {
	b.ifl = bit.Set(uint8(i), b.ifl)
}

func (b *Bus) Read(address uint16) byte {
	switch b.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		return b.mbc.Read(address)
	case regionVRAM:
		return b.video.Read(address)
	case regionWRAM:
		return b.wram[address-0xC000]
	case regionEcho:
		return b.wram[(address-0xE000)&0x1FFF]
	case regionOAM:
		if address <= addr.OAMEnd {
			return b.video.Read(address)
		}
		// 0xFEA0-0xFEFF is unusable
		return 0xFF
	default:
		return b.readIO(address)
	}
}

func (b *Bus) Write(address uint16, value byte) {
	switch b.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		b.mbc.Write(address, value)
	case regionVRAM:
		b.video.Write(address, value)
	case regionWRAM:
		b.wram[address-0xC000] = value
	case regionEcho:
		b.wram[(address-0xE000)&0x1FFF] = value
	case regionOAM:
		if address <= addr.OAMEnd {
			b.video.Write(address, value)
		}
	default:
		b.writeIO(address, value)
	}
}

func (b *Bus) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return b.Joypad.Read()
	case address == addr.SB || address == addr.SC:
		return b.Serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return b.Timer.Read(address)
	case address == addr.IF:
		// upper 3 bits always read as set
		return b.ifl | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return b.audio.Read(address)
	case address >= addr.LCDC && address <= addr.WX:
		if address == addr.DMA {
			return b.io[address&0x7F]
		}
		return b.video.Read(address)
	case address == addr.IE:
		return b.ie
	case address >= 0xFF80:
		return b.hram[address-0xFF80]
	default:
		// registers with no hardware behind them read open bus
		return 0xFF
	}
}

func (b *Bus) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		b.Joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		b.Serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		b.Timer.Write(address, value)
	case address == addr.IF:
		b.ifl = value & 0x1F
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		b.audio.Write(address, value)
	case address == addr.DMA:
		b.io[address&0x7F] = value
		b.dmaTransfer(value)
	case address >= addr.LCDC && address <= addr.WX:
		b.video.Write(address, value)
	case address == addr.IE:
		b.ie = value
	case address >= 0xFF80:
		b.hram[address-0xFF80] = value
	default:
		b.io[address&0x7F] = value
	}
}

// dmaTransfer copies 160 bytes from value<<8 into OAM. Modeled as an
// instant copy; software waits out the transfer in HRAM anyway.
func (b *Bus) dmaTransfer(value byte) {
	source := uint16(value) << 8
	for i := uint16(0); i < 160; i++ {
		b.video.Write(addr.OAMStart+i, b.Read(source+i))
	}
}

// InterruptFlags returns IF as the CPU sees it.
func (b *Bus) InterruptFlags() byte { return b.ifl | 0xE0 }

// BusState captures everything the bus owns: RAM contents, interrupt
// registers, peripheral state and the mapper's bank selection.
type BusState struct {
	WRAM   [0x2000]byte
	HRAM   [0x7F]byte
	IO     [0x80]byte
	IE     byte
	IF     byte
	Timer  TimerState
	Joypad JoypadState
	Serial SerialState
	MBC    MBCState
}

func (b *Bus) State() BusState {
	return BusState{
		WRAM: b.wram, HRAM: b.hram, IO: b.io,
		IE: b.ie, IF: b.ifl,
		Timer:  b.Timer.State(),
		Joypad: b.Joypad.State(),
		Serial: b.Serial.State(),
		MBC:    b.mbc.State(),
	}
}

func (b *Bus) SetState(s BusState) {
	b.wram, b.hram, b.io = s.WRAM, s.HRAM, s.IO
	b.ie, b.ifl = s.IE, s.IF
	b.Timer.SetState(s.Timer)
	b.Joypad.SetState(s.Joypad)
	b.Serial.SetState(s.Serial)
	b.mbc.SetState(s.MBC)
}
