package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mknezic/go-dotboy/dotboy/addr"
)

// stubDevice records reads and writes like a memory-mapped peripheral.
type stubDevice struct {
	mem map[uint16]byte
}

func newStubDevice() *stubDevice {
	return &stubDevice{mem: make(map[uint16]byte)}
}

func (d *stubDevice) Read(address uint16) byte         { return d.mem[address] }
func (d *stubDevice) Write(address uint16, value byte) { d.mem[address] = value }

func newTestBus(t *testing.T) (*Bus, *stubDevice, *stubDevice) {
	t.Helper()
	cart, err := LoadCartridge(buildROM(0x00, 0x00, 0x00))
	require.NoError(t, err)

	bus := New(NewMBC(cart, nil))
	video := newStubDevice()
	audio := newStubDevice()
	bus.AttachVideo(video)
	bus.AttachAudio(audio)
	return bus, video, audio
}

func TestBusDispatch(t *testing.T) {
	bus, video, audio := newTestBus(t)

	t.Run("work ram and its echo", func(t *testing.T) {
		bus.Write(0xC123, 0x42)
		assert.Equal(t, byte(0x42), bus.Read(0xC123))
		assert.Equal(t, byte(0x42), bus.Read(0xE123), "echo mirrors wram")

		bus.Write(0xFDFF, 0x24)
		assert.Equal(t, byte(0x24), bus.Read(0xDDFF))
	})

	t.Run("unusable region", func(t *testing.T) {
		bus.Write(0xFEA0, 0x42)
		assert.Equal(t, byte(0xFF), bus.Read(0xFEA0))
	})

	t.Run("vram and oam go to the video device", func(t *testing.T) {
		bus.Write(0x8010, 0x55)
		assert.Equal(t, byte(0x55), video.mem[0x8010])
		bus.Write(0xFE00, 0x66)
		assert.Equal(t, byte(0x66), video.mem[0xFE00])
	})

	t.Run("audio registers go to the audio device", func(t *testing.T) {
		bus.Write(addr.NR52, 0x80)
		assert.Equal(t, byte(0x80), audio.mem[addr.NR52])
		bus.Write(addr.WaveRAMStart, 0x12)
		assert.Equal(t, byte(0x12), audio.mem[addr.WaveRAMStart])
	})

	t.Run("high ram", func(t *testing.T) {
		bus.Write(0xFF80, 0x99)
		assert.Equal(t, byte(0x99), bus.Read(0xFF80))
	})

	t.Run("unmapped registers read open bus", func(t *testing.T) {
		assert.Equal(t, byte(0xFF), bus.Read(0xFF03))
		assert.Equal(t, byte(0xFF), bus.Read(0xFF4C))
		bus.Write(0xFF7F, 0x12)
		assert.Equal(t, byte(0xFF), bus.Read(0xFF7F), "writes do not stick")
	})
}

func TestBusInterruptRegisters(t *testing.T) {
	bus, _, _ := newTestBus(t)

	bus.Write(addr.IE, 0x1F)
	assert.Equal(t, byte(0x1F), bus.Read(addr.IE))

	bus.Write(addr.IF, 0xFF)
	assert.Equal(t, byte(0xFF), bus.Read(addr.IF), "upper three bits read as set")

	bus.Write(addr.IF, 0x00)
	bus.RequestInterrupt(addr.TimerInterrupt)
	assert.Equal(t, byte(0xE4), bus.Read(addr.IF))
}

func TestBusDMA(t *testing.T) {
	bus, video, _ := newTestBus(t)

	for i := uint16(0); i < 160; i++ {
		bus.Write(0xC000+i, byte(i))
	}

	bus.Write(addr.DMA, 0xC0)

	for i := uint16(0); i < 160; i++ {
		assert.Equal(t, byte(i), video.mem[addr.OAMStart+i])
	}
	assert.Equal(t, byte(0xC0), bus.Read(addr.DMA), "last source page readable back")
}

func TestBusStateRoundTrip(t *testing.T) {
	bus, _, _ := newTestBus(t)

	bus.Write(0xC000, 0xAA)
	bus.Write(0xFF80, 0xBB)
	bus.Write(addr.IE, 0x05)
	bus.RequestInterrupt(addr.VBlankInterrupt)
	bus.Write(addr.TMA, 0x17)
	saved := bus.State()

	bus.Write(0xC000, 0x00)
	bus.Write(0xFF80, 0x00)
	bus.Write(addr.IE, 0x00)
	bus.Write(addr.IF, 0x00)
	bus.Write(addr.TMA, 0x00)

	bus.SetState(saved)
	assert.Equal(t, byte(0xAA), bus.Read(0xC000))
	assert.Equal(t, byte(0xBB), bus.Read(0xFF80))
	assert.Equal(t, byte(0x05), bus.Read(addr.IE))
	assert.Equal(t, byte(0xE1), bus.Read(addr.IF))
	assert.Equal(t, byte(0x17), bus.Read(addr.TMA))
}
