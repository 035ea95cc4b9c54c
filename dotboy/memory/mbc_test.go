package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bankedROM marks the first byte of every 16KB bank with its bank number.
func bankedROM(banks int) []byte {
	rom := make([]byte, banks*0x4000)
	for b := 0; b < banks; b++ {
		rom[b*0x4000] = byte(b)
	}
	return rom
}

func TestMBC1(t *testing.T) {
	t.Run("bank zero maps to one", func(t *testing.T) {
		m := newMBC1(bankedROM(4), 0)
		m.Write(0x2000, 0x00)
		assert.Equal(t, uint8(1), m.Read(0x4000))
	})

	t.Run("switchable window follows the bank register", func(t *testing.T) {
		m := newMBC1(bankedROM(4), 0)
		m.Write(0x2000, 0x02)
		assert.Equal(t, uint8(0), m.Read(0x0000), "fixed window stays on bank 0")
		assert.Equal(t, uint8(2), m.Read(0x4000))
	})

	t.Run("out of range bank wraps", func(t *testing.T) {
		m := newMBC1(bankedROM(4), 0)
		m.Write(0x2000, 0x0A) // bank 10 on a 4-bank ROM
		assert.Equal(t, uint8(2), m.Read(0x4000))
	})

	t.Run("trailing partial bank never maps", func(t *testing.T) {
		// header validation accepts images longer than a bank multiple
		rom := append(bankedROM(2), 0xAA)
		rom[0x3FFF] = 0x77
		m := newMBC1(rom, 0)

		m.Write(0x2000, 0x02) // one past the last full bank

		assert.Equal(t, uint8(0), m.Read(0x4000), "wraps to a full bank")
		assert.Equal(t, uint8(0x77), m.Read(0x7FFF))
	})

	t.Run("ram requires the enable sequence", func(t *testing.T) {
		m := newMBC1(bankedROM(4), 1)

		m.Write(0xA000, 0x42)
		assert.Equal(t, uint8(0xFF), m.Read(0xA000), "disabled ram reads open bus")

		m.Write(0x0000, 0x0A)
		m.Write(0xA000, 0x42)
		assert.Equal(t, uint8(0x42), m.Read(0xA000))

		m.Write(0x0000, 0x00)
		assert.Equal(t, uint8(0xFF), m.Read(0xA000))
	})

	t.Run("mode one switches ram banks", func(t *testing.T) {
		m := newMBC1(bankedROM(4), 4)
		m.Write(0x0000, 0x0A)
		m.Write(0x6000, 0x01) // banking mode
		m.Write(0x4000, 0x02) // ram bank 2
		m.Write(0xA000, 0x11)
		m.Write(0x4000, 0x00)
		assert.Equal(t, uint8(0x00), m.Read(0xA000))
		m.Write(0x4000, 0x02)
		assert.Equal(t, uint8(0x11), m.Read(0xA000))
	})
}

func TestMBC2(t *testing.T) {
	m := newMBC2(bankedROM(4))

	t.Run("address bit eight selects the control", func(t *testing.T) {
		m.Write(0x0100, 0x03) // bit 8 set: rom bank
		assert.Equal(t, uint8(3), m.Read(0x4000))

		m.Write(0x0000, 0x0A) // bit 8 clear: ram enable
		m.Write(0xA000, 0x05)
		assert.Equal(t, uint8(0xF5), m.Read(0xA000), "upper nibble reads as ones")
	})

	t.Run("ram is 512 half bytes, echoed above", func(t *testing.T) {
		m.Write(0xA010, 0xFF)
		assert.Equal(t, uint8(0x0F), m.Read(0xA010)&0x0F, "only the low nibble is stored")
		assert.Equal(t, m.Read(0xA010), m.Read(0xA210), "echo every 512 bytes")
	})
}

// fakeClock is a settable RTC time source.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestMBC3RTC(t *testing.T) {
	t.Run("latch copies elapsed time into the registers", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1000, 0)}
		m := newMBC3(bankedROM(4), 1, true, clock)
		m.Write(0x0000, 0x0A)
		m.Write(0x4000, 0x08) // select RTC seconds

		clock.now = clock.now.Add(90*time.Second + 2*time.Hour)
		m.Write(0x6000, 0x00)
		m.Write(0x6000, 0x01)

		assert.Equal(t, uint8(30), m.Read(0xA000), "seconds")
		m.Write(0x4000, 0x09)
		assert.Equal(t, uint8(1), m.Read(0xA000), "minutes")
		m.Write(0x4000, 0x0A)
		assert.Equal(t, uint8(2), m.Read(0xA000), "hours")
	})

	t.Run("registers stay latched until the next sequence", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		m := newMBC3(bankedROM(4), 1, true, clock)
		m.Write(0x0000, 0x0A)
		m.Write(0x4000, 0x08)

		clock.now = clock.now.Add(10 * time.Second)
		m.Write(0x6000, 0x00)
		m.Write(0x6000, 0x01)
		require.Equal(t, uint8(10), m.Read(0xA000))

		clock.now = clock.now.Add(25 * time.Second)
		assert.Equal(t, uint8(10), m.Read(0xA000), "unchanged without a latch")

		m.Write(0x6000, 0x00)
		m.Write(0x6000, 0x01)
		assert.Equal(t, uint8(35), m.Read(0xA000))
	})

	t.Run("nil clock freezes the registers", func(t *testing.T) {
		m := newMBC3(bankedROM(4), 1, true, nil)
		m.Write(0x0000, 0x0A)
		m.Write(0x4000, 0x08)
		m.Write(0x6000, 0x00)
		m.Write(0x6000, 0x01)
		assert.Equal(t, uint8(0), m.Read(0xA000))
	})

	t.Run("banking works like mbc1 without the upper bits quirk", func(t *testing.T) {
		m := newMBC3(bankedROM(8), 1, false, nil)
		m.Write(0x2000, 0x07)
		assert.Equal(t, uint8(7), m.Read(0x4000))
	})
}

func TestMBC5(t *testing.T) {
	t.Run("nine bit bank register", func(t *testing.T) {
		m := newMBC5(bankedROM(8), 0)
		m.Write(0x2000, 0x05)
		assert.Equal(t, uint8(5), m.Read(0x4000))

		// the ninth bit wraps on this small ROM: bank 0x105 % 8 = 5
		m.Write(0x3000, 0x01)
		assert.Equal(t, uint8(5), m.Read(0x4000))
	})

	t.Run("bank zero is selectable", func(t *testing.T) {
		m := newMBC5(bankedROM(8), 0)
		m.Write(0x2000, 0x00)
		assert.Equal(t, uint8(0), m.Read(0x4000))
	})
}

func TestMBCStateRoundTrip(t *testing.T) {
	m := newMBC1(bankedROM(4), 1)
	m.Write(0x0000, 0x0A)
	m.Write(0x2000, 0x03)
	m.Write(0xA000, 0x99)
	saved := m.State()

	m.Write(0x2000, 0x01)
	m.Write(0xA000, 0x00)

	m.SetState(saved)
	assert.Equal(t, uint8(3), m.Read(0x4000))
	assert.Equal(t, uint8(0x99), m.Read(0xA000))
}
