package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mknezic/go-dotboy/dotboy/addr"
)

func TestTimerDIV(t *testing.T) {
	t.Run("counts up every 256 cycles", func(t *testing.T) {
		var timer Timer
		timer.Tick(256)
		assert.Equal(t, byte(1), timer.Read(addr.DIV))
		timer.Tick(256 * 3)
		assert.Equal(t, byte(4), timer.Read(addr.DIV))
	})

	t.Run("any write resets the counter", func(t *testing.T) {
		var timer Timer
		timer.Tick(1000)
		require.NotZero(t, timer.Read(addr.DIV))

		timer.Write(addr.DIV, 0x55)

		assert.Equal(t, byte(0), timer.Read(addr.DIV))
		assert.Equal(t, byte(0xF8), timer.Read(addr.TAC), "TAC unaffected")
	})
}

func TestTimerTIMA(t *testing.T) {
	rates := []struct {
		name   string
		tac    byte
		cycles int
	}{
		{name: "4096 Hz", tac: 0x04, cycles: 1024},
		{name: "262144 Hz", tac: 0x05, cycles: 16},
		{name: "65536 Hz", tac: 0x06, cycles: 64},
		{name: "16384 Hz", tac: 0x07, cycles: 256},
	}

	for _, tt := range rates {
		t.Run(tt.name, func(t *testing.T) {
			var timer Timer
			timer.Write(addr.TAC, tt.tac)

			timer.Tick(tt.cycles * 3)

			assert.Equal(t, byte(3), timer.Read(addr.TIMA))
		})
	}

	t.Run("disabled timer does not count", func(t *testing.T) {
		var timer Timer
		timer.Write(addr.TAC, 0x01) // rate set, enable bit clear
		timer.Tick(4096)
		assert.Equal(t, byte(0), timer.Read(addr.TIMA))
	})
}

func TestTimerOverflow(t *testing.T) {
	fired := 0
	var timer Timer
	timer.Interrupt = func() { fired++ }
	timer.Write(addr.TAC, 0x05) // fastest rate, every 16 cycles
	timer.Write(addr.TMA, 0xAB)
	timer.Write(addr.TIMA, 0xFF)

	// the increment that overflows leaves TIMA at zero for four cycles
	timer.Tick(16)
	assert.Equal(t, byte(0x00), timer.Read(addr.TIMA))
	assert.Zero(t, fired)

	// then TMA is loaded, with the interrupt on the following cycle
	timer.Tick(4)
	assert.Equal(t, byte(0xAB), timer.Read(addr.TIMA))
	assert.Zero(t, fired)

	timer.Tick(1)
	assert.Equal(t, 1, fired)
}
