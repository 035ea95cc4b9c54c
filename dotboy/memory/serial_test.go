package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialTransferWithoutPeer(t *testing.T) {
	fired := 0
	var s Serial
	s.Interrupt = func() { fired++ }

	s.Write(0xFF01, 0x42)
	s.Write(0xFF02, 0x81) // start, internal clock

	s.Tick(serialBitCycles*8 - 1)
	assert.Zero(t, fired)
	assert.Equal(t, byte(0x81|0x7E), s.Read(0xFF02), "transfer still running")

	s.Tick(1)
	assert.Equal(t, 1, fired)
	assert.Equal(t, byte(0xFF), s.Read(0xFF01), "disconnected peer shifts in ones")
	assert.Equal(t, byte(0x01|0x7E), s.Read(0xFF02), "start bit cleared")
}

func TestSerialExternalClockNeverCompletes(t *testing.T) {
	fired := 0
	var s Serial
	s.Interrupt = func() { fired++ }

	s.Write(0xFF02, 0x80) // start, external clock
	s.Tick(serialBitCycles * 100)

	assert.Zero(t, fired)
}
