package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoypadMatrix(t *testing.T) {
	t.Run("nothing selected reads all high", func(t *testing.T) {
		j := NewJoypad()
		j.Write(0x30)
		assert.Equal(t, byte(0xFF), j.Read())
	})

	t.Run("dpad group", func(t *testing.T) {
		j := NewJoypad()
		var in Input
		in.Press(ButtonLeft)
		j.LatchInput(in)

		j.Write(0x20) // select dpad (bit 4 low)
		assert.Equal(t, byte(0xED), j.Read(), "left line pulled low")

		j.Write(0x10) // select buttons only
		assert.Equal(t, byte(0xDF), j.Read(), "dpad invisible")
	})

	t.Run("button group", func(t *testing.T) {
		j := NewJoypad()
		var in Input
		in.Press(ButtonA)
		in.Press(ButtonStart)
		j.LatchInput(in)

		j.Write(0x10)
		assert.Equal(t, byte(0xD6), j.Read())
	})
}

func TestJoypadInterrupt(t *testing.T) {
	fired := 0
	j := NewJoypad()
	j.Interrupt = func() { fired++ }

	var in Input
	in.Press(ButtonA)
	j.LatchInput(in)
	assert.Equal(t, 1, fired, "press is a falling edge")

	j.LatchInput(in)
	assert.Equal(t, 1, fired, "holding does not retrigger")

	j.LatchInput(0)
	assert.Equal(t, 1, fired, "release is a rising edge")

	j.LatchInput(in)
	assert.Equal(t, 2, fired)
}

func TestInputBits(t *testing.T) {
	var in Input
	in.Press(ButtonB)
	in.Press(ButtonDown)

	assert.True(t, in.Pressed(ButtonB))
	assert.True(t, in.Pressed(ButtonDown))
	assert.False(t, in.Pressed(ButtonA))
}
