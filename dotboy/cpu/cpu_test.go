package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramBus is a flat 64 KiB memory with no side effects.
type ramBus struct {
	mem [0x10000]byte
}

func (r *ramBus) Read(address uint16) byte         { return r.mem[address] }
func (r *ramBus) Write(address uint16, value byte) { r.mem[address] = value }

// newTestCPU loads the program at the reset PC (0x0100).
func newTestCPU(program ...byte) (*CPU, *ramBus) {
	bus := &ramBus{}
	copy(bus.mem[0x0100:], program)
	return New(bus), bus
}

func TestReset(t *testing.T) {
	c, _ := newTestCPU()

	assert.Equal(t, uint16(0x01B0), c.AF())
	assert.Equal(t, uint16(0x0013), c.BC())
	assert.Equal(t, uint16(0x00D8), c.DE())
	assert.Equal(t, uint16(0x014D), c.HL())
	assert.Equal(t, uint16(0xFFFE), c.SP())
	assert.Equal(t, uint16(0x0100), c.PC())
	assert.False(t, c.IME())
}

func TestCycleTable(t *testing.T) {
	// Reset flags are Z=1 N=0 H=1 C=1, which decides the branch cases.
	tests := []struct {
		name    string
		program []byte
		setup   func(c *CPU, bus *ramBus)
		cycles  int
		pc      uint16
	}{
		{name: "NOP", program: []byte{0x00}, cycles: 4, pc: 0x0101},
		{name: "LD B,n", program: []byte{0x06, 0x42}, cycles: 8, pc: 0x0102},
		{name: "LD B,C", program: []byte{0x41}, cycles: 4, pc: 0x0101},
		{name: "LD B,(HL)", program: []byte{0x46}, cycles: 8, pc: 0x0101},
		{name: "LD (HL),n", program: []byte{0x36, 0x42}, cycles: 12, pc: 0x0102},
		{name: "LD BC,nn", program: []byte{0x01, 0x34, 0x12}, cycles: 12, pc: 0x0103},
		{name: "LD (nn),SP", program: []byte{0x08, 0x00, 0xC0}, cycles: 20, pc: 0x0103},
		{name: "LD SP,HL", program: []byte{0xF9}, cycles: 8, pc: 0x0101},
		{name: "LD HL,SP+e", program: []byte{0xF8, 0x02}, cycles: 12, pc: 0x0102},
		{name: "ADD SP,e", program: []byte{0xE8, 0x02}, cycles: 16, pc: 0x0102},
		{name: "LD (nn),A", program: []byte{0xEA, 0x00, 0xC0}, cycles: 16, pc: 0x0103},
		{name: "LDH (n),A", program: []byte{0xE0, 0x80}, cycles: 12, pc: 0x0102},
		{name: "LD A,(BC)", program: []byte{0x0A}, cycles: 8, pc: 0x0101},
		{name: "ADD A,B", program: []byte{0x80}, cycles: 4, pc: 0x0101},
		{name: "ADD A,(HL)", program: []byte{0x86}, cycles: 8, pc: 0x0101},
		{name: "ADD A,n", program: []byte{0xC6, 0x01}, cycles: 8, pc: 0x0102},
		{name: "INC A", program: []byte{0x3C}, cycles: 4, pc: 0x0101},
		{name: "INC (HL)", program: []byte{0x34}, cycles: 12, pc: 0x0101},
		{name: "INC BC", program: []byte{0x03}, cycles: 8, pc: 0x0101},
		{name: "ADD HL,BC", program: []byte{0x09}, cycles: 8, pc: 0x0101},
		{name: "DAA", program: []byte{0x27}, cycles: 4, pc: 0x0101},

		{name: "JR taken", program: []byte{0x18, 0x05}, cycles: 12, pc: 0x0107},
		{name: "JR NZ untaken", program: []byte{0x20, 0x05}, cycles: 8, pc: 0x0102},
		{name: "JR Z taken", program: []byte{0x28, 0x05}, cycles: 12, pc: 0x0107},
		{name: "JR Z backwards", program: []byte{0x28, 0xFE}, cycles: 12, pc: 0x0100},
		{name: "JP nn", program: []byte{0xC3, 0x00, 0x40}, cycles: 16, pc: 0x4000},
		{name: "JP NZ untaken", program: []byte{0xC2, 0x00, 0x40}, cycles: 12, pc: 0x0103},
		{name: "JP C taken", program: []byte{0xDA, 0x00, 0x40}, cycles: 16, pc: 0x4000},
		{name: "JP (HL)", program: []byte{0xE9}, cycles: 4, pc: 0x014D},
		{name: "CALL nn", program: []byte{0xCD, 0x00, 0x40}, cycles: 24, pc: 0x4000},
		{name: "CALL NZ untaken", program: []byte{0xC4, 0x00, 0x40}, cycles: 12, pc: 0x0103},
		{name: "CALL Z taken", program: []byte{0xCC, 0x00, 0x40}, cycles: 24, pc: 0x4000},
		{
			name: "RET", program: []byte{0xC9}, cycles: 16, pc: 0x4000,
			setup: func(c *CPU, bus *ramBus) {
				c.sp = 0xFFF0
				bus.mem[0xFFF0] = 0x00
				bus.mem[0xFFF1] = 0x40
			},
		},
		{name: "RET NZ untaken", program: []byte{0xC0}, cycles: 8, pc: 0x0101},
		{
			name: "RET Z taken", program: []byte{0xC8}, cycles: 20, pc: 0x4000,
			setup: func(c *CPU, bus *ramBus) {
				c.sp = 0xFFF0
				bus.mem[0xFFF0] = 0x00
				bus.mem[0xFFF1] = 0x40
			},
		},
		{name: "RST 0x38", program: []byte{0xFF}, cycles: 16, pc: 0x0038},
		{name: "PUSH BC", program: []byte{0xC5}, cycles: 16, pc: 0x0101},
		{
			name: "POP BC", program: []byte{0xC1}, cycles: 12, pc: 0x0101,
			setup: func(c *CPU, bus *ramBus) { c.sp = 0xFFF0 },
		},
		{name: "EI", program: []byte{0xFB}, cycles: 4, pc: 0x0101},
		{name: "DI", program: []byte{0xF3}, cycles: 4, pc: 0x0101},
		{name: "RETI", program: []byte{0xD9}, cycles: 16, pc: 0x0000},
		{name: "HALT", program: []byte{0x76}, cycles: 4, pc: 0x0101},

		{name: "CB RLC B", program: []byte{0xCB, 0x00}, cycles: 8, pc: 0x0102},
		{name: "CB RL (HL)", program: []byte{0xCB, 0x16}, cycles: 16, pc: 0x0102},
		{name: "CB BIT 0,B", program: []byte{0xCB, 0x40}, cycles: 8, pc: 0x0102},
		{name: "CB BIT 0,(HL)", program: []byte{0xCB, 0x46}, cycles: 12, pc: 0x0102},
		{name: "CB SET 7,(HL)", program: []byte{0xCB, 0xFE}, cycles: 16, pc: 0x0102},
		{name: "CB SWAP A", program: []byte{0xCB, 0x37}, cycles: 8, pc: 0x0102},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, bus := newTestCPU(tt.program...)
			if tt.setup != nil {
				tt.setup(c, bus)
			}

			cycles, err := c.Step()

			require.NoError(t, err)
			assert.Equal(t, tt.cycles, cycles, "cycle count")
			assert.Equal(t, tt.pc, c.PC(), "program counter")
		})
	}
}

func TestALUFlags(t *testing.T) {
	tests := []struct {
		name    string
		program []byte
		a       uint8
		f       uint8
		wantA   uint8
		wantF   uint8
	}{
		{name: "ADD half carry", program: []byte{0xC6, 0x01}, a: 0x0F, wantA: 0x10, wantF: 0x20},
		{name: "ADD carry and zero", program: []byte{0xC6, 0x01}, a: 0xFF, wantA: 0x00, wantF: 0xB0},
		{name: "ADC uses carry in", program: []byte{0xCE, 0x00}, a: 0x00, f: 0x10, wantA: 0x01, wantF: 0x00},
		{name: "SUB borrow", program: []byte{0xD6, 0x01}, a: 0x10, wantA: 0x0F, wantF: 0x60},
		{name: "SUB underflow", program: []byte{0xD6, 0x01}, a: 0x00, wantA: 0xFF, wantF: 0x70},
		{name: "CP equal leaves A", program: []byte{0xFE, 0x42}, a: 0x42, wantA: 0x42, wantF: 0xC0},
		{name: "AND sets H", program: []byte{0xE6, 0x0F}, a: 0xF0, wantA: 0x00, wantF: 0xA0},
		{name: "XOR clears all but Z", program: []byte{0xEE, 0xFF}, a: 0xFF, wantA: 0x00, wantF: 0x80},
		{name: "DAA after BCD add", program: []byte{0x27}, a: 0x3C, wantA: 0x42, wantF: 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCPU(tt.program...)
			c.a = tt.a
			c.f = tt.f

			_, err := c.Step()

			require.NoError(t, err)
			assert.Equal(t, tt.wantA, c.a, "accumulator")
			assert.Equal(t, tt.wantF, c.f, "flags")
		})
	}
}

func TestIncPreservesCarry(t *testing.T) {
	c, _ := newTestCPU(0x3C) // INC A
	c.a = 0xFF
	c.f = 0x10

	_, err := c.Step()

	require.NoError(t, err)
	assert.Equal(t, uint8(0x00), c.a)
	// Z and H set, C untouched
	assert.Equal(t, uint8(0xB0), c.f)
}

func TestAddSignedFlags(t *testing.T) {
	// ADD SP,+1 with SP=0x00FF carries out of both low nibble and low byte.
	c, _ := newTestCPU(0xE8, 0x01)
	c.sp = 0x00FF

	_, err := c.Step()

	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), c.sp)
	assert.Equal(t, uint8(0x30), c.f)
}

func TestInterruptService(t *testing.T) {
	t.Run("jumps to vector and clears IF bit", func(t *testing.T) {
		c, bus := newTestCPU(0x00)
		c.ime = true
		bus.mem[0xFFFF] = 0x04 // timer enabled
		bus.mem[0xFF0F] = 0x04 // timer pending

		cycles, err := c.Step()

		require.NoError(t, err)
		assert.Equal(t, 20, cycles)
		assert.Equal(t, uint16(0x0050), c.PC())
		assert.False(t, c.IME())
		assert.Equal(t, uint8(0x00), bus.mem[0xFF0F])
		// old PC pushed, low byte at SP
		assert.Equal(t, uint8(0x00), bus.mem[c.sp])
		assert.Equal(t, uint8(0x01), bus.mem[c.sp+1])
	})

	t.Run("v-blank wins over timer", func(t *testing.T) {
		c, bus := newTestCPU(0x00)
		c.ime = true
		bus.mem[0xFFFF] = 0x05
		bus.mem[0xFF0F] = 0x05

		_, err := c.Step()

		require.NoError(t, err)
		assert.Equal(t, uint16(0x0040), c.PC())
		assert.Equal(t, uint8(0x04), bus.mem[0xFF0F], "timer bit stays pending")
	})

	t.Run("IME off executes normally", func(t *testing.T) {
		c, bus := newTestCPU(0x00)
		bus.mem[0xFFFF] = 0x01
		bus.mem[0xFF0F] = 0x01

		cycles, err := c.Step()

		require.NoError(t, err)
		assert.Equal(t, 4, cycles)
		assert.Equal(t, uint16(0x0101), c.PC())
	})
}

func TestEIDelay(t *testing.T) {
	// EI; NOP; the interrupt fires only after the instruction following EI.
	c, bus := newTestCPU(0xFB, 0x00, 0x00)
	bus.mem[0xFFFF] = 0x01
	bus.mem[0xFF0F] = 0x01

	_, err := c.Step() // EI
	require.NoError(t, err)
	assert.False(t, c.IME())

	_, err = c.Step() // NOP, IME becomes effective after it
	require.NoError(t, err)
	assert.True(t, c.IME())
	assert.Equal(t, uint16(0x0102), c.PC())

	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 20, cycles)
	assert.Equal(t, uint16(0x0040), c.PC())
}

func TestHalt(t *testing.T) {
	t.Run("idles until an interrupt is pending", func(t *testing.T) {
		c, bus := newTestCPU(0x76, 0x00)
		bus.mem[0xFFFF] = 0x01

		_, err := c.Step()
		require.NoError(t, err)
		assert.True(t, c.Halted())

		cycles, err := c.Step()
		require.NoError(t, err)
		assert.Equal(t, 4, cycles)
		assert.Equal(t, uint16(0x0101), c.PC(), "PC does not move while halted")

		// pending interrupt wakes HALT even with IME off
		bus.mem[0xFF0F] = 0x01
		_, err = c.Step()
		require.NoError(t, err)
		assert.False(t, c.Halted())
		assert.Equal(t, uint16(0x0102), c.PC(), "resumes at the next instruction")
	})

	t.Run("halt bug repeats the next opcode", func(t *testing.T) {
		// HALT with IME=0 and an interrupt already pending: the CPU does
		// not halt and the following byte is fetched twice.
		c, bus := newTestCPU(0x76, 0x3C) // HALT; INC A
		bus.mem[0xFFFF] = 0x01
		bus.mem[0xFF0F] = 0x01
		c.a = 0x00

		_, err := c.Step() // HALT
		require.NoError(t, err)
		assert.False(t, c.Halted())

		_, err = c.Step() // INC A, PC stuck
		require.NoError(t, err)
		assert.Equal(t, uint8(0x01), c.a)
		assert.Equal(t, uint16(0x0101), c.PC())

		_, err = c.Step() // INC A again
		require.NoError(t, err)
		assert.Equal(t, uint8(0x02), c.a)
		assert.Equal(t, uint16(0x0102), c.PC())
	})
}

func TestLockedOpcode(t *testing.T) {
	c, _ := newTestCPU(0xD3)

	cycles, err := c.Step()

	require.Error(t, err)
	assert.Equal(t, 0, cycles)
	assert.True(t, errors.Is(err, ErrLockedOpcode))

	var locked *LockedOpcodeError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, uint8(0xD3), locked.Opcode)
	assert.Equal(t, uint16(0x0100), locked.Addr)
	assert.Equal(t, uint16(0x0100), c.PC(), "PC frozen at the faulting opcode")

	// the CPU stays locked
	_, err = c.Step()
	assert.True(t, errors.Is(err, ErrLockedOpcode))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c, _ := newTestCPU(0x00, 0x00, 0x00)
	for i := 0; i < 3; i++ {
		_, err := c.Step()
		require.NoError(t, err)
	}
	saved := c.Save()

	c.Reset()
	require.NotEqual(t, saved, c.Save())

	c.Load(saved)
	assert.Equal(t, saved, c.Save())
	assert.Equal(t, uint16(0x0103), c.PC())
}
