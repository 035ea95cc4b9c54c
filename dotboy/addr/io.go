package addr

// PPU registers
const (
	// LCDC is the LCD Control register.
	LCDC uint16 = 0xFF40
	// STAT is the LCD Status register.
	STAT uint16 = 0xFF41
	// SCY is the background Scroll Y register.
	SCY uint16 = 0xFF42
	// SCX is the background Scroll X register.
	SCX uint16 = 0xFF43
	// LY is the current scanline (readonly).
	LY uint16 = 0xFF44
	// LYC is the LY Compare register.
	LYC uint16 = 0xFF45
	// DMA starts an OAM DMA transfer when written.
	DMA uint16 = 0xFF46
	// BGP is the background palette register.
	BGP uint16 = 0xFF47
	// OBP0 is the first object palette register.
	OBP0 uint16 = 0xFF48
	// OBP1 is the second object palette register.
	OBP1 uint16 = 0xFF49
	// WY is the window Y position register.
	WY uint16 = 0xFF4A
	// WX is the window X position register (plus 7).
	WX uint16 = 0xFF4B
)

// APU registers.
// Reference: https://gbdev.io/pandocs/Audio_Registers.html
const (
	AudioStart uint16 = 0xFF10
	AudioEnd   uint16 = 0xFF3F

	// Channel 1 - pulse with sweep
	NR10 uint16 = 0xFF10 // sweep
	NR11 uint16 = 0xFF11 // length timer & duty cycle
	NR12 uint16 = 0xFF12 // volume & envelope
	NR13 uint16 = 0xFF13 // period low
	NR14 uint16 = 0xFF14 // period high & control

	// Channel 2 - pulse
	NR21 uint16 = 0xFF16
	NR22 uint16 = 0xFF17
	NR23 uint16 = 0xFF18
	NR24 uint16 = 0xFF19

	// Channel 3 - wave
	NR30 uint16 = 0xFF1A // DAC enable
	NR31 uint16 = 0xFF1B // length timer
	NR32 uint16 = 0xFF1C // output level
	NR33 uint16 = 0xFF1D // period low
	NR34 uint16 = 0xFF1E // period high & control

	// Channel 4 - noise
	NR41 uint16 = 0xFF20
	NR42 uint16 = 0xFF21
	NR43 uint16 = 0xFF22
	NR44 uint16 = 0xFF23

	// Global sound control
	NR50 uint16 = 0xFF24 // master volume & VIN panning
	NR51 uint16 = 0xFF25 // panning
	NR52 uint16 = 0xFF26 // power / channel status

	// Wave pattern RAM (32 samples, 4 bits each)
	WaveRAMStart uint16 = 0xFF30
	WaveRAMEnd   uint16 = 0xFF3F
)

// OAM region (40 sprites, 4 bytes each).
const (
	OAMStart uint16 = 0xFE00
	OAMEnd   uint16 = 0xFE9F
)

// Tile data and tile maps.
const (
	TileData0 uint16 = 0x8000
	TileData1 uint16 = 0x8800
	TileData2 uint16 = 0x9000

	TileMap0 uint16 = 0x9800
	TileMap1 uint16 = 0x9C00
)

// Interrupt registers.
const (
	// IF is the Interrupt Flags register.
	IF uint16 = 0xFF0F
	// IE is the Interrupt Enable register.
	IE uint16 = 0xFFFF
)

// Joypad.
const (
	// P1 selects and reads the joypad button matrix.
	P1 uint16 = 0xFF00
)

// Serial port.
const (
	// SB holds the byte shifted out (and in) during a serial transfer.
	SB uint16 = 0xFF01
	// SC controls serial transfers. Bit 7 starts one, bit 0 selects the
	// internal clock. The serial interrupt fires on completion.
	SC uint16 = 0xFF02
)

// Timer registers.
const (
	// DIV is the divider register. Writing any value resets it.
	DIV uint16 = 0xFF04
	// TIMA is the timer counter. Raises an interrupt when it overflows.
	TIMA uint16 = 0xFF05
	// TMA is the timer modulo, loaded into TIMA on overflow.
	TMA uint16 = 0xFF06
	// TAC is the timer control register.
	TAC uint16 = 0xFF07
)

// Interrupt identifies one of the five interrupt sources, as the bit it
// occupies in IF/IE.
type Interrupt uint8

const (
	// VBlankInterrupt fires when the PPU completes a frame.
	VBlankInterrupt Interrupt = 0
	// StatInterrupt fires on an enabled STAT condition (mode change, LY=LYC).
	StatInterrupt Interrupt = 1
	// TimerInterrupt fires when TIMA overflows.
	TimerInterrupt Interrupt = 2
	// SerialInterrupt fires when a serial transfer completes.
	SerialInterrupt Interrupt = 3
	// JoypadInterrupt fires when a button line goes from high to low.
	JoypadInterrupt Interrupt = 4
)
