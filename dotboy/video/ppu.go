package video

import (
	"github.com/mknezic/go-dotboy/dotboy/addr"
	"github.com/mknezic/go-dotboy/dotboy/bit"
)

// Mode is the PPU state machine state, numbered as the STAT register
// reports it.
type Mode uint8

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMScan
	ModeTransfer
)

const (
	dotsPerLine    = 456
	oamScanDots    = 80
	transferLead   = 12 // fetcher warm-up before the first pixel comes out
	linesPerFrame  = 154
	spriteStall    = 6 // dots lost the first time a sprite overlaps the output x
	maxLineSprites = 10
)

// LCDC bits.
const (
	lcdcBGEnable      = 0
	lcdcOBJEnable     = 1
	lcdcOBJSize       = 2
	lcdcBGTileMap     = 3
	lcdcTileData      = 4
	lcdcWindowEnable  = 5
	lcdcWindowTileMap = 6
	lcdcEnable        = 7
)

// STAT interrupt-enable bits.
const (
	statHBlankIRQ = 3
	statVBlankIRQ = 4
	statOAMIRQ    = 5
	statLYCIRQ    = 6
)

// Sprite is one OAM entry as latched during OAM scan.
type Sprite struct {
	Y    uint8
	X    uint8
	Tile uint8
	Attr uint8
	// Stalled records that this sprite already cost its fetch stall.
	Stalled bool
}

// PPU is the pixel pipeline. It owns VRAM, OAM and the LCD registers and is
// advanced one dot per clock cycle, so register writes landing mid-scanline
// affect exactly the pixels emitted after them.
type PPU struct {
	vram [0x2000]byte
	oam  [0xA0]byte

	lcdc, stat      byte
	scy, scx        byte
	ly, lyc         byte
	bgp, obp0, obp1 byte
	wy, wx          byte

	mode Mode
	dot  int

	// pixel-transfer state
	lx      int // next output x
	lead    int // warm-up dots remaining
	discard int // SCX fine-scroll pixels still to drop
	stall   int // dots the fetcher is stalled on a sprite

	windowLine    int // internal window line counter
	windowStarted bool
	wyHit         bool // WY matched LY at a line start this frame

	sprites     [maxLineSprites]Sprite
	spriteCount int

	frame     FrameBuffer
	frameDone bool
	palette   Palette

	// VBlank and Stat request the corresponding interrupts.
	VBlank func()
	Stat   func()
}

// New returns a PPU with the LCD enabled, as the boot ROM leaves it.
func New() *PPU {
	p := &PPU{palette: DefaultPalette}
	p.Reset()
	return p
}

// Reset restores post-boot register values and a blank frame.
func (p *PPU) Reset() {
	p.lcdc = 0x91
	p.stat = 0x80
	p.scy, p.scx = 0, 0
	p.ly, p.lyc = 0, 0
	p.bgp = 0xFC
	p.obp0, p.obp1 = 0xFF, 0xFF
	p.wy, p.wx = 0, 0
	p.mode = ModeOAMScan
	p.dot = 0
	p.windowLine = 0
	p.windowStarted = false
	p.wyHit = false
	p.spriteCount = 0
	p.frameDone = false
	p.frame.Fill(p.palette[0])
}

// SetPalette changes the shade-to-color mapping used for output pixels.
func (p *PPU) SetPalette(palette Palette) { p.palette = palette }

// Tick advances the pipeline by the given number of clock cycles, one dot
// per cycle. With the LCD disabled the dot clock is halted.
func (p *PPU) Tick(cycles int) {
	if !bit.IsSet(lcdcEnable, p.lcdc) {
		return
	}
	for i := 0; i < cycles; i++ {
		p.step()
	}
}

// FrameDone reports whether a completed frame is waiting since the last
// TakeFrame call.
func (p *PPU) FrameDone() bool { return p.frameDone }

// TakeFrame returns a copy of the completed frame and clears the done flag.
func (p *PPU) TakeFrame() FrameBuffer {
	p.frameDone = false
	return p.frame
}

// Frame returns the current frame contents, completed or not.
func (p *PPU) Frame() FrameBuffer { return p.frame }

func (p *PPU) step() {
	switch p.mode {
	case ModeOAMScan:
		if p.dot == 0 {
			if p.ly == p.wy {
				p.wyHit = true
			}
			p.scanSprites()
		}
		if p.dot == oamScanDots-1 {
			p.enterTransfer()
		}
	case ModeTransfer:
		p.transferDot()
	case ModeHBlank, ModeVBlank:
		// waiting out the line
	}

	p.dot++
	if p.dot < dotsPerLine {
		return
	}
	p.dot = 0
	p.nextLine()
}

func (p *PPU) nextLine() {
	if p.mode == ModeTransfer || p.mode == ModeHBlank {
		if p.windowStarted {
			p.windowLine++
			p.windowStarted = false
		}
	}

	p.ly++
	switch {
	case p.ly == FrameHeight:
		p.setMode(ModeVBlank)
		p.frameDone = true
		if p.VBlank != nil {
			p.VBlank()
		}
	case p.ly >= linesPerFrame:
		p.ly = 0
		p.windowLine = 0
		p.wyHit = false
		p.setMode(ModeOAMScan)
	case p.mode != ModeVBlank:
		p.setMode(ModeOAMScan)
	}
	p.compareLY()
}

func (p *PPU) enterTransfer() {
	p.setMode(ModeTransfer)
	p.lx = 0
	p.lead = transferLead
	p.discard = int(p.scx & 7)
	p.stall = 0
}

func (p *PPU) transferDot() {
	if p.lead > 0 {
		p.lead--
		return
	}
	if p.stall > 0 {
		p.stall--
		return
	}

	// a sprite whose window starts at this x stalls the fetcher once
	if bit.IsSet(lcdcOBJEnable, p.lcdc) {
		for i := 0; i < p.spriteCount; i++ {
			s := &p.sprites[i]
			if !s.Stalled && int(s.X) <= p.lx+8 && p.lx+8 < int(s.X)+8 {
				s.Stalled = true
				p.stall = spriteStall - 1
				return
			}
		}
	}

	if p.discard > 0 {
		p.discard--
		return
	}

	p.emitPixel()
	p.lx++
	if p.lx == FrameWidth {
		p.setMode(ModeHBlank)
	}
}

// emitPixel composes one output pixel from the background or window layer
// and the line's sprites, reading the control registers as they are right
// now: a register write earlier in this scanline is visible from this pixel
// on, never retroactively.
func (p *PPU) emitPixel() {
	x, y := p.lx, int(p.ly)

	bgIndex := uint8(0)
	if bit.IsSet(lcdcBGEnable, p.lcdc) {
		if p.windowVisible(x) {
			p.windowStarted = true
			bgIndex = p.fetchWindowPixel(x)
		} else {
			bgIndex = p.fetchBackgroundPixel(x)
		}
	}

	color := shade(p.bgp, bgIndex)

	if bit.IsSet(lcdcOBJEnable, p.lcdc) {
		if spriteIndex, attr, ok := p.fetchSpritePixel(x); ok {
			behindBG := bit.IsSet(7, attr)
			if !behindBG || bgIndex == 0 {
				palette := p.obp0
				if bit.IsSet(4, attr) {
					palette = p.obp1
				}
				color = shade(palette, spriteIndex)
			}
		}
	}

	p.frame.Set(x, y, p.palette[color])
}

// windowVisible reports whether the window layer covers x. The WY condition
// is the frame-wide latch, not a live comparison, so lowering WY below the
// current line cannot turn the window on until the next frame.
func (p *PPU) windowVisible(x int) bool {
	return bit.IsSet(lcdcWindowEnable, p.lcdc) &&
		p.wyHit &&
		x >= int(p.wx)-7
}

func (p *PPU) fetchBackgroundPixel(x int) uint8 {
	mapBase := uint16(addr.TileMap0)
	if bit.IsSet(lcdcBGTileMap, p.lcdc) {
		mapBase = addr.TileMap1
	}
	px := (x + int(p.scx)) & 0xFF
	py := (int(p.ly) + int(p.scy)) & 0xFF
	return p.fetchTilePixel(mapBase, px, py)
}

func (p *PPU) fetchWindowPixel(x int) uint8 {
	mapBase := uint16(addr.TileMap0)
	if bit.IsSet(lcdcWindowTileMap, p.lcdc) {
		mapBase = addr.TileMap1
	}
	px := x - (int(p.wx) - 7)
	py := p.windowLine
	return p.fetchTilePixel(mapBase, px, py)
}

// fetchTilePixel resolves one pixel through the tile map and tile data,
// honoring the LCDC addressing mode.
func (p *PPU) fetchTilePixel(mapBase uint16, px, py int) uint8 {
	tileIndex := p.vram[mapBase-0x8000+uint16(py/8)*32+uint16(px/8)]

	var rowAddr uint16
	if bit.IsSet(lcdcTileData, p.lcdc) {
		rowAddr = addr.TileData0 + uint16(tileIndex)*16
	} else {
		rowAddr = uint16(int(addr.TileData2) + int(int8(tileIndex))*16)
	}
	rowAddr += uint16(py%8) * 2

	lo := p.vram[rowAddr-0x8000]
	hi := p.vram[rowAddr-0x8000+1]
	b := uint8(7 - px%8)
	return (hi>>b&1)<<1 | lo>>b&1
}

// fetchSpritePixel returns the color index and attributes of the
// highest-priority sprite covering x, skipping transparent pixels. Sprites
// were ordered by X then OAM index during OAM scan.
func (p *PPU) fetchSpritePixel(x int) (uint8, uint8, bool) {
	height := 8
	if bit.IsSet(lcdcOBJSize, p.lcdc) {
		height = 16
	}

	for i := 0; i < p.spriteCount; i++ {
		s := p.sprites[i]
		sx := int(s.X) - 8
		if x < sx || x >= sx+8 {
			continue
		}

		row := int(p.ly) - (int(s.Y) - 16)
		col := x - sx
		if bit.IsSet(5, s.Attr) { // X flip
			col = 7 - col
		}
		if bit.IsSet(6, s.Attr) { // Y flip
			row = height - 1 - row
		}
		// an LCDC size switch after OAM scan can put row outside the tile
		row &= height - 1

		tile := s.Tile
		if height == 16 {
			tile &= 0xFE
		}
		rowAddr := uint16(tile)*16 + uint16(row)*2
		lo := p.vram[rowAddr]
		hi := p.vram[rowAddr+1]
		b := uint8(7 - col)
		index := (hi>>b&1)<<1 | lo>>b&1
		if index != 0 {
			return index, s.Attr, true
		}
	}
	return 0, 0, false
}

// scanSprites latches up to ten sprites overlapping this scanline, in OAM
// order, then sorts them by X so lower-X sprites win priority ties.
func (p *PPU) scanSprites() {
	p.spriteCount = 0
	height := 8
	if bit.IsSet(lcdcOBJSize, p.lcdc) {
		height = 16
	}

	for i := 0; i < 40 && p.spriteCount < maxLineSprites; i++ {
		y := int(p.oam[i*4]) - 16
		if int(p.ly) < y || int(p.ly) >= y+height {
			continue
		}
		p.sprites[p.spriteCount] = Sprite{
			Y:    p.oam[i*4],
			X:    p.oam[i*4+1],
			Tile: p.oam[i*4+2],
			Attr: p.oam[i*4+3],
		}
		p.spriteCount++
	}

	// stable insertion sort by X keeps OAM order for equal X
	for i := 1; i < p.spriteCount; i++ {
		for j := i; j > 0 && p.sprites[j].X < p.sprites[j-1].X; j-- {
			p.sprites[j], p.sprites[j-1] = p.sprites[j-1], p.sprites[j]
		}
	}
}

func shade(palette byte, index uint8) uint8 {
	return palette >> (index * 2) & 0x03
}

// setMode updates the STAT mode bits and raises the mode's STAT interrupt
// if the corresponding enable bit is set.
func (p *PPU) setMode(mode Mode) {
	p.mode = mode
	p.stat = p.stat&0xFC | byte(mode)

	var irqBit uint8
	switch mode {
	case ModeHBlank:
		irqBit = statHBlankIRQ
	case ModeVBlank:
		irqBit = statVBlankIRQ
	case ModeOAMScan:
		irqBit = statOAMIRQ
	default:
		return
	}
	if bit.IsSet(irqBit, p.stat) && p.Stat != nil {
		p.Stat()
	}
}

func (p *PPU) compareLY() {
	if p.ly == p.lyc {
		p.stat = bit.Set(2, p.stat)
		if bit.IsSet(statLYCIRQ, p.stat) && p.Stat != nil {
			p.Stat()
		}
	} else {
		p.stat = bit.Clear(2, p.stat)
	}
}

// Read serves VRAM, OAM and the LCD registers for the bus.
func (p *PPU) Read(address uint16) byte {
	switch {
	case address >= 0x8000 && address <= 0x9FFF:
		return p.vram[address-0x8000]
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		return p.oam[address-addr.OAMStart]
	}

	switch address {
	case addr.LCDC:
		return p.lcdc
	case addr.STAT:
		return p.stat | 0x80
	case addr.SCY:
		return p.scy
	case addr.SCX:
		return p.scx
	case addr.LY:
		return p.ly
	case addr.LYC:
		return p.lyc
	case addr.BGP:
		return p.bgp
	case addr.OBP0:
		return p.obp0
	case addr.OBP1:
		return p.obp1
	case addr.WY:
		return p.wy
	case addr.WX:
		return p.wx
	default:
		return 0xFF
	}
}

// Write serves VRAM, OAM and the LCD registers for the bus. Register writes
// take effect from the next dot, which is what makes raster effects work.
func (p *PPU) Write(address uint16, value byte) {
	switch {
	case address >= 0x8000 && address <= 0x9FFF:
		p.vram[address-0x8000] = value
		return
	case address >= addr.OAMStart && address <= addr.OAMEnd:
		p.oam[address-addr.OAMStart] = value
		return
	}

	switch address {
	case addr.LCDC:
		wasOn := bit.IsSet(lcdcEnable, p.lcdc)
		p.lcdc = value
		if wasOn && !bit.IsSet(lcdcEnable, value) {
			p.disableLCD()
		} else if !wasOn && bit.IsSet(lcdcEnable, value) {
			p.setMode(ModeOAMScan)
			p.compareLY()
		}
	case addr.STAT:
		// bits 0-2 are read-only
		p.stat = p.stat&0x07 | value&0x78 | 0x80
	case addr.SCY:
		p.scy = value
	case addr.SCX:
		p.scx = value
	case addr.LYC:
		p.lyc = value
		p.compareLY()
	case addr.BGP:
		p.bgp = value
	case addr.OBP0:
		p.obp0 = value
	case addr.OBP1:
		p.obp1 = value
	case addr.WY:
		p.wy = value
	case addr.WX:
		p.wx = value
	}
}

// disableLCD blanks the frame and freezes the dot clock; the frame stays
// blank until the LCD is re-enabled.
func (p *PPU) disableLCD() {
	p.ly = 0
	p.dot = 0
	p.mode = ModeHBlank
	p.stat = p.stat & 0xFC
	p.windowLine = 0
	p.windowStarted = false
	p.wyHit = false
	p.frame.Fill(p.palette[0])
}

// CurrentMode returns the state machine state.
func (p *PPU) CurrentMode() Mode { return p.mode }

// LY returns the current scanline.
func (p *PPU) LY() byte { return p.ly }

// State is the full PPU state in snapshot form.
type State struct {
	VRAM [0x2000]byte
	OAM  [0xA0]byte

	LCDC, STAT      byte
	SCY, SCX        byte
	LY, LYC         byte
	BGP, OBP0, OBP1 byte
	WY, WX          byte

	Mode uint8
	Dot  int

	LX, Lead, Discard, Stall int

	WindowLine    int
	WindowStarted bool
	WYHit         bool

	Sprites     [maxLineSprites]Sprite
	SpriteCount int

	Frame     [FrameWidth * FrameHeight]uint32
	FrameDone bool
}

func (p *PPU) Save() State {
	return State{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat,
		SCY: p.scy, SCX: p.scx,
		LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WY: p.wy, WX: p.wx,
		Mode: uint8(p.mode), Dot: p.dot,
		LX: p.lx, Lead: p.lead, Discard: p.discard, Stall: p.stall,
		WindowLine: p.windowLine, WindowStarted: p.windowStarted, WYHit: p.wyHit,
		Sprites: p.sprites, SpriteCount: p.spriteCount,
		Frame: p.frame.Pixels, FrameDone: p.frameDone,
	}
}

func (p *PPU) Load(s State) {
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat = s.LCDC, s.STAT
	p.scy, p.scx = s.SCY, s.SCX
	p.ly, p.lyc = s.LY, s.LYC
	p.bgp, p.obp0, p.obp1 = s.BGP, s.OBP0, s.OBP1
	p.wy, p.wx = s.WY, s.WX
	p.mode, p.dot = Mode(s.Mode), s.Dot
	p.lx, p.lead, p.discard, p.stall = s.LX, s.Lead, s.Discard, s.Stall
	p.windowLine, p.windowStarted, p.wyHit = s.WindowLine, s.WindowStarted, s.WYHit
	p.sprites, p.spriteCount = s.Sprites, s.SpriteCount
	p.frame.Pixels = s.Frame
	p.frameDone = s.FrameDone
}
