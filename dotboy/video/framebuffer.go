package video

// Screen dimensions in pixels.
const (
	FrameWidth  = 160
	FrameHeight = 144
)

// Palette maps the four DMG shades (0 = lightest) to 32-bit ARGB colors.
type Palette [4]uint32

// DefaultPalette is the grey ramp the terminal frontend renders well.
var DefaultPalette = Palette{0xFFFFFFFF, 0xFF989898, 0xFF4C4C4C, 0xFF000000}

// FrameBuffer is one complete 160x144 frame. It is a plain value: assigning
// it copies the whole frame, which is how frames cross the control surface.
type FrameBuffer struct {
	Pixels [FrameWidth * FrameHeight]uint32
}

func (fb *FrameBuffer) At(x, y int) uint32 {
	return fb.Pixels[y*FrameWidth+x]
}

func (fb *FrameBuffer) Set(x, y int, color uint32) {
	fb.Pixels[y*FrameWidth+x] = color
}

// Fill paints the whole frame a single color.
func (fb *FrameBuffer) Fill(color uint32) {
	for i := range fb.Pixels {
		fb.Pixels[i] = color
	}
}
