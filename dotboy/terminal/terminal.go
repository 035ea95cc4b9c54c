// Package terminal renders the emulator into a tcell screen, two pixels
// per character cell using the half-block glyph. It is a reference shell:
// all emulation stays behind the Machine API.
package terminal

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"

	"github.com/mknezic/go-dotboy/dotboy"
	"github.com/mknezic/go-dotboy/dotboy/video"
)

const (
	frameTime = time.Second / 60

	// Terminals report key presses but never releases, so a button stays
	// held until its key has been quiet for this long. Slightly longer
	// than the usual auto-repeat interval.
	keyTimeout = 100 * time.Millisecond

	// rewindStep is how many frames one rewind key press undoes.
	rewindStep = 6
)

var keyButtons = map[tcell.Key]dotboy.Button{
	tcell.KeyUp:    dotboy.ButtonUp,
	tcell.KeyDown:  dotboy.ButtonDown,
	tcell.KeyLeft:  dotboy.ButtonLeft,
	tcell.KeyRight: dotboy.ButtonRight,
	tcell.KeyEnter: dotboy.ButtonStart,
	tcell.KeyTab:   dotboy.ButtonSelect,
}

var runeButtons = map[rune]dotboy.Button{
	'z': dotboy.ButtonA,
	'x': dotboy.ButtonB,
	'w': dotboy.ButtonUp,
	's': dotboy.ButtonDown,
	'a': dotboy.ButtonLeft,
	'd': dotboy.ButtonRight,
}

// Shell owns the tcell screen and drives one machine.
type Shell struct {
	machine *dotboy.Machine
	screen  tcell.Screen

	// last press time per button, see keyTimeout
	held map[dotboy.Button]time.Time
}

func New(machine *dotboy.Machine) *Shell {
	return &Shell{machine: machine, held: make(map[dotboy.Button]time.Time)}
}

// Run drives the machine at 60 frames per second until the user quits or
// the machine faults.
func (s *Shell) Run() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("opening terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	s.screen = screen
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack))
	screen.Clear()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for range ticker.C {
		quit, rewind := s.pollKeys()
		if quit {
			return nil
		}
		if rewind {
			if err := s.machine.Rewind(rewindStep); err != nil {
				log.WithError(err).Debug("rewind ignored")
			}
		}

		frame, _, err := s.machine.RunFrame(s.input())
		if err != nil {
			return err
		}
		s.draw(&frame)
		screen.Show()
	}
	return nil
}

// pollKeys drains pending terminal events and updates button timestamps.
func (s *Shell) pollKeys() (quit, rewind bool) {
	now := time.Now()
	for s.screen.HasPendingEvent() {
		switch ev := s.screen.PollEvent().(type) {
		case *tcell.EventResize:
			s.screen.Sync()
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
				quit = true
			case ev.Key() == tcell.KeyBackspace || ev.Key() == tcell.KeyBackspace2:
				rewind = true
			case ev.Key() == tcell.KeyRune:
				if b, ok := runeButtons[ev.Rune()]; ok {
					s.held[b] = now
				}
			default:
				if b, ok := keyButtons[ev.Key()]; ok {
					s.held[b] = now
				}
			}
		}
	}
	return quit, rewind
}

// input builds the frame's pad state from keys seen recently.
func (s *Shell) input() dotboy.Input {
	var in dotboy.Input
	now := time.Now()
	for b, last := range s.held {
		if now.Sub(last) < keyTimeout {
			in.Press(b)
		} else {
			delete(s.held, b)
		}
	}
	return in
}

// draw paints the frame with one character cell per two vertically stacked
// pixels: the upper half block glyph with the top pixel as foreground and
// the bottom as background.
func (s *Shell) draw(frame *video.FrameBuffer) {
	for y := 0; y < video.FrameHeight; y += 2 {
		for x := 0; x < video.FrameWidth; x++ {
			top := cellColor(frame.At(x, y))
			bottom := cellColor(frame.At(x, y+1))
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			s.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
}

func cellColor(argb uint32) tcell.Color {
	return tcell.NewRGBColor(
		int32(argb>>16&0xFF),
		int32(argb>>8&0xFF),
		int32(argb&0xFF),
	)
}
