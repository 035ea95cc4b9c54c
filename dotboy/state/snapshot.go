// Package state holds the snapshot, persistence and rewind machinery.
// A Snapshot is a plain value with no references into a live machine, so
// snapshots may be shared and restored freely.
package state

import (
	"github.com/mknezic/go-dotboy/dotboy/audio"
	"github.com/mknezic/go-dotboy/dotboy/cpu"
	"github.com/mknezic/go-dotboy/dotboy/memory"
	"github.com/mknezic/go-dotboy/dotboy/video"
)

// Snapshot is the complete machine state at one frame boundary.
type Snapshot struct {
	Frame uint64

	CPU   cpu.State
	Bus   memory.BusState
	Video video.State
	Audio audio.State
}
