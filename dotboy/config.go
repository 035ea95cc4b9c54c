package dotboy

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/mknezic/go-dotboy/dotboy/audio"
	"github.com/mknezic/go-dotboy/dotboy/video"
)

// Config holds the shell-level knobs. Everything has a working default;
// a config file only needs the keys it wants to change.
type Config struct {
	// SampleRate is the audio output rate in Hz.
	SampleRate int `toml:"sample_rate"`
	// RewindFrames is the rewind history size in frames. Zero disables
	// rewind entirely.
	RewindFrames int `toml:"rewind_frames"`
	// SnapshotInterval is the number of frames between retained rewind
	// snapshots. One means every frame.
	SnapshotInterval int `toml:"snapshot_interval"`
	// Palette maps the four shades to ARGB colors, lightest first.
	Palette video.Palette `toml:"palette"`
}

// DefaultConfig returns the settings used when no file is given: rewind on
// with ten seconds of history, a snapshot every frame.
func DefaultConfig() Config {
	return Config{
		SampleRate:       audio.DefaultSampleRate,
		RewindFrames:     600,
		SnapshotInterval: 1,
		Palette:          video.DefaultPalette,
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.RewindFrames < 0 {
		return fmt.Errorf("rewind_frames must not be negative, got %d", c.RewindFrames)
	}
	if c.SnapshotInterval < 1 {
		return fmt.Errorf("snapshot_interval must be at least 1, got %d", c.SnapshotInterval)
	}
	return nil
}
