package state

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is bumped whenever the Snapshot layout changes in a way
// older readers would misinterpret.
const FormatVersion = 1

var (
	// ErrStateVersion means the file was written by an incompatible
	// format version.
	ErrStateVersion = errors.New("unsupported save state version")
	// ErrStateROMMismatch means the save state belongs to a different ROM.
	ErrStateROMMismatch = errors.New("save state is for a different ROM")
)

// envelope is the on-disk shape. The snapshot stays raw until the version
// and ROM hash check out, so a mismatched file fails cleanly instead of
// half-decoding.
type envelope struct {
	Version  int             `cbor:"version"`
	ROMHash  []byte          `cbor:"rom_hash"`
	Snapshot cbor.RawMessage `cbor:"snapshot"`
}

// HashROM identifies the cartridge a snapshot belongs to.
func HashROM(rom []byte) [sha256.Size]byte {
	return sha256.Sum256(rom)
}

// Encode writes a versioned save state for the ROM identified by romHash.
func Encode(w io.Writer, romHash [sha256.Size]byte, snap Snapshot) error {
	raw, err := cbor.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	env := envelope{
		Version:  FormatVersion,
		ROMHash:  romHash[:],
		Snapshot: raw,
	}
	if err := cbor.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("writing save state: %w", err)
	}
	return nil
}

// Decode reads a save state and validates it against the running ROM
// before touching the snapshot payload.
func Decode(r io.Reader, romHash [sha256.Size]byte) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading save state: %w", err)
	}
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("decoding save state: %w", err)
	}
	if env.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("%w: got %d, want %d", ErrStateVersion, env.Version, FormatVersion)
	}
	if len(env.ROMHash) != sha256.Size || [sha256.Size]byte(env.ROMHash) != romHash {
		return Snapshot{}, ErrStateROMMismatch
	}
	var snap Snapshot
	if err := cbor.Unmarshal(env.Snapshot, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}
