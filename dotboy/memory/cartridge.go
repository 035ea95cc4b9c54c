package memory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Header field offsets.
const (
	titleAddress          = 0x0134
	titleLength           = 16
	cartridgeTypeAddress  = 0x0147
	romSizeAddress        = 0x0148
	ramSizeAddress        = 0x0149
	versionNumberAddress  = 0x014C
	headerChecksumAddress = 0x014D
	headerEnd             = 0x0150
)

// Fatal-configuration errors, reported before any machine is built.
var (
	// ErrROMTruncated means the ROM is shorter than its header requires.
	ErrROMTruncated = errors.New("rom data truncated")
	// ErrHeaderChecksum means the cartridge header checksum does not match.
	ErrHeaderChecksum = errors.New("cartridge header checksum mismatch")
)

// UnsupportedMapperError reports a cartridge-type byte this core has no
// mapper implementation for.
type UnsupportedMapperError struct {
	Type byte
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("unsupported mapper type 0x%02X", e.Type)
}

// MapperKind identifies the bank-switching hardware on the cartridge.
type MapperKind uint8

const (
	MapperNone MapperKind = iota
	MapperMBC1
	MapperMBC2
	MapperMBC3
	MapperMBC5
)

func (k MapperKind) String() string {
	switch k {
	case MapperNone:
		return "rom-only"
	case MapperMBC1:
		return "mbc1"
	case MapperMBC2:
		return "mbc2"
	case MapperMBC3:
		return "mbc3"
	case MapperMBC5:
		return "mbc5"
	}
	return "unknown"
}

// Cartridge holds the ROM image and the fields parsed from its header.
type Cartridge struct {
	ROM []byte

	Title      string
	Mapper     MapperKind
	ROMBanks   int // 16KB units
	RAMBanks   int // 8KB units
	HasBattery bool
	HasRTC     bool
	Version    uint8
}

// ramBankCounts maps the RAM size header byte to the number of 8KB banks.
var ramBankCounts = map[byte]int{0x00: 0, 0x01: 0, 0x02: 1, 0x03: 4, 0x04: 16, 0x05: 8}

// LoadCartridge validates the ROM image and parses its header. All failures
// are fatal-configuration errors; no partially-valid cartridge is returned.
func LoadCartridge(rom []byte) (*Cartridge, error) {
	if len(rom) < headerEnd {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrROMTruncated, len(rom), headerEnd)
	}

	var sum uint8
	for i := titleAddress; i < headerChecksumAddress; i++ {
		sum = sum - rom[i] - 1
	}
	if sum != rom[headerChecksumAddress] {
		return nil, fmt.Errorf("%w: computed 0x%02X, header has 0x%02X", ErrHeaderChecksum, sum, rom[headerChecksumAddress])
	}

	romBanks := 2 << rom[romSizeAddress]
	if wantLen := romBanks * 0x4000; len(rom) < wantLen {
		return nil, fmt.Errorf("%w: header declares %d banks (%d bytes), got %d", ErrROMTruncated, romBanks, wantLen, len(rom))
	}

	ramBanks, ok := ramBankCounts[rom[ramSizeAddress]]
	if !ok {
		return nil, fmt.Errorf("%w: bad ram size byte 0x%02X", ErrHeaderChecksum, rom[ramSizeAddress])
	}

	cart := &Cartridge{
		ROM:      rom,
		Title:    parseTitle(rom[titleAddress : titleAddress+titleLength]),
		ROMBanks: romBanks,
		RAMBanks: ramBanks,
		Version:  rom[versionNumberAddress],
	}

	switch t := rom[cartridgeTypeAddress]; t {
	case 0x00, 0x08, 0x09:
		cart.Mapper = MapperNone
		cart.HasBattery = t == 0x09
	case 0x01, 0x02, 0x03:
		cart.Mapper = MapperMBC1
		cart.HasBattery = t == 0x03
	case 0x05, 0x06:
		cart.Mapper = MapperMBC2
		cart.HasBattery = t == 0x06
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		cart.Mapper = MapperMBC3
		cart.HasBattery = t == 0x10 || t == 0x13 || t == 0x0F
		cart.HasRTC = t == 0x0F || t == 0x10
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		cart.Mapper = MapperMBC5
		cart.HasBattery = t == 0x1B || t == 0x1E
	default:
		return nil, &UnsupportedMapperError{Type: t}
	}

	logrus.WithFields(logrus.Fields{
		"title":     cart.Title,
		"mapper":    cart.Mapper.String(),
		"rom_banks": cart.ROMBanks,
		"ram_banks": cart.RAMBanks,
		"battery":   cart.HasBattery,
	}).Info("cartridge loaded")

	return cart, nil
}

func parseTitle(raw []byte) string {
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	return strings.TrimSpace(string(raw[:end]))
}
