package memory

import "time"

// MBC is the bank-switching strategy a cartridge carries. All variants share
// the same read/write contract; they differ only in how many banks they
// expose and which control writes switch them. Out-of-range bank selections
// wrap, they are never fatal.
type MBC interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	// State and SetState expose the bank-selection registers and cartridge
	// RAM for snapshotting.
	State() MBCState
	SetState(s MBCState)
}

// MBCState is the serializable state shared by every mapper variant. Fields
// a variant does not use stay zero.
type MBCState struct {
	ROMBank    uint16
	RAMBank    uint8
	RAMEnabled bool
	Mode       uint8
	RTC        [5]uint8
	RTCLatched bool
	RAM        []byte
}

// Clock provides the time source for the MBC3 RTC. A nil clock freezes the
// RTC registers, which keeps replay deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock time source for interactive sessions.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NewMBC builds the mapper variant the cartridge header selects.
func NewMBC(cart *Cartridge, clock Clock) MBC {
	switch cart.Mapper {
	case MapperMBC1:
		return newMBC1(cart.ROM, cart.RAMBanks)
	case MapperMBC2:
		return newMBC2(cart.ROM)
	case MapperMBC3:
		return newMBC3(cart.ROM, cart.RAMBanks, cart.HasRTC, clock)
	case MapperMBC5:
		return newMBC5(cart.ROM, cart.RAMBanks)
	default:
		return newROMOnly(cart.ROM, cart.RAMBanks)
	}
}

// romOffset turns a bank number and an address in the switchable window into
// a ROM offset. The bank index wraps modulo the number of full banks, so a
// trailing partial bank in the image is never indexed.
func romOffset(rom []byte, bank uint16, address uint16) uint32 {
	banks := uint32(len(rom)) / 0x4000
	return uint32(bank)%banks*0x4000 + uint32(address-0x4000)
}

func ramOffset(ram []byte, bank uint8, address uint16) uint32 {
	banks := uint32(len(ram)) / 0x2000
	return uint32(bank)%banks*0x2000 + uint32(address-0xA000)
}

// romOnly maps the whole ROM flat at 0x0000-0x7FFF. A few such carts still
// carry a single RAM bank.
type romOnly struct {
	rom []uint8
	ram []uint8
}

func newROMOnly(rom []uint8, ramBanks int) *romOnly {
	return &romOnly{rom: rom, ram: make([]uint8, ramBanks*0x2000)}
}

func (m *romOnly) Read(address uint16) uint8 {
	switch {
	case address <= 0x7FFF:
		if int(address) < len(m.rom) {
			return m.rom[address]
		}
		return 0xFF
	case address >= 0xA000 && address <= 0xBFFF && len(m.ram) > 0:
		return m.ram[int(address-0xA000)%len(m.ram)]
	default:
		return 0xFF
	}
}

func (m *romOnly) Write(address uint16, value uint8) {
	if address >= 0xA000 && address <= 0xBFFF && len(m.ram) > 0 {
		m.ram[int(address-0xA000)%len(m.ram)] = value
	}
}

func (m *romOnly) State() MBCState {
	return MBCState{RAM: append([]byte(nil), m.ram...)}
}

func (m *romOnly) SetState(s MBCState) {
	copy(m.ram, s.RAM)
}

// mbc1 supports up to 2MB ROM and 32KB RAM, with the two banking modes.
type mbc1 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint8
	ramBank    uint8
	ramEnabled bool
	mode       uint8
}

func newMBC1(rom []uint8, ramBanks int) *mbc1 {
	return &mbc1{rom: rom, ram: make([]uint8, ramBanks*0x2000), romBank: 1}
}

func (m *mbc1) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address <= 0x7FFF:
		return m.rom[romOffset(m.rom, uint16(m.romBank), address)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, m.ramBank, address)]
	default:
		return 0xFF
	}
}

func (m *mbc1) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		bank := value & 0x1F
		if bank == 0 {
			bank = 1
		}
		m.romBank = m.romBank&0x60 | bank
	case address <= 0x5FFF:
		if m.mode == 0 {
			m.romBank = m.romBank&0x1F | (value&0x03)<<5
		} else {
			m.ramBank = value & 0x03
		}
	case address <= 0x7FFF:
		m.mode = value & 0x01
		if m.mode == 1 {
			m.romBank &= 0x1F
		}
	case address >= 0xA000 && address <= 0xBFFF:
		if m.ramEnabled && len(m.ram) > 0 {
			m.ram[ramOffset(m.ram, m.ramBank, address)] = value
		}
	}
}

func (m *mbc1) State() MBCState {
	return MBCState{
		ROMBank:    uint16(m.romBank),
		RAMBank:    m.ramBank,
		RAMEnabled: m.ramEnabled,
		Mode:       m.mode,
		RAM:        append([]byte(nil), m.ram...),
	}
}

func (m *mbc1) SetState(s MBCState) {
	m.romBank = uint8(s.ROMBank)
	m.ramBank = s.RAMBank
	m.ramEnabled = s.RAMEnabled
	m.mode = s.Mode
	copy(m.ram, s.RAM)
}

// mbc2 has a built-in 512x4-bit RAM; bit 8 of the address selects between
// the RAM-enable and ROM-bank control writes.
type mbc2 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint8
	ramEnabled bool
}

func newMBC2(rom []uint8) *mbc2 {
	return &mbc2{rom: rom, ram: make([]uint8, 512), romBank: 1}
}

func (m *mbc2) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address <= 0x7FFF:
		return m.rom[romOffset(m.rom, uint16(m.romBank), address)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		// only the low nibble exists, upper bits read as 1
		return m.ram[(address-0xA000)&0x1FF] | 0xF0
	default:
		return 0xFF
	}
}

func (m *mbc2) Write(address uint16, value uint8) {
	switch {
	case address <= 0x3FFF:
		if address&0x0100 == 0 {
			m.ramEnabled = value&0x0F == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			m.romBank = bank
		}
	case address >= 0xA000 && address <= 0xBFFF:
		if m.ramEnabled {
			m.ram[(address-0xA000)&0x1FF] = value & 0x0F
		}
	}
}

func (m *mbc2) State() MBCState {
	return MBCState{
		ROMBank:    uint16(m.romBank),
		RAMEnabled: m.ramEnabled,
		RAM:        append([]byte(nil), m.ram...),
	}
}

func (m *mbc2) SetState(s MBCState) {
	m.romBank = uint8(s.ROMBank)
	m.ramEnabled = s.RAMEnabled
	copy(m.ram, s.RAM)
}

// mbc3 adds the latched real-time clock alongside MBC1-style banking.
type mbc3 struct {
	rom        []uint8
	ram        []uint8
	rtc        [5]uint8
	romBank    uint8
	ramBank    uint8
	ramEnabled bool
	hasRTC     bool
	latchArm   bool
	clock      Clock
	rtcBase    time.Time
}

func newMBC3(rom []uint8, ramBanks int, hasRTC bool, clock Clock) *mbc3 {
	m := &mbc3{
		rom:     rom,
		ram:     make([]uint8, ramBanks*0x2000),
		romBank: 1,
		hasRTC:  hasRTC,
		clock:   clock,
	}
	if clock != nil {
		m.rtcBase = clock.Now()
	}
	return m
}

func (m *mbc3) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address <= 0x7FFF:
		return m.rom[romOffset(m.rom, uint16(m.romBank), address)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank <= 0x03 {
			if len(m.ram) == 0 {
				return 0xFF
			}
			return m.ram[ramOffset(m.ram, m.ramBank, address)]
		}
		if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			return m.rtc[m.ramBank-0x08]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *mbc3) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x3FFF:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case address <= 0x5FFF:
		m.ramBank = value
	case address <= 0x7FFF:
		// writing 0x00 then 0x01 latches the clock into the RTC registers
		if value == 0x00 {
			m.latchArm = true
		} else if value == 0x01 && m.latchArm {
			m.latchArm = false
			m.latchRTC()
		} else {
			m.latchArm = false
		}
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.ramBank <= 0x03 {
			if len(m.ram) > 0 {
				m.ram[ramOffset(m.ram, m.ramBank, address)] = value
			}
		} else if m.hasRTC && m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.rtc[m.ramBank-0x08] = value
		}
	}
}

func (m *mbc3) latchRTC() {
	if !m.hasRTC || m.clock == nil {
		return
	}
	elapsed := m.clock.Now().Sub(m.rtcBase)
	total := int64(elapsed / time.Second)
	m.rtc[0] = uint8(total % 60)
	m.rtc[1] = uint8(total / 60 % 60)
	m.rtc[2] = uint8(total / 3600 % 24)
	days := total / 86400
	m.rtc[3] = uint8(days)
	m.rtc[4] = m.rtc[4]&0xFE | uint8(days>>8)&1
}

func (m *mbc3) State() MBCState {
	return MBCState{
		ROMBank:    uint16(m.romBank),
		RAMBank:    m.ramBank,
		RAMEnabled: m.ramEnabled,
		RTC:        m.rtc,
		RTCLatched: m.latchArm,
		RAM:        append([]byte(nil), m.ram...),
	}
}

func (m *mbc3) SetState(s MBCState) {
	m.romBank = uint8(s.ROMBank)
	m.ramBank = s.RAMBank
	m.ramEnabled = s.RAMEnabled
	m.rtc = s.RTC
	m.latchArm = s.RTCLatched
	copy(m.ram, s.RAM)
}

// mbc5 has a 9-bit ROM bank register and no banking quirks.
type mbc5 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint16
	ramBank    uint8
	ramEnabled bool
}

func newMBC5(rom []uint8, ramBanks int) *mbc5 {
	return &mbc5{rom: rom, ram: make([]uint8, ramBanks*0x2000), romBank: 1}
}

func (m *mbc5) Read(address uint16) uint8 {
	switch {
	case address <= 0x3FFF:
		return m.rom[address]
	case address <= 0x7FFF:
		return m.rom[romOffset(m.rom, m.romBank, address)]
	case address >= 0xA000 && address <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[ramOffset(m.ram, m.ramBank, address)]
	default:
		return 0xFF
	}
}

func (m *mbc5) Write(address uint16, value uint8) {
	switch {
	case address <= 0x1FFF:
		m.ramEnabled = value&0x0F == 0x0A
	case address <= 0x2FFF:
		m.romBank = m.romBank&0x100 | uint16(value)
	case address <= 0x3FFF:
		m.romBank = m.romBank&0xFF | uint16(value&0x01)<<8
	case address <= 0x5FFF:
		m.ramBank = value & 0x0F
	case address >= 0xA000 && address <= 0xBFFF:
		if m.ramEnabled && len(m.ram) > 0 {
			m.ram[ramOffset(m.ram, m.ramBank, address)] = value
		}
	}
}

func (m *mbc5) State() MBCState {
	return MBCState{
		ROMBank:    m.romBank,
		RAMBank:    m.ramBank,
		RAMEnabled: m.ramEnabled,
		RAM:        append([]byte(nil), m.ram...),
	}
}

func (m *mbc5) SetState(s MBCState) {
	m.romBank = s.ROMBank
	m.ramBank = s.RAMBank
	m.ramEnabled = s.RAMEnabled
	copy(m.ram, s.RAM)
}
