package cartridge

// MemoryBankedCartridge1 represents a MemoryBankedCartridge1 cartridge. This
// cartridge type supports up to 125 ROM banks of 16kB, and optionally
// external RAM.
type MemoryBankedCartridge1 struct {
	rom      []byte
	romBanks uint32

	ram        []byte
	ramEnabled bool

	// bank1 is the 5-bit ROM bank register (0x2000-0x3FFF), never 0.
	bank1 uint8
	// bank2 is the 2-bit register (0x4000-0x5FFF) holding either the
	// upper ROM bank bits or the RAM bank, depending on the mode.
	bank2 uint8
	// advancedBanking is the mode select register (0x6000-0x7FFF). When
	// set, bank2 also applies to 0x0000-0x3FFF and to external RAM.
	advancedBanking bool

	header *Header
}

// NewMemoryBankedCartridge1 returns a new MemoryBankedCartridge1 cartridge
// with ramSize bytes of external RAM.
func NewMemoryBankedCartridge1(rom []byte, header *Header, ramSize int) *MemoryBankedCartridge1 {
	banks := uint32(len(rom) / 0x4000)
	if banks == 0 {
		banks = 1
	}
	return &MemoryBankedCartridge1{
		rom:      rom,
		romBanks: banks,
		ram:      make([]byte, ramSize),
		bank1:    1,
		header:   header,
	}
}

// Read returns the value from the cartridges ROM or RAM, depending on the bank
// selected.
func (m *MemoryBankedCartridge1) Read(address uint16) uint8 {
	switch {
	case address < 0x4000:
		var bank uint32
		if m.advancedBanking {
			bank = uint32(m.bank2) << 5
		}
		return m.readROM(bank, address)
	case address < 0x8000:
		bank := uint32(m.bank2)<<5 | uint32(m.bank1)
		return m.readROM(bank, address-0x4000)
	case address >= 0xA000 && address < 0xC000:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[m.ramOffset(address)]
	}
	return 0xFF
}

func (m *MemoryBankedCartridge1) readROM(bank uint32, offset uint16) uint8 {
	index := (bank%m.romBanks)*0x4000 + uint32(offset)
	if index >= uint32(len(m.rom)) {
		return 0xFF
	}
	return m.rom[index]
}

// ramOffset translates an external RAM address into an offset into ram,
// wrapping by the size of the RAM fitted.
func (m *MemoryBankedCartridge1) ramOffset(address uint16) int {
	offset := int(address - 0xA000)
	if m.advancedBanking {
		offset += int(m.bank2) * 0x2000
	}
	return offset % len(m.ram)
}

// Write updates the banking registers, or writes to the selected RAM bank.
func (m *MemoryBankedCartridge1) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ramEnabled = len(m.ram) > 0 && value&0x0F == 0x0A
	case address < 0x4000:
		// ROM bank number (lower 5 bits), 0 selects bank 1
		m.bank1 = value & 0x1F
		if m.bank1 == 0 {
			m.bank1 = 1
		}
	case address < 0x6000:
		m.bank2 = value & 0x03
	case address < 0x8000:
		m.advancedBanking = value&0x01 == 0x01
	case address >= 0xA000 && address < 0xC000:
		if m.ramEnabled {
			m.ram[m.ramOffset(address)] = value
		}
	}
}

func (m *MemoryBankedCartridge1) Header() *Header {
	return m.header
}

// RAM returns the external RAM of the cartridge.
func (m *MemoryBankedCartridge1) RAM() []byte {
	return m.ram
}

// LoadRAM loads the external RAM of the cartridge.
func (m *MemoryBankedCartridge1) LoadRAM(data []byte) {
	copy(m.ram, data)
}
