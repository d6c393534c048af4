package cartridge

// ROMCartridge represents a ROM cartridge. This cartridge type is the simplest
// cartridge type and has no external RAM or MBC.
type ROMCartridge struct {
	rom    []byte
	header *Header
}

// NewROMCartridge returns a new ROM cartridge.
func NewROMCartridge(rom []byte, header *Header) *ROMCartridge {
	return &ROMCartridge{
		rom:    rom,
		header: header,
	}
}

// Read returns the value at the given address. Addresses past the end
// of the image, and the external RAM range, read as open bus (0xFF).
func (r *ROMCartridge) Read(address uint16) uint8 {
	if int(address) < len(r.rom) && address < 0x8000 {
		return r.rom[address]
	}
	return 0xFF
}

// Write does nothing, as there is no MBC to receive it.
func (r *ROMCartridge) Write(address uint16, value uint8) {}

func (r *ROMCartridge) Header() *Header {
	return r.header
}
