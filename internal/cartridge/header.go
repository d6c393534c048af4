package cartridge

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type Flag uint8

const (
	FlagOnlyDMG Flag = iota
	FlagSupportsCGB
	FlagOnlyCGB
)

var (
	ramMAP = map[uint8]uint{
		0x00: 0,
		0x02: 8 * 1024,
		0x03: 32 * 1024,
		0x04: 128 * 1024,
		0x05: 64 * 1024,
	}
)

type Type uint8

const (
	ROM         Type = 0x00
	MBC1        Type = 0x01
	MBC1RAM     Type = 0x02
	MBC1RAMBATT Type = 0x03
)

func (t Type) String() string {
	switch t {
	case ROM:
		return "ROM"
	case MBC1:
		return "MBC1"
	case MBC1RAM:
		return "MBC1+RAM"
	case MBC1RAMBATT:
		return "MBC1+RAM+BATTERY"
	}
	return fmt.Sprintf("unknown (0x%02X)", uint8(t))
}

const (
	// headerStart is the first address of the cartridge header.
	headerStart = 0x0100
	// headerEnd is the address following the cartridge header, and the
	// minimum size of a valid ROM image.
	headerEnd = 0x0150

	checksumStart   = 0x0134
	checksumEnd     = 0x014C
	checksumAddress = 0x014D
	typeAddress     = 0x0147
)

// Header represents the header of a cartridge, each cartridge has a header and is
// located at the address space 0x0100-0x014F. The header contains information about
// the cartridge itself, and the hardware it expects to run on.
type Header struct {
	// 0x0134-0x0143 - Title of the game
	Title string

	// 0x013F-0x0142 - ManufacturerCode of the game
	ManufacturerCode string

	// 0x0143 - CartridgeGBMode of the game. In older cartridges this byte was part
	// of the title, but the Colour Game Boy and later models interpret this byte
	// to determine if the cartridge is compatible with the Colour Game Boy.
	CartridgeGBMode Flag

	NewLicenseeCode string
	SGBFlag         bool
	CartridgeType   Type
	ROMSize         uint
	RAMSize         uint
	CountryCode     uint8
	OldLicenseeCode uint8
	MaskROMVersion  uint8
	HeaderChecksum  uint8
	GlobalChecksum  uint16

	// Hash is the xxhash64 of the whole ROM image, used to identify a ROM
	// independently of its (frequently blank) title.
	Hash uint64
}

// parseHeader parses the header of the given ROM and returns a Header.
func parseHeader(header []byte) *Header {
	h := &Header{}

	// parse the mode of the cartridge and parse the header accordingly
	switch header[0x43] {
	case 0x80:
		h.CartridgeGBMode = FlagSupportsCGB
	case 0xC0:
		h.CartridgeGBMode = FlagOnlyCGB
	default:
		h.CartridgeGBMode = FlagOnlyDMG
	}

	// parse the title
	if h.CartridgeGBMode == FlagOnlyDMG {
		h.Title = string(header[0x34:0x44])
	} else {
		h.Title = string(header[0x34:0x43])
	}
	h.Title = strings.TrimRight(h.Title, "\x00 ")

	h.ManufacturerCode = string(header[0x3F:0x43])
	h.NewLicenseeCode = string(header[0x44:0x46])
	h.SGBFlag = header[0x46] == 0x03
	h.CartridgeType = Type(header[0x47])

	// parse the ROM size (calculated by 32kB x (1 << n))
	h.ROMSize = (32 * 1024) * (1 << (header[0x48] & 0x0F))
	h.RAMSize = ramMAP[header[0x49]]

	h.CountryCode = header[0x4A]
	h.OldLicenseeCode = header[0x4B]
	h.MaskROMVersion = header[0x4C]
	h.HeaderChecksum = header[0x4D]
	h.GlobalChecksum = uint16(header[0x4E])<<8 | uint16(header[0x4F])

	return h
}

// HeaderChecksum computes the header checksum over 0x0134-0x014C of the
// given ROM. The result is stored by the cartridge at 0x014D.
func HeaderChecksum(rom []byte) uint8 {
	var sum uint8
	for _, b := range rom[checksumStart : checksumEnd+1] {
		sum = sum - b - 1
	}
	return sum
}

// ValidateHeader checks that rom is large enough to hold a header and
// that the header checksum matches.
func ValidateHeader(rom []byte) error {
	if len(rom) < headerEnd {
		return errors.Wrapf(ErrROMTooSmall, "%d bytes", len(rom))
	}
	if sum := HeaderChecksum(rom); sum != rom[checksumAddress] {
		return errors.Wrapf(ErrBadChecksum, "computed 0x%02X, header 0x%02X", sum, rom[checksumAddress])
	}
	return nil
}

// HasBattery reports whether the cartridge keeps its external RAM
// powered by a battery.
func (h *Header) HasBattery() bool {
	return h.CartridgeType == MBC1RAMBATT
}

func (h *Header) GameboyColor() bool {
	return h.CartridgeGBMode == FlagOnlyCGB || h.CartridgeGBMode == FlagSupportsCGB
}

func (h *Header) Hardware() string {
	switch h.CartridgeGBMode {
	case FlagOnlyDMG:
		return "DMG"
	case FlagSupportsCGB:
		return "CGB"
	case FlagOnlyCGB:
		return "CGB"
	default:
		return "Unknown"
	}
}

func (h *Header) String() string {
	return fmt.Sprintf("%s Mode: %s | Type: %s | ROM Size: %dkB | RAM Size: %dkB | Hash: %016x",
		h.Title, h.Hardware(), h.CartridgeType, h.ROMSize/1024, h.RAMSize/1024, h.Hash)
}
