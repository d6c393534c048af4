// Package cartridge provides a Cartridge interface for the DMG.
// The cartridge holds the game ROM and any external RAM.
package cartridge

import (
	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
)

var (
	// ErrROMTooSmall is returned when a ROM is too small to hold a header.
	ErrROMTooSmall = errors.New("rom too small")
	// ErrBadChecksum is returned when the header checksum does not match.
	ErrBadChecksum = errors.New("cartridge header checksum is invalid")
	// ErrUnsupportedType is returned for cartridge types without a
	// controller implementation.
	ErrUnsupportedType = errors.New("unsupported cartridge type")
)

// externalRAMSize is the size of the external RAM fitted to MBC1 carts
// that have one.
const externalRAMSize = 0x2000

// Cartridge represents a basic game cartridge.
type Cartridge interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)

	Header() *Header
}

// Battery is implemented by cartridges that have external RAM which
// can be persisted between runs.
type Battery interface {
	RAM() []byte
	LoadRAM(data []byte)
}

// NewCartridge validates the header of rom and returns the Cartridge
// implementation selected by its cartridge type.
func NewCartridge(rom []byte) (Cartridge, error) {
	if err := ValidateHeader(rom); err != nil {
		return nil, err
	}

	// parse the cartridge header (0x0100 - 0x014F)
	header := parseHeader(rom[headerStart:headerEnd])
	header.Hash = xxhash.Sum64(rom)

	switch header.CartridgeType {
	case ROM:
		return NewROMCartridge(rom, header), nil
	case MBC1:
		return NewMemoryBankedCartridge1(rom, header, 0), nil
	case MBC1RAM, MBC1RAMBATT:
		return NewMemoryBankedCartridge1(rom, header, externalRAMSize), nil
	}

	return nil, errors.Wrapf(ErrUnsupportedType, "0x%02X", rom[typeAddress])
}
