// Package mmu provides the address space router for the Game Boy. The
// MMU owns no memory itself (unless work RAM is enabled), it dispatches
// every access to the device mapped at that address.
package mmu

import (
	"github.com/thelolagemann/tickboy/internal/cartridge"
	"github.com/thelolagemann/tickboy/internal/ram"
	"github.com/thelolagemann/tickboy/internal/types"
	"github.com/thelolagemann/tickboy/pkg/log"
)

// IOBus is the interface that the MMU uses to communicate with the other
// components.
type IOBus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

const (
	workRAMStart  = 0xC000
	echoRAMEnd    = 0xFDFF
	highRAMStart  = 0xFF80
	highRAMEnd    = 0xFFFE
	workRAMSize   = 0x2000
	highRAMSize   = 0x7F
	serialRegLast = types.SC
)

// MMU is the memory management unit for the Game Boy. It routes reads
// and writes across the 16-bit address space:
//
//	0x0000 - 0x7FFF - cartridge ROM, writes go to the MBC
//	0xA000 - 0xBFFF - cartridge RAM
//	0xFF01 - 0xFF02 - serial registers
//
// Any other address reads as 0 and discards writes, so a ROM can be
// brought up before every peripheral is emulated.
type MMU struct {
	Cart   cartridge.Cartridge
	Serial IOBus

	// 0xC000 - 0xDFFF - Work RAM (8kB), mirrored at 0xE000 - 0xFDFF
	wRAM ram.RAM
	// 0xFF80 - 0xFFFE - High RAM (127B)
	hRAM ram.RAM

	Log log.Logger
}

// Opt configures an MMU.
type Opt func(m *MMU)

// WithLogger sets the logger used to report accesses to unmapped
// addresses at debug level.
func WithLogger(l log.Logger) Opt {
	return func(m *MMU) {
		m.Log = l
	}
}

// WithWorkRAM maps work RAM (and its echo) and high RAM into the
// address space, which most ROMs need for their stack.
func WithWorkRAM() Opt {
	return func(m *MMU) {
		m.wRAM = ram.NewRAM(workRAMSize)
		m.hRAM = ram.NewRAM(highRAMSize)
	}
}

// NewMMU returns a new MMU routing to the given cartridge and serial
// device.
func NewMMU(cart cartridge.Cartridge, serial IOBus, opts ...Opt) *MMU {
	m := &MMU{
		Cart:   cart,
		Serial: serial,
		Log:    log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read returns the value at the given address.
func (m *MMU) Read(address uint16) uint8 {
	switch {
	case address <= types.ROMEnd,
		address >= types.ExternalRAMStart && address <= types.ExternalRAMEnd:
		return m.Cart.Read(address)
	case address >= types.SB && address <= serialRegLast:
		return m.Serial.Read(address)
	case m.wRAM != nil && address >= workRAMStart && address <= echoRAMEnd:
		return m.wRAM.Read(address - workRAMStart)
	case m.hRAM != nil && address >= highRAMStart && address <= highRAMEnd:
		return m.hRAM.Read(address - highRAMStart)
	}

	m.Log.Debugf("mmu: read from unmapped address 0x%04X", address)
	return 0
}

// Write writes the value to the given address.
func (m *MMU) Write(address uint16, value uint8) {
	switch {
	case address <= types.ROMEnd,
		address >= types.ExternalRAMStart && address <= types.ExternalRAMEnd:
		m.Cart.Write(address, value)
	case address >= types.SB && address <= serialRegLast:
		m.Serial.Write(address, value)
	case m.wRAM != nil && address >= workRAMStart && address <= echoRAMEnd:
		m.wRAM.Write(address-workRAMStart, value)
	case m.hRAM != nil && address >= highRAMStart && address <= highRAMEnd:
		m.hRAM.Write(address-highRAMStart, value)
	default:
		m.Log.Debugf("mmu: write of 0x%02X to unmapped address 0x%04X", value, address)
	}
}

// Read16 reads a little-endian 16-bit value starting at address.
func (m *MMU) Read16(address uint16) uint16 {
	return uint16(m.Read(address)) | uint16(m.Read(address+1))<<8
}

// Write16 writes a little-endian 16-bit value starting at address.
func (m *MMU) Write16(address uint16, value uint16) {
	m.Write(address, uint8(value))
	m.Write(address+1, uint8(value>>8))
}
