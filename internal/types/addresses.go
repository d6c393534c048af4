package types

// HardwareAddress is the address of a memory mapped hardware register.
type HardwareAddress = uint16

const (
	// SB is the address of the SB hardware register. The SB
	// register holds the byte being transferred over the serial port.
	SB HardwareAddress = 0xFF01
	// SC is the address of the SC hardware register. The SC
	// register controls serial transfers.
	//
	//	Bit 7 - Transfer Start Flag (0=No Transfer, 1=Start)
	//	Bit 0 - Shift Clock (0=External Clock, 1=Internal Clock)
	SC HardwareAddress = 0xFF02
)

const (
	// ROMStart is the first address mapped to the cartridge ROM.
	ROMStart uint16 = 0x0000
	// ROMEnd is the last address mapped to the cartridge ROM.
	ROMEnd uint16 = 0x7FFF
	// ExternalRAMStart is the first address mapped to the cartridge RAM.
	ExternalRAMStart uint16 = 0xA000
	// ExternalRAMEnd is the last address mapped to the cartridge RAM.
	ExternalRAMEnd uint16 = 0xBFFF
)
