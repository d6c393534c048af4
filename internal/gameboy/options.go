package gameboy

import (
	"io"
	"time"

	"github.com/thelolagemann/tickboy/pkg/log"
)

// Opt is a function that modifies a GameBoy
// instance before its components are created.
type Opt func(gb *GameBoy)

// Debug enables debug logging of every executed instruction.
func Debug() Opt {
	return func(gb *GameBoy) {
		gb.debug = true
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l log.Logger) Opt {
	return func(gb *GameBoy) {
		gb.Logger = l
	}
}

// WithSerialWriter attaches w to the serial port. Every byte the ROM
// sends over the link cable is written to w.
func WithSerialWriter(w io.Writer) Opt {
	return func(gb *GameBoy) {
		gb.serialOut = w
	}
}

// WithStallTimeout sets how long the clock waits for the CPU to
// acknowledge a tick before giving up. A zero duration waits forever.
func WithStallTimeout(d time.Duration) Opt {
	return func(gb *GameBoy) {
		gb.stallTimeout = d
	}
}

// WithWorkRAM maps work RAM and high RAM into the address space.
func WithWorkRAM() Opt {
	return func(gb *GameBoy) {
		gb.workRAM = true
	}
}

// WithSaveFile sets the file battery backed cartridge RAM is loaded
// from on start, and saved to when emulation ends.
func WithSaveFile(path string) Opt {
	return func(gb *GameBoy) {
		gb.saveFile = path
	}
}

// WithCadence overrides the rate the clock emits ticks at.
func WithCadence(ticksPerFrame int, frame time.Duration) Opt {
	return func(gb *GameBoy) {
		gb.ticksPerFrame = ticksPerFrame
		gb.frameTime = frame
	}
}
