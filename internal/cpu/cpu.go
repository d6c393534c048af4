// Package cpu implements the Sharp LR35902 CPU. The CPU is driven by
// the system clock: each tick is one machine cycle, and an instruction
// occupies as many ticks as it costs.
package cpu

import (
	"context"

	"github.com/pkg/errors"
	"github.com/thelolagemann/tickboy/internal/clock"
	"github.com/thelolagemann/tickboy/internal/types"
	"github.com/thelolagemann/tickboy/pkg/log"
)

// ErrIllegalOpcode is returned, wrapped in an *IllegalOpcodeError,
// when an opcode with no defined behaviour is decoded.
var ErrIllegalOpcode = errors.New("illegal opcode")

// Bus is the memory the CPU reads from and writes to.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	Read16(address uint16) uint16
	Write16(address uint16, value uint16)
}

// CPU represents the Gameboy CPU. It is responsible for executing instructions.
type CPU struct {
	// PC is the program counter, it points to the next instruction to be executed.
	PC uint16
	// SP is the stack pointer, it points to the top of the stack.
	SP uint16
	// Registers contains the 8-bit registers, as well as the 16-bit register pairs.
	*types.Registers

	// Debug enables logging of every executed instruction.
	Debug bool

	b   Bus
	log log.Logger

	// remaining is the number of ticks left before the current
	// instruction completes. The CPU is idle when it is zero.
	remaining uint8

	halted  bool
	stopped bool
	ime     bool
	// imeDelay counts down the instructions until EI takes effect.
	imeDelay uint8

	instructions uint64
}

// Opt configures a CPU.
type Opt func(c *CPU)

// WithLogger sets the logger used by the CPU.
func WithLogger(l log.Logger) Opt {
	return func(c *CPU) {
		c.log = l
	}
}

// Debug enables instruction tracing at debug level.
func Debug() Opt {
	return func(c *CPU) {
		c.Debug = true
	}
}

// NewCPU creates a new CPU reading from and writing to the given Bus.
// Execution begins at 0x0100, the cartridge entry point.
func NewCPU(b Bus, opts ...Opt) *CPU {
	c := &CPU{
		PC:        0x0100,
		SP:        0xFFFE,
		Registers: types.NewRegisters(),
		b:         b,
		log:       log.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Halted reports whether a HALT instruction has been executed.
func (c *CPU) Halted() bool { return c.halted }

// Stopped reports whether a STOP instruction has been executed.
func (c *CPU) Stopped() bool { return c.stopped }

// IME reports whether the interrupt master enable latch is set.
func (c *CPU) IME() bool { return c.ime }

// Remaining returns the number of ticks left on the current instruction.
func (c *CPU) Remaining() uint8 { return c.remaining }

// Instructions returns the number of instructions executed.
func (c *CPU) Instructions() uint64 { return c.instructions }

// Tick advances the CPU by one machine cycle. When the CPU is idle the
// next instruction is decoded and executed, and the CPU then stays
// busy for the rest of its cost.
func (c *CPU) Tick() error {
	if c.remaining > 0 {
		c.remaining--
		return nil
	}
	if c.halted || c.stopped {
		return nil
	}

	cycles, err := c.Step()
	if err != nil {
		return err
	}
	c.remaining = cycles - 1
	return nil
}

// Step decodes and executes a single instruction, returning its cost
// in machine cycles.
func (c *CPU) Step() (uint8, error) {
	instruction, err := c.Decode()
	if err != nil {
		return 0, err
	}
	cycles := c.Execute(instruction)
	c.instructions++

	if c.imeDelay > 0 {
		c.imeDelay--
		if c.imeDelay == 0 {
			c.ime = true
		}
	}

	if c.Debug {
		c.log.Debugf("%04X %-16s A:%02X F:%02X B:%02X C:%02X D:%02X E:%02X H:%02X L:%02X SP:%04X (%d cycles)",
			instruction.Address, instruction, c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.SP, cycles)
	}
	return cycles, nil
}

// Run ticks the CPU once for every tick delivered to sub, acknowledging
// each one once the CPU has processed it. It returns nil when the clock
// is stopped, the context's error when ctx is done, and the first fatal
// execution error otherwise. sub is closed on return so the clock never
// waits on a CPU that has exited.
func (c *CPU) Run(ctx context.Context, sub *clock.Subscription) error {
	defer sub.Close()
	for {
		if _, err := sub.AwaitTick(ctx); err != nil {
			if errors.Is(err, clock.ErrStopped) {
				return nil
			}
			return err
		}
		if err := c.Tick(); err != nil {
			c.log.Errorf("cpu halted on fatal error: %v", err)
			return err
		}
		sub.Acknowledge()
	}
}

// fetch reads the byte at PC and advances PC.
func (c *CPU) fetch() uint8 {
	value := c.b.Read(c.PC)
	c.PC++
	return value
}

// fetch16 reads the little-endian word at PC and advances PC by 2.
func (c *CPU) fetch16() uint16 {
	value := c.b.Read16(c.PC)
	c.PC += 2
	return value
}

// register returns a pointer to the given 8-bit register.
func (c *CPU) register(r Reg) *types.Register {
	switch r {
	case RegA:
		return &c.A
	case RegB:
		return &c.B
	case RegC:
		return &c.C
	case RegD:
		return &c.D
	case RegE:
		return &c.E
	case RegH:
		return &c.H
	case RegL:
		return &c.L
	}
	panic(errors.Errorf("invalid register: %d", r))
}

// pairValue returns the value of the given register pair.
func (c *CPU) pairValue(p Pair) uint16 {
	switch p {
	case PairBC:
		return c.BC.Uint16()
	case PairDE:
		return c.DE.Uint16()
	case PairHL:
		return c.HL.Uint16()
	case PairSP:
		return c.SP
	case PairAF:
		return c.AF.Uint16()
	}
	panic(errors.Errorf("invalid register pair: %d", p))
}

// setPair sets the value of the given register pair.
func (c *CPU) setPair(p Pair, value uint16) {
	switch p {
	case PairBC:
		c.BC.SetUint16(value)
	case PairDE:
		c.DE.SetUint16(value)
	case PairHL:
		c.HL.SetUint16(value)
	case PairSP:
		c.SP = value
	case PairAF:
		c.AF.SetUint16(value)
	default:
		panic(errors.Errorf("invalid register pair: %d", p))
	}
}
