package cpu

import (
	"github.com/pkg/errors"
	"github.com/thelolagemann/tickboy/pkg/bits"
)

// Decode fetches the instruction at PC, along with any immediate
// operands, leaving PC at the following instruction. Immediate bytes
// are consumed here exactly once, whether or not a conditional
// instruction is later taken.
func (c *CPU) Decode() (Instruction, error) {
	address := c.PC
	opcode := c.fetch()

	var instruction Instruction
	if opcode == 0xCB {
		instruction = InstructionSetCB[c.fetch()]
	} else {
		instruction = InstructionSet[opcode]
	}
	if instruction.Op == OpIllegal {
		return instruction, &IllegalOpcodeError{Opcode: opcode, Address: address}
	}

	instruction.Address = address
	instruction.Dst = c.resolve(instruction.Dst)
	instruction.Src = c.resolve(instruction.Src)
	return instruction, nil
}

// resolve reads the immediate data of o from the instruction stream.
func (c *CPU) resolve(o Operand) Operand {
	switch o.Mode {
	case ModeImmediate8, ModeRelative:
		o.Value = uint16(c.fetch())
	case ModeImmediate16, ModeAbsolute:
		o.Value = c.fetch16()
	case ModeHigh:
		o.Value = 0xFF00 | uint16(c.fetch())
	}
	return o
}

// Execute performs a decoded instruction and returns its cost in
// machine cycles.
func (c *CPU) Execute(i Instruction) uint8 {
	switch i.Op {
	case OpNOP:
	case OpLD:
		c.write8(i.Dst, c.read8(i.Src))
	case OpLD16:
		c.write16(i.Dst, c.read16(i.Src))
	case OpLDHLSP:
		c.HL.SetUint16(c.addSPSigned(c.SP, uint8(i.Src.Value)))
	case OpPUSH:
		c.push(c.read16(i.Src))
	case OpPOP:
		c.write16(i.Dst, c.pop())

	case OpADD:
		c.A = c.add(c.A, c.read8(i.Src), false)
	case OpADC:
		c.A = c.add(c.A, c.read8(i.Src), true)
	case OpSUB:
		c.A = c.sub(c.A, c.read8(i.Src), false)
	case OpSBC:
		c.A = c.sub(c.A, c.read8(i.Src), true)
	case OpAND:
		c.A = c.and(c.A, c.read8(i.Src))
	case OpXOR:
		c.A = c.xor(c.A, c.read8(i.Src))
	case OpOR:
		c.A = c.or(c.A, c.read8(i.Src))
	case OpCP:
		c.compare(c.read8(i.Src))
	case OpINC:
		c.write8(i.Dst, c.increment(c.read8(i.Dst)))
	case OpDEC:
		c.write8(i.Dst, c.decrement(c.read8(i.Dst)))
	case OpINC16:
		c.write16(i.Dst, c.read16(i.Dst)+1)
	case OpDEC16:
		c.write16(i.Dst, c.read16(i.Dst)-1)
	case OpADDHL:
		c.HL.SetUint16(c.addUint16(c.HL.Uint16(), c.read16(i.Src)))
	case OpADDSP:
		c.SP = c.addSPSigned(c.SP, uint8(i.Src.Value))
	case OpDAA:
		c.decimalAdjust()
	case OpCPL:
		c.complement()
	case OpSCF:
		c.setCarryFlag()
	case OpCCF:
		c.complementCarryFlag()

	case OpRLCA:
		c.rotateAccumulator(c.rotateLeftCarry)
	case OpRRCA:
		c.rotateAccumulator(c.rotateRightCarry)
	case OpRLA:
		c.rotateAccumulator(c.rotateLeftThroughCarry)
	case OpRRA:
		c.rotateAccumulator(c.rotateRightThroughCarry)

	case OpJP:
		if !c.condition(i.Cond) {
			return i.Cycles
		}
		c.PC = c.read16(i.Src)
		return i.TakenCycles
	case OpJR:
		if !c.condition(i.Cond) {
			return i.Cycles
		}
		c.PC = uint16(int32(c.PC) + int32(int8(i.Src.Value)))
		return i.TakenCycles
	case OpCALL:
		if !c.condition(i.Cond) {
			return i.Cycles
		}
		c.push(c.PC)
		c.PC = i.Src.Value
		return i.TakenCycles
	case OpRET:
		if !c.condition(i.Cond) {
			return i.Cycles
		}
		c.PC = c.pop()
		return i.TakenCycles
	case OpRETI:
		c.PC = c.pop()
		c.ime = true
	case OpRST:
		c.push(c.PC)
		c.PC = i.Dst.Value

	case OpHALT:
		c.halted = true
	case OpSTOP:
		c.stopped = true
	case OpDI:
		c.ime = false
		c.imeDelay = 0
	case OpEI:
		// IME is set once the following instruction has executed
		if !c.ime {
			c.imeDelay = 2
		}

	case OpRLC:
		c.write8(i.Dst, c.rotateLeftCarry(c.read8(i.Dst)))
	case OpRRC:
		c.write8(i.Dst, c.rotateRightCarry(c.read8(i.Dst)))
	case OpRL:
		c.write8(i.Dst, c.rotateLeftThroughCarry(c.read8(i.Dst)))
	case OpRR:
		c.write8(i.Dst, c.rotateRightThroughCarry(c.read8(i.Dst)))
	case OpSLA:
		c.write8(i.Dst, c.shiftLeftArithmetic(c.read8(i.Dst)))
	case OpSRA:
		c.write8(i.Dst, c.shiftRightArithmetic(c.read8(i.Dst)))
	case OpSWAP:
		c.write8(i.Dst, c.swap(c.read8(i.Dst)))
	case OpSRL:
		c.write8(i.Dst, c.shiftRightLogical(c.read8(i.Dst)))
	case OpBIT:
		c.testBit(c.read8(i.Dst), i.Bit)
	case OpRES:
		c.write8(i.Dst, bits.Reset(c.read8(i.Dst), i.Bit))
	case OpSET:
		c.write8(i.Dst, bits.Set(c.read8(i.Dst), i.Bit))

	default:
		panic(errors.Errorf("cpu: cannot execute %s (0x%02X)", i.Op, i.Opcode))
	}
	return i.Cycles
}

// condition reports whether a branch on cond is taken.
func (c *CPU) condition(cond Cond) bool {
	switch cond {
	case CondNZ:
		return !c.isFlagSet(FlagZero)
	case CondZ:
		return c.isFlagSet(FlagZero)
	case CondNC:
		return !c.isFlagSet(FlagCarry)
	case CondC:
		return c.isFlagSet(FlagCarry)
	}
	return true
}

// read8 returns the 8-bit value of o, applying any post-increment or
// post-decrement of HL.
func (c *CPU) read8(o Operand) uint8 {
	switch o.Mode {
	case ModeRegister:
		return *c.register(o.Reg)
	case ModeImmediate8:
		return uint8(o.Value)
	case ModeIndirect:
		return c.b.Read(c.pairValue(o.Pair))
	case ModeHLInc:
		address := c.HL.Uint16()
		c.HL.SetUint16(address + 1)
		return c.b.Read(address)
	case ModeHLDec:
		address := c.HL.Uint16()
		c.HL.SetUint16(address - 1)
		return c.b.Read(address)
	case ModeAbsolute, ModeHigh:
		return c.b.Read(o.Value)
	case ModeHighC:
		return c.b.Read(0xFF00 | uint16(c.C))
	}
	panic(errors.Errorf("cpu: invalid 8-bit source mode %d", o.Mode))
}

// write8 stores value to o, applying any post-increment or
// post-decrement of HL.
func (c *CPU) write8(o Operand, value uint8) {
	switch o.Mode {
	case ModeRegister:
		*c.register(o.Reg) = value
	case ModeIndirect:
		c.b.Write(c.pairValue(o.Pair), value)
	case ModeHLInc:
		address := c.HL.Uint16()
		c.HL.SetUint16(address + 1)
		c.b.Write(address, value)
	case ModeHLDec:
		address := c.HL.Uint16()
		c.HL.SetUint16(address - 1)
		c.b.Write(address, value)
	case ModeAbsolute, ModeHigh:
		c.b.Write(o.Value, value)
	case ModeHighC:
		c.b.Write(0xFF00|uint16(c.C), value)
	default:
		panic(errors.Errorf("cpu: invalid 8-bit destination mode %d", o.Mode))
	}
}

// read16 returns the 16-bit value of o.
func (c *CPU) read16(o Operand) uint16 {
	switch o.Mode {
	case ModePair:
		return c.pairValue(o.Pair)
	case ModeImmediate16:
		return o.Value
	}
	panic(errors.Errorf("cpu: invalid 16-bit source mode %d", o.Mode))
}

// write16 stores value to o.
func (c *CPU) write16(o Operand, value uint16) {
	switch o.Mode {
	case ModePair:
		c.setPair(o.Pair, value)
	case ModeAbsolute:
		c.b.Write16(o.Value, value)
	default:
		panic(errors.Errorf("cpu: invalid 16-bit destination mode %d", o.Mode))
	}
}
