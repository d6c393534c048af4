package cpu

var (
	// InstructionSet holds the unprefixed instructions, indexed by opcode.
	InstructionSet [256]Instruction
	// InstructionSetCB holds the 0xCB prefixed instructions, indexed by
	// the byte following the prefix.
	InstructionSetCB [256]Instruction
)

func reg(r Reg) Operand   { return Operand{Mode: ModeRegister, Reg: r} }
func pair(p Pair) Operand { return Operand{Mode: ModePair, Pair: p} }
func ind(p Pair) Operand  { return Operand{Mode: ModeIndirect, Pair: p} }

var (
	none   = Operand{}
	hlInc  = Operand{Mode: ModeHLInc, Pair: PairHL}
	hlDec  = Operand{Mode: ModeHLDec, Pair: PairHL}
	imm8   = Operand{Mode: ModeImmediate8}
	imm16  = Operand{Mode: ModeImmediate16}
	abs    = Operand{Mode: ModeAbsolute}
	high   = Operand{Mode: ModeHigh}
	highC  = Operand{Mode: ModeHighC}
	rel    = Operand{Mode: ModeRelative}
	hlAddr = ind(PairHL)
)

// r8 holds the 8-bit operands in the order they are encoded in the
// low 3 bits of an opcode.
var r8 = [8]Operand{reg(RegB), reg(RegC), reg(RegD), reg(RegE), reg(RegH), reg(RegL), hlAddr, reg(RegA)}

// DefineInstruction defines an unconditional instruction in the
// InstructionSet, with the provided opcode.
func DefineInstruction(opcode uint8, op Op, dst, src Operand, cycles uint8) {
	InstructionSet[opcode] = newInstruction(opcode, false, op, CondAlways, dst, src, cycles, cycles)
}

// DefineConditional defines a conditional branch in the InstructionSet,
// costing cycles when the condition is not met and taken when it is.
func DefineConditional(opcode uint8, op Op, cond Cond, src Operand, cycles, taken uint8) {
	InstructionSet[opcode] = newInstruction(opcode, false, op, cond, none, src, cycles, taken)
}

// DefineInstructionCB defines an instruction in the InstructionSetCB.
func DefineInstructionCB(opcode uint8, op Op, bit uint8, dst Operand, cycles uint8) {
	i := newInstruction(opcode, true, op, CondAlways, dst, none, cycles, cycles)
	i.Bit = bit
	i.Name = i.format(false)
	InstructionSetCB[opcode] = i
}

func newInstruction(opcode uint8, prefixed bool, op Op, cond Cond, dst, src Operand, cycles, taken uint8) Instruction {
	i := Instruction{
		Opcode:      opcode,
		Prefixed:    prefixed,
		Op:          op,
		Dst:         dst,
		Src:         src,
		Cond:        cond,
		Cycles:      cycles,
		TakenCycles: taken,
	}
	i.Name = i.format(false)
	return i
}

// memoryCost returns cost when o addresses memory through HL, and
// fallback otherwise.
func memoryCost(o Operand, fallback, cost uint8) uint8 {
	if o.Mode == ModeIndirect {
		return cost
	}
	return fallback
}

func init() {
	DefineInstruction(0x00, OpNOP, none, none, 1)
	DefineInstruction(0x08, OpLD16, abs, pair(PairSP), 5)
	DefineInstruction(0x10, OpSTOP, none, imm8, 1)
	DefineInstruction(0x18, OpJR, none, rel, 3)

	// 16-bit loads and arithmetic, ordered BC, DE, HL, SP
	for i := uint8(0); i < 4; i++ {
		rr := pair(Pair(i))
		DefineInstruction(i<<4|0x01, OpLD16, rr, imm16, 3)
		DefineInstruction(i<<4|0x03, OpINC16, rr, none, 2)
		DefineInstruction(i<<4|0x09, OpADDHL, pair(PairHL), rr, 2)
		DefineInstruction(i<<4|0x0B, OpDEC16, rr, none, 2)
	}

	// accumulator loads through (BC), (DE), (HL+), (HL-)
	for i, m := range [4]Operand{ind(PairBC), ind(PairDE), hlInc, hlDec} {
		base := uint8(i) << 4
		DefineInstruction(base|0x02, OpLD, m, reg(RegA), 2)
		DefineInstruction(base|0x0A, OpLD, reg(RegA), m, 2)
	}

	// INC r, DEC r, LD r, d8
	for i, r := range r8 {
		base := uint8(i) << 3
		DefineInstruction(base|0x04, OpINC, r, none, memoryCost(r, 1, 3))
		DefineInstruction(base|0x05, OpDEC, r, none, memoryCost(r, 1, 3))
		DefineInstruction(base|0x06, OpLD, r, imm8, memoryCost(r, 2, 3))
	}

	for i, op := range [8]Op{OpRLCA, OpRRCA, OpRLA, OpRRA, OpDAA, OpCPL, OpSCF, OpCCF} {
		DefineInstruction(uint8(i)<<3|0x07, op, none, none, 1)
	}

	// conditional branches, ordered NZ, Z, NC, C
	for i := uint8(0); i < 4; i++ {
		cc := Cond(i + 1)
		DefineConditional(0x20|i<<3, OpJR, cc, rel, 2, 3)
		DefineConditional(0xC0|i<<3, OpRET, cc, none, 2, 5)
		DefineConditional(0xC2|i<<3, OpJP, cc, imm16, 3, 4)
		DefineConditional(0xC4|i<<3, OpCALL, cc, imm16, 3, 6)
	}

	// LD r, r'
	for d, dst := range r8 {
		for s, src := range r8 {
			opcode := 0x40 | uint8(d)<<3 | uint8(s)
			if opcode == 0x76 {
				continue
			}
			DefineInstruction(opcode, OpLD, dst, src, memoryCost(dst, memoryCost(src, 1, 2), 2))
		}
	}
	DefineInstruction(0x76, OpHALT, none, none, 1)

	// 8-bit arithmetic and logic on the accumulator
	for o, op := range [8]Op{OpADD, OpADC, OpSUB, OpSBC, OpAND, OpXOR, OpOR, OpCP} {
		base := uint8(o) << 3
		for s, src := range r8 {
			DefineInstruction(0x80|base|uint8(s), op, reg(RegA), src, memoryCost(src, 1, 2))
		}
		DefineInstruction(0xC6|base, op, reg(RegA), imm8, 2)
	}

	// stack operations, ordered BC, DE, HL, AF
	for i, p := range [4]Pair{PairBC, PairDE, PairHL, PairAF} {
		base := uint8(i) << 4
		DefineInstruction(0xC1|base, OpPOP, pair(p), none, 3)
		DefineInstruction(0xC5|base, OpPUSH, none, pair(p), 4)
	}
	for i := uint8(0); i < 8; i++ {
		DefineInstruction(0xC7|i<<3, OpRST, Operand{Mode: ModeVector, Value: uint16(i) << 3}, none, 4)
	}

	DefineInstruction(0xC3, OpJP, none, imm16, 4)
	DefineInstruction(0xC9, OpRET, none, none, 4)
	DefineInstruction(0xCD, OpCALL, none, imm16, 6)
	DefineInstruction(0xD9, OpRETI, none, none, 4)
	DefineInstruction(0xE0, OpLD, high, reg(RegA), 3)
	DefineInstruction(0xE2, OpLD, highC, reg(RegA), 2)
	DefineInstruction(0xE8, OpADDSP, pair(PairSP), rel, 4)
	DefineInstruction(0xE9, OpJP, none, pair(PairHL), 1)
	DefineInstruction(0xEA, OpLD, abs, reg(RegA), 4)
	DefineInstruction(0xF0, OpLD, reg(RegA), high, 3)
	DefineInstruction(0xF2, OpLD, reg(RegA), highC, 2)
	DefineInstruction(0xF3, OpDI, none, none, 1)
	DefineInstruction(0xF8, OpLDHLSP, pair(PairHL), rel, 3)
	DefineInstruction(0xF9, OpLD16, pair(PairSP), pair(PairHL), 2)
	DefineInstruction(0xFA, OpLD, reg(RegA), abs, 4)
	DefineInstruction(0xFB, OpEI, none, none, 1)

	// 0xCB is the prefix byte rather than an instruction
	for _, opcode := range illegalOpcodes {
		InstructionSet[opcode] = Instruction{Opcode: opcode, Op: OpIllegal, Name: OpIllegal.String()}
	}

	// rotates, shifts and swap
	for o, op := range [8]Op{OpRLC, OpRRC, OpRL, OpRR, OpSLA, OpSRA, OpSWAP, OpSRL} {
		for r, dst := range r8 {
			DefineInstructionCB(uint8(o)<<3|uint8(r), op, 0, dst, memoryCost(dst, 2, 4))
		}
	}

	// bit operations
	for b := uint8(0); b < 8; b++ {
		for r, dst := range r8 {
			opcode := b<<3 | uint8(r)
			DefineInstructionCB(0x40|opcode, OpBIT, b, dst, memoryCost(dst, 2, 3))
			DefineInstructionCB(0x80|opcode, OpRES, b, dst, memoryCost(dst, 2, 4))
			DefineInstructionCB(0xC0|opcode, OpSET, b, dst, memoryCost(dst, 2, 4))
		}
	}
}

// illegalOpcodes are the unprefixed opcodes with no defined behaviour.
var illegalOpcodes = []uint8{
	0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD,
}
