package cpu

import (
	"fmt"
	"strings"
)

// Op identifies the operation an Instruction performs.
type Op uint8

const (
	// OpIllegal marks an opcode with no defined behaviour. It is the
	// zero value so that undefined table entries are illegal.
	OpIllegal Op = iota
	OpNOP
	OpLD     // 8-bit load
	OpLD16   // 16-bit load
	OpLDHLSP // LD HL, SP+e
	OpPUSH
	OpPOP
	OpADD
	OpADC
	OpSUB
	OpSBC
	OpAND
	OpXOR
	OpOR
	OpCP
	OpINC
	OpDEC
	OpINC16
	OpDEC16
	OpADDHL // ADD HL, rr
	OpADDSP // ADD SP, e
	OpDAA
	OpCPL
	OpSCF
	OpCCF
	OpRLCA
	OpRRCA
	OpRLA
	OpRRA
	OpJP
	OpJR
	OpCALL
	OpRET
	OpRETI
	OpRST
	OpHALT
	OpSTOP
	OpDI
	OpEI
	OpRLC
	OpRRC
	OpRL
	OpRR
	OpSLA
	OpSRA
	OpSWAP
	OpSRL
	OpBIT
	OpRES
	OpSET
)

var opMnemonics = [...]string{
	OpIllegal: "ILLEGAL",
	OpNOP:     "NOP",
	OpLD:      "LD",
	OpLD16:    "LD",
	OpLDHLSP:  "LD",
	OpPUSH:    "PUSH",
	OpPOP:     "POP",
	OpADD:     "ADD",
	OpADC:     "ADC",
	OpSUB:     "SUB",
	OpSBC:     "SBC",
	OpAND:     "AND",
	OpXOR:     "XOR",
	OpOR:      "OR",
	OpCP:      "CP",
	OpINC:     "INC",
	OpDEC:     "DEC",
	OpINC16:   "INC",
	OpDEC16:   "DEC",
	OpADDHL:   "ADD",
	OpADDSP:   "ADD",
	OpDAA:     "DAA",
	OpCPL:     "CPL",
	OpSCF:     "SCF",
	OpCCF:     "CCF",
	OpRLCA:    "RLCA",
	OpRRCA:    "RRCA",
	OpRLA:     "RLA",
	OpRRA:     "RRA",
	OpJP:      "JP",
	OpJR:      "JR",
	OpCALL:    "CALL",
	OpRET:     "RET",
	OpRETI:    "RETI",
	OpRST:     "RST",
	OpHALT:    "HALT",
	OpSTOP:    "STOP",
	OpDI:      "DI",
	OpEI:      "EI",
	OpRLC:     "RLC",
	OpRRC:     "RRC",
	OpRL:      "RL",
	OpRR:      "RR",
	OpSLA:     "SLA",
	OpSRA:     "SRA",
	OpSWAP:    "SWAP",
	OpSRL:     "SRL",
	OpBIT:     "BIT",
	OpRES:     "RES",
	OpSET:     "SET",
}

// String returns the mnemonic of the operation.
func (o Op) String() string {
	if int(o) < len(opMnemonics) {
		return opMnemonics[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Reg identifies an 8-bit register.
type Reg uint8

const (
	RegA Reg = iota
	RegB
	RegC
	RegD
	RegE
	RegH
	RegL
)

func (r Reg) String() string {
	return [...]string{"A", "B", "C", "D", "E", "H", "L"}[r]
}

// Pair identifies a 16-bit register pair.
type Pair uint8

const (
	PairBC Pair = iota
	PairDE
	PairHL
	PairSP
	PairAF
)

func (p Pair) String() string {
	return [...]string{"BC", "DE", "HL", "SP", "AF"}[p]
}

// Mode is the addressing mode of an Operand.
type Mode uint8

const (
	ModeNone        Mode = iota
	ModeRegister         // 8-bit register
	ModePair             // 16-bit register pair, including SP
	ModeIndirect         // memory addressed by a pair
	ModeHLInc            // memory addressed by HL, HL incremented after access
	ModeHLDec            // memory addressed by HL, HL decremented after access
	ModeImmediate8       // d8
	ModeImmediate16      // d16 or a16
	ModeAbsolute         // memory at a16
	ModeHigh             // memory at 0xFF00+a8
	ModeHighC            // memory at 0xFF00+C
	ModeRelative         // signed 8-bit displacement
	ModeVector           // fixed restart vector
)

// Operand is a tagged source or destination of an Instruction. Value
// holds immediate data once the instruction has been decoded: the
// byte for d8 and e, the word for d16 and a16, the full address for
// a8, and the target for a restart vector.
type Operand struct {
	Mode  Mode
	Reg   Reg
	Pair  Pair
	Value uint16
}

// Cond is the condition a conditional branch is taken on.
type Cond uint8

const (
	CondAlways Cond = iota
	CondNZ
	CondZ
	CondNC
	CondC
)

func (c Cond) String() string {
	return [...]string{"", "NZ", "Z", "NC", "C"}[c]
}

// Instruction is a single decoded CPU instruction.
type Instruction struct {
	Name     string
	Opcode   uint8
	Prefixed bool
	Op       Op
	Dst      Operand
	Src      Operand
	Cond     Cond
	Bit      uint8

	// Cycles is the cost in machine cycles, or the cost when the
	// condition is not met for conditional branches.
	Cycles uint8
	// TakenCycles is the cost when a conditional branch is taken.
	TakenCycles uint8

	// Address is the location the instruction was fetched from.
	Address uint16
}

// String returns a disassembly of the instruction, with any
// immediate values resolved.
func (i Instruction) String() string {
	return i.format(true)
}

func (i Instruction) format(resolved bool) string {
	var args []string
	if i.Op == OpBIT || i.Op == OpRES || i.Op == OpSET {
		args = append(args, fmt.Sprintf("%d", i.Bit))
	}
	if i.Cond != CondAlways {
		args = append(args, i.Cond.String())
	}
	for n, o := range [2]Operand{i.Dst, i.Src} {
		if o.Mode == ModeNone {
			continue
		}
		// the accumulator is implicit for SUB, AND, XOR, OR and CP
		if n == 0 && i.implicitAccumulator() {
			continue
		}
		args = append(args, i.formatOperand(o, resolved))
	}
	if i.Op == OpSTOP {
		args = nil
	}
	if i.Op == OpLDHLSP {
		if resolved {
			args[1] = "SP" + args[1]
		} else {
			args[1] = "SP+" + args[1]
		}
	}

	if len(args) == 0 {
		return i.Op.String()
	}
	return i.Op.String() + " " + strings.Join(args, ", ")
}

func (i Instruction) implicitAccumulator() bool {
	switch i.Op {
	case OpSUB, OpAND, OpXOR, OpOR, OpCP:
		return true
	}
	return false
}

func (i Instruction) formatOperand(o Operand, resolved bool) string {
	switch o.Mode {
	case ModeRegister:
		return o.Reg.String()
	case ModePair:
		return o.Pair.String()
	case ModeIndirect:
		return "(" + o.Pair.String() + ")"
	case ModeHLInc:
		return "(HL+)"
	case ModeHLDec:
		return "(HL-)"
	case ModeHighC:
		return "(C)"
	case ModeVector:
		return fmt.Sprintf("%02XH", o.Value)
	}

	if !resolved {
		switch o.Mode {
		case ModeImmediate8:
			return "d8"
		case ModeImmediate16:
			if i.Op == OpJP || i.Op == OpCALL {
				return "a16"
			}
			return "d16"
		case ModeAbsolute:
			return "(a16)"
		case ModeHigh:
			return "(a8)"
		case ModeRelative:
			return "r8"
		}
	}

	switch o.Mode {
	case ModeImmediate8:
		return fmt.Sprintf("$%02X", o.Value)
	case ModeImmediate16:
		return fmt.Sprintf("$%04X", o.Value)
	case ModeAbsolute, ModeHigh:
		return fmt.Sprintf("($%04X)", o.Value)
	case ModeRelative:
		return fmt.Sprintf("%+d", int8(o.Value))
	}
	return "?"
}

// IllegalOpcodeError is returned when the CPU decodes an opcode that
// has no defined behaviour.
type IllegalOpcodeError struct {
	Opcode  uint8
	Address uint16
}

func (e *IllegalOpcodeError) Error() string {
	return fmt.Sprintf("illegal opcode 0x%02X at 0x%04X", e.Opcode, e.Address)
}

// Unwrap allows errors.Is to match ErrIllegalOpcode.
func (e *IllegalOpcodeError) Unwrap() error { return ErrIllegalOpcode }

// Cause allows errors.Cause to resolve to ErrIllegalOpcode.
func (e *IllegalOpcodeError) Cause() error { return ErrIllegalOpcode }
