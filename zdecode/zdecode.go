// Package zdecode classifies opcode form, reads operands of each kind,
// and reads branch offsets. Grounded on the teacher's zmachine/opcode.go
// (ParseOpcode/parseVariableOperands/handleBranch), rewritten against
// zpc.PC and returning errors instead of silently defaulting.
package zdecode

import (
	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zpc"
	"github.com/mvisser/zgrue/zvar"
)

// OperandKind is the 2-bit encoding of an operand's source.
type OperandKind uint8

const (
	LargeConstant OperandKind = 0b00
	SmallConstant OperandKind = 0b01
	VariableKind  OperandKind = 0b10
	Omitted       OperandKind = 0b11
)

// Form is the instruction's syntactic family.
type Form int

const (
	LongForm Form = iota
	ShortForm
	VariableForm
	ExtendedForm
)

// OperandCount groups opcodes the way the dispatch table keys them.
type OperandCount int

const (
	OP0 OperandCount = iota
	OP1
	OP2
	VAR
)

// Operand is a single decoded operand: a constant value, or a variable
// reference to be resolved later against a Namespace.
type Operand struct {
	Kind  OperandKind
	Value uint16 // literal value, or the raw 8-bit variable-name byte when Kind == VariableKind
}

// Evaluate yields the operand's 16-bit value via the variable namespace.
// Evaluating an Omitted operand fails with zerr.MissingOperand.
func (o Operand) Evaluate(ns *zvar.Namespace) (uint16, error) {
	switch o.Kind {
	case LargeConstant, SmallConstant:
		return o.Value, nil
	case VariableKind:
		return ns.Read(zvar.Decode(uint8(o.Value)))
	default:
		return 0, zerr.New(zerr.MissingOperand, "operand slot decoded to Omitted")
	}
}

// Variable decodes a VariableKind operand's raw byte into a zvar.Variable.
// Callers that need indirect (peek-in-place) semantics use this plus
// Namespace.ReadIndirect/WriteIndirect instead of Evaluate.
func (o Operand) Variable() (zvar.Variable, error) {
	if o.Kind != VariableKind {
		return zvar.Variable{}, zerr.New(zerr.MissingOperand, "operand is not a variable reference")
	}
	return zvar.Decode(uint8(o.Value)), nil
}

// Instruction is a fully decoded instruction: its opcode number within its
// family, the family itself, and its operands. StorePresent/BranchPresent
// are left for the caller (zmachine knows, per opcode table, which
// opcodes store or branch; zdecode only decodes what it's told to).
type Instruction struct {
	StartPC      zaddr.Offset
	Form         Form
	OperandCount OperandCount
	Number       uint8
	Operands     []Operand
}

// DecodeInstruction reads one instruction's opcode byte, form, and
// operands from pc, advancing it past all of them. It does not read a
// store-variable byte or a branch offset — callers do that afterward via
// ReadStoreVariable / ReadBranch once they know (from the opcode table)
// whether this instruction has one.
func DecodeInstruction(pc *zpc.PC, version zaddr.Version) (*Instruction, error) {
	start := pc.Current()
	opByte, err := pc.NextByte()
	if err != nil {
		return nil, err
	}

	inst := &Instruction{StartPC: start}

	switch {
	case opByte == 0xBE && version >= zaddr.V5:
		num, err := pc.NextByte()
		if err != nil {
			return nil, err
		}
		inst.Form = ExtendedForm
		inst.OperandCount = VAR
		inst.Number = num
		if err := readVariableOperands(pc, inst, false); err != nil {
			return nil, err
		}

	case opByte>>6 == 0b10: // short form
		inst.Form = ShortForm
		inst.Number = opByte & 0x0F
		kind := OperandKind((opByte >> 4) & 0b11)
		if kind == Omitted {
			inst.OperandCount = OP0
		} else {
			inst.OperandCount = OP1
			op, err := readOperand(pc, kind)
			if err != nil {
				return nil, err
			}
			inst.Operands = append(inst.Operands, op)
		}

	case opByte>>6 == 0b11: // variable form
		inst.Form = VariableForm
		inst.Number = opByte & 0b1_1111
		if opByte&0b10_0000 == 0 {
			inst.OperandCount = OP2
		} else {
			inst.OperandCount = VAR
		}
		extended := inst.OperandCount == VAR && (inst.Number == 12 || inst.Number == 26) // call_vs2 / call_vn2 take up to 8 operands
		if err := readVariableOperands(pc, inst, extended); err != nil {
			return nil, err
		}

	default: // long form
		inst.Form = LongForm
		inst.Number = opByte & 0b1_1111
		inst.OperandCount = OP2

		k1 := SmallConstant
		if opByte&0b100_0000 != 0 {
			k1 = VariableKind
		}
		k2 := SmallConstant
		if opByte&0b10_0000 != 0 {
			k2 = VariableKind
		}
		for _, k := range [2]OperandKind{k1, k2} {
			op, err := readOperand(pc, k)
			if err != nil {
				return nil, err
			}
			inst.Operands = append(inst.Operands, op)
		}
	}

	return inst, nil
}

func readOperand(pc *zpc.PC, kind OperandKind) (Operand, error) {
	switch kind {
	case LargeConstant:
		v, err := pc.NextWord()
		return Operand{Kind: kind, Value: v}, err
	case SmallConstant, VariableKind:
		v, err := pc.NextByte()
		return Operand{Kind: kind, Value: uint16(v)}, err
	default:
		return Operand{Kind: Omitted}, nil
	}
}

func readVariableOperands(pc *zpc.PC, inst *Instruction, extended bool) error {
	kindByte, err := pc.NextByte()
	if err != nil {
		return err
	}
	var kindByte2 uint8
	maxOperands := 4
	if extended {
		kindByte2, err = pc.NextByte()
		if err != nil {
			return err
		}
		maxOperands = 8
	}

	for i := 0; i < maxOperands; i++ {
		var kind OperandKind
		if i < 4 {
			kind = OperandKind((kindByte >> (2 * (3 - i))) & 0b11)
		} else {
			kind = OperandKind((kindByte2 >> (2 * (7 - i))) & 0b11)
		}
		if kind == Omitted {
			break
		}
		op, err := readOperand(pc, kind)
		if err != nil {
			return err
		}
		inst.Operands = append(inst.Operands, op)
	}
	return nil
}

// Branch is a decoded branch-offset instruction tail (spec.md §4.5).
type Branch struct {
	// Polarity is true when the branch is taken on a true predicate.
	Polarity bool
	// Offset is the raw decoded value: 0 means "return false", 1 means
	// "return true", anything else is a PC delta of Offset-2.
	Offset int32
}

// ReadBranch reads a branch-offset tail, advancing pc past it.
func ReadBranch(pc *zpc.PC) (Branch, error) {
	b1, err := pc.NextByte()
	if err != nil {
		return Branch{}, err
	}

	polarity := b1&0x80 != 0
	shortForm := b1&0x40 != 0

	if shortForm {
		return Branch{Polarity: polarity, Offset: int32(b1 & 0x3F)}, nil
	}

	b2, err := pc.NextByte()
	if err != nil {
		return Branch{}, err
	}
	raw := uint16(b1&0x3F)<<8 | uint16(b2)
	// Sign-extend from bit 13 (the value is a 14-bit signed quantity).
	signed := int32(raw)
	if raw&0x2000 != 0 {
		signed -= 0x4000
	}
	return Branch{Polarity: polarity, Offset: signed}, nil
}
