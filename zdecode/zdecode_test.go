package zdecode

import (
	"testing"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zmem"
	"github.com/mvisser/zgrue/zpc"
)

func newPC(bytes ...byte) *zpc.PC {
	mem := zmem.New(bytes, zaddr.Offset(len(bytes)), zaddr.Offset(len(bytes)))
	return zpc.New(mem, 0)
}

func TestReadBranchShortFormTakenPositive(t *testing.T) {
	pc := newPC(0b1100_0110)
	b, err := ReadBranch(pc)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Polarity || b.Offset != 6 {
		t.Errorf("branch = %+v, want {Polarity:true Offset:6}", b)
	}
	if pc.Current() != 1 {
		t.Errorf("consumed %d bytes, want 1", pc.Current())
	}
}

func TestReadBranchLongFormNegative(t *testing.T) {
	pc := newPC(0b0010_1010, 0xAB)
	b, err := ReadBranch(pc)
	if err != nil {
		t.Fatal(err)
	}
	if b.Polarity || b.Offset != -5461 {
		t.Errorf("branch = %+v, want {Polarity:false Offset:-5461}", b)
	}
	if pc.Current() != 2 {
		t.Errorf("consumed %d bytes, want 2", pc.Current())
	}
}

func TestDecodeLongForm2OP(t *testing.T) {
	// je (opcode 1), two small-constant operands.
	pc := newPC(0x01, 5, 9)
	inst, err := DecodeInstruction(pc, zaddr.V3)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Form != LongForm || inst.OperandCount != OP2 || inst.Number != 1 {
		t.Fatalf("inst = %+v, want LongForm/OP2/1", inst)
	}
	if len(inst.Operands) != 2 || inst.Operands[0].Kind != SmallConstant || inst.Operands[0].Value != 5 ||
		inst.Operands[1].Kind != SmallConstant || inst.Operands[1].Value != 9 {
		t.Errorf("operands = %+v, want [SmallConstant:5 SmallConstant:9]", inst.Operands)
	}
}

func TestDecodeShortForm1OP(t *testing.T) {
	// get_child (opcode 2), one small-constant operand.
	pc := newPC(0b1001_0010, 7)
	inst, err := DecodeInstruction(pc, zaddr.V3)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Form != ShortForm || inst.OperandCount != OP1 || inst.Number != 2 {
		t.Fatalf("inst = %+v, want ShortForm/OP1/2", inst)
	}
	if len(inst.Operands) != 1 || inst.Operands[0].Kind != SmallConstant || inst.Operands[0].Value != 7 {
		t.Errorf("operands = %+v, want [SmallConstant:7]", inst.Operands)
	}
}

func TestDecodeShortForm0OP(t *testing.T) {
	// rtrue (opcode 0), operand kind bits set to Omitted (11).
	pc := newPC(0b1011_0000)
	inst, err := DecodeInstruction(pc, zaddr.V3)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Form != ShortForm || inst.OperandCount != OP0 || inst.Number != 0 {
		t.Fatalf("inst = %+v, want ShortForm/OP0/0", inst)
	}
	if len(inst.Operands) != 0 {
		t.Errorf("operands = %+v, want none", inst.Operands)
	}
}

func TestDecodeVariableForm2OP(t *testing.T) {
	// add (opcode 20) encoded in variable form: small-constant then variable.
	pc := newPC(0xD4, 0b01_10_11_11, 10, 0x05)
	inst, err := DecodeInstruction(pc, zaddr.V3)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Form != VariableForm || inst.OperandCount != OP2 || inst.Number != 20 {
		t.Fatalf("inst = %+v, want VariableForm/OP2/20", inst)
	}
	if len(inst.Operands) != 2 || inst.Operands[0].Kind != SmallConstant || inst.Operands[0].Value != 10 ||
		inst.Operands[1].Kind != VariableKind || inst.Operands[1].Value != 0x05 {
		t.Errorf("operands = %+v, want [SmallConstant:10 VariableKind:5]", inst.Operands)
	}
}

func TestDecodeVariableFormVAR(t *testing.T) {
	// call (opcode 0) with a single large-constant operand.
	pc := newPC(0xE0, 0b00_11_11_11, 0x12, 0x34)
	inst, err := DecodeInstruction(pc, zaddr.V3)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Form != VariableForm || inst.OperandCount != VAR || inst.Number != 0 {
		t.Fatalf("inst = %+v, want VariableForm/VAR/0", inst)
	}
	if len(inst.Operands) != 1 || inst.Operands[0].Kind != LargeConstant || inst.Operands[0].Value != 0x1234 {
		t.Errorf("operands = %+v, want [LargeConstant:0x1234]", inst.Operands)
	}
}

func TestDecodeExtendedForm(t *testing.T) {
	pc := newPC(0xBE, 0x09, 0b00_11_11_11, 0x00, 0x2A)
	inst, err := DecodeInstruction(pc, zaddr.V5)
	if err != nil {
		t.Fatal(err)
	}
	if inst.Form != ExtendedForm || inst.OperandCount != VAR || inst.Number != 0x09 {
		t.Fatalf("inst = %+v, want ExtendedForm/VAR/9", inst)
	}
	if len(inst.Operands) != 1 || inst.Operands[0].Value != 0x2A {
		t.Errorf("operands = %+v, want [0x2A]", inst.Operands)
	}
}

func TestOperandEvaluateOmittedFails(t *testing.T) {
	op := Operand{Kind: Omitted}
	if _, err := op.Evaluate(nil); err == nil {
		t.Fatal("expected error evaluating an omitted operand")
	}
}
