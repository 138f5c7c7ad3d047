package zmachine

import (
	"strconv"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zdecode"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zstring"
	"github.com/mvisser/zgrue/zvar"
)

// handlerFunc implements one opcode. store and branch are nil unless the
// opcode table marks that opcode as having one (the loop has already
// consumed the corresponding bytes from the PC by the time the handler
// runs).
type handlerFunc func(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, branch *zdecode.Branch) error

// doReturn implements the shared return path (spec.md §4.6): capture the
// top frame's return-PC and return-variable, pop it, write value to that
// variable (now resolved against the caller's frame), then jump to the
// saved return-PC.
func (in *Interpreter) doReturn(value uint16) error {
	returnPC, returnVarByte, err := in.Stack.PopFrame()
	if err != nil {
		return err
	}
	if err := in.Vars.Write(zvar.Decode(returnVarByte), value); err != nil {
		return err
	}
	in.PC.Set(returnPC)
	return nil
}

// resolveBranch implements spec.md §4.5's branch-offset semantics once a
// predicate result is known: a decoded offset of 0/1 triggers the shared
// return path with false/true; anything else shifts the PC.
func (in *Interpreter) resolveBranch(result bool, b zdecode.Branch) error {
	if result != b.Polarity {
		return nil
	}
	switch b.Offset {
	case 0:
		return in.doReturn(0)
	case 1:
		return in.doReturn(1)
	default:
		return in.PC.Offset(b.Offset - 2)
	}
}

// indirectVariable resolves one of the seven indirect-variable-reference
// operands (inc, dec, inc_chk, dec_chk, load, store, pull): a constant
// operand names the target variable directly; a Variable-kind operand
// names a variable whose *value* (peeked, not popped, when that variable
// is the stack) is itself the target variable number.
func indirectVariable(in *Interpreter, op zdecode.Operand) (zvar.Variable, error) {
	switch op.Kind {
	case zdecode.VariableKind:
		v, err := op.Variable()
		if err != nil {
			return zvar.Variable{}, err
		}
		raw, err := in.Vars.ReadIndirect(v)
		if err != nil {
			return zvar.Variable{}, err
		}
		return zvar.Decode(uint8(raw)), nil
	case zdecode.SmallConstant, zdecode.LargeConstant:
		return zvar.Decode(uint8(op.Value)), nil
	default:
		return zvar.Variable{}, zerr.New(zerr.MissingOperand, "indirect variable operand omitted")
	}
}

func eval(in *Interpreter, inst *zdecode.Instruction, i int) (uint16, error) {
	if i >= len(inst.Operands) {
		return 0, zerr.New(zerr.MissingOperand, "operand slot not present")
	}
	return inst.Operands[i].Evaluate(in.Vars)
}

// --- 0OP ---

func opRtrue(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	return in.doReturn(1)
}

func opRfalse(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	return in.doReturn(0)
}

func opPrint(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	text, n, err := zstring.Decode(in.Mem, in.Header, in.PC.Current())
	if err != nil {
		return err
	}
	if err := in.PC.Offset(int32(n)); err != nil {
		return err
	}
	in.Out.WriteString(text)
	return nil
}

func opPrintRet(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	text, _, err := zstring.Decode(in.Mem, in.Header, in.PC.Current())
	if err != nil {
		return err
	}
	in.Out.WriteString(text)
	in.Out.NewLine()
	return in.doReturn(1)
}

func opNewLine(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	in.Out.NewLine()
	return nil
}

func opQuit(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	return Halt{}
}

// --- 1OP ---

func opJz(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, branch *zdecode.Branch) error {
	v, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	return in.resolveBranch(v == 0, *branch)
}

func opGetSibling(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, branch *zdecode.Branch) error {
	id, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	obj, err := in.Objects.Get(id)
	if err != nil {
		return err
	}
	if err := in.Vars.Write(*store, obj.Sibling); err != nil {
		return err
	}
	return in.resolveBranch(obj.Sibling != 0, *branch)
}

func opGetChild(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, branch *zdecode.Branch) error {
	id, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	obj, err := in.Objects.Get(id)
	if err != nil {
		return err
	}
	if err := in.Vars.Write(*store, obj.Child); err != nil {
		return err
	}
	return in.resolveBranch(obj.Child != 0, *branch)
}

func opGetParent(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	id, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	obj, err := in.Objects.Get(id)
	if err != nil {
		return err
	}
	return in.Vars.Write(*store, obj.Parent)
}

func opRet(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	v, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	return in.doReturn(v)
}

func opJump(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	v, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	return in.PC.Offset(int32(int16(v)) - 2)
}

// --- 2OP ---

func opJe(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, branch *zdecode.Branch) error {
	if len(inst.Operands) < 2 {
		return zerr.New(zerr.MissingOperand, "je requires at least 2 operands")
	}
	want, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	result := false
	for i := 1; i < len(inst.Operands); i++ {
		v, err := eval(in, inst, i)
		if err != nil {
			return err
		}
		if v == want {
			result = true
		}
	}
	return in.resolveBranch(result, *branch)
}

func opIncChk(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, branch *zdecode.Branch) error {
	v, newVal, err := stepChk(in, inst, 1)
	if err != nil {
		return err
	}
	test, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	_ = v
	return in.resolveBranch(int16(newVal) > int16(test), *branch)
}

func opDecChk(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, branch *zdecode.Branch) error {
	v, newVal, err := stepChk(in, inst, -1)
	if err != nil {
		return err
	}
	test, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	_ = v
	return in.resolveBranch(int16(newVal) < int16(test), *branch)
}

// stepChk applies delta (+1 or -1) to the variable named indirectly by
// inst.Operands[0], writes it back in place, and returns the old and new
// values. Shared by inc_chk and dec_chk.
func stepChk(in *Interpreter, inst *zdecode.Instruction, delta int16) (old uint16, updated uint16, err error) {
	if len(inst.Operands) == 0 {
		return 0, 0, zerr.New(zerr.MissingOperand, "inc_chk/dec_chk require a variable operand")
	}
	target, err := indirectVariable(in, inst.Operands[0])
	if err != nil {
		return 0, 0, err
	}
	old, err = in.Vars.ReadIndirect(target)
	if err != nil {
		return 0, 0, err
	}
	updated = uint16(int16(old) + delta)
	if err := in.Vars.WriteIndirect(target, updated); err != nil {
		return 0, 0, err
	}
	return old, updated, nil
}

func opJin(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, branch *zdecode.Branch) error {
	objID, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	parentID, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	obj, err := in.Objects.Get(objID)
	if err != nil {
		return err
	}
	return in.resolveBranch(uint16(obj.Parent) == parentID, *branch)
}

func opOr(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	a, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	b, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	return in.Vars.Write(*store, a|b)
}

func opAnd(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	a, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	b, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	return in.Vars.Write(*store, a&b)
}

func opTestAttr(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, branch *zdecode.Branch) error {
	id, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	attr, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	result, err := in.Objects.TestAttribute(id, uint8(attr))
	if err != nil {
		return err
	}
	return in.resolveBranch(result, *branch)
}

func opSetAttr(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	id, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	attr, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	return in.Objects.SetAttribute(id, uint8(attr))
}

func opClearAttr(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	id, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	attr, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	return in.Objects.ClearAttribute(id, uint8(attr))
}

func opStore(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	if len(inst.Operands) < 2 {
		return zerr.New(zerr.MissingOperand, "store requires 2 operands")
	}
	target, err := indirectVariable(in, inst.Operands[0])
	if err != nil {
		return err
	}
	val, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	return in.Vars.WriteIndirect(target, val)
}

func opInsertObj(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	objID, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	destID, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	return in.Objects.InsertObject(objID, destID)
}

func opLoadw(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	base, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	index, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	v, err := in.Mem.ReadWord(zaddr.Offset(base) + zaddr.Offset(index)*2)
	if err != nil {
		return err
	}
	return in.Vars.Write(*store, v)
}

func opLoadb(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	base, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	index, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	v, err := in.Mem.ReadByte(zaddr.Offset(base) + zaddr.Offset(index))
	if err != nil {
		return err
	}
	return in.Vars.Write(*store, uint16(v))
}

func binaryArith(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, op func(a, b int16) (int16, error)) error {
	a, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	b, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	result, err := op(int16(a), int16(b))
	if err != nil {
		return err
	}
	return in.Vars.Write(*store, uint16(result))
}

func opAdd(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	return binaryArith(in, inst, store, func(a, b int16) (int16, error) { return a + b, nil })
}

func opSub(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	return binaryArith(in, inst, store, func(a, b int16) (int16, error) { return a - b, nil })
}

func opMul(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	return binaryArith(in, inst, store, func(a, b int16) (int16, error) { return a * b, nil })
}

func opDiv(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	return binaryArith(in, inst, store, func(a, b int16) (int16, error) {
		if b == 0 {
			return 0, zerr.New(zerr.BadStoryFile, "division by zero")
		}
		return a / b, nil
	})
}

func opMod(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	return binaryArith(in, inst, store, func(a, b int16) (int16, error) {
		if b == 0 {
			return 0, zerr.New(zerr.BadStoryFile, "modulo by zero")
		}
		return a % b, nil
	})
}

// --- VAR ---

func opCall(in *Interpreter, inst *zdecode.Instruction, store *zvar.Variable, _ *zdecode.Branch) error {
	if len(inst.Operands) == 0 {
		return zerr.New(zerr.MissingOperand, "call requires a routine address")
	}
	routineVal, err := eval(in, inst, 0)
	if err != nil {
		return err
	}

	returnPC := in.PC.Current() // the loop already consumed the store-variable byte

	if routineVal == 0 {
		return in.Vars.Write(*store, 0)
	}

	addr := in.Header.PackedAddress(zaddr.PackedAddress(routineVal))
	localCount, err := in.Mem.ReadByte(addr)
	if err != nil {
		return err
	}
	addr++

	locals := make([]uint16, localCount)
	if in.Header.Version == zaddr.V3 {
		for i := 0; i < int(localCount); i++ {
			v, err := in.Mem.ReadWord(addr)
			if err != nil {
				return err
			}
			locals[i] = v
			addr += 2
		}
	}

	for i := 1; i < len(inst.Operands) && i-1 < int(localCount); i++ {
		v, err := eval(in, inst, i)
		if err != nil {
			return err
		}
		locals[i-1] = v
	}

	if err := in.Stack.PushFrame(returnPC, localCount, store.Encode(), locals); err != nil {
		return err
	}
	in.PC.Set(addr)
	return nil
}

func opStorew(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	base, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	index, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	val, err := eval(in, inst, 2)
	if err != nil {
		return err
	}
	return in.Mem.WriteWord(zaddr.Offset(base)+zaddr.Offset(index)*2, val)
}

func opPutProp(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	objID, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	propID, err := eval(in, inst, 1)
	if err != nil {
		return err
	}
	val, err := eval(in, inst, 2)
	if err != nil {
		return err
	}
	return in.Objects.PutProperty(objID, uint8(propID), val)
}

func opPrintChar(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	v, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	in.Out.WriteString(string(rune(uint8(v))))
	return nil
}

func opPrintNum(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	v, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	in.Out.WriteString(strconv.Itoa(int(int16(v))))
	return nil
}

func opPush(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	v, err := eval(in, inst, 0)
	if err != nil {
		return err
	}
	return in.Stack.PushWord(v)
}

func opPull(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	if len(inst.Operands) == 0 {
		return zerr.New(zerr.MissingOperand, "pull requires a target variable")
	}
	target, err := indirectVariable(in, inst.Operands[0])
	if err != nil {
		return err
	}
	v, err := in.Stack.PopWord()
	if err != nil {
		return err
	}
	return in.Vars.WriteIndirect(target, v)
}

func opSread(in *Interpreter, inst *zdecode.Instruction, _ *zvar.Variable, _ *zdecode.Branch) error {
	return InputRequested{Opcode: "sread"}
}
