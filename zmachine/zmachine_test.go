package zmachine

import (
	"strings"
	"testing"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zheader"
	"github.com/mvisser/zgrue/zmem"
	"github.com/mvisser/zgrue/zobject"
	"github.com/mvisser/zgrue/zpc"
	"github.com/mvisser/zgrue/zstack"
	"github.com/mvisser/zgrue/zvar"
)

type recorder struct {
	sb strings.Builder
}

func (r *recorder) WriteString(s string) { r.sb.WriteString(s) }
func (r *recorder) NewLine()             { r.sb.WriteByte('\n') }

func newTestInterpreter(t *testing.T, buf []byte, header *zheader.Header, startPC zaddr.Offset) *Interpreter {
	t.Helper()
	mem := zmem.New(buf, zaddr.Offset(len(buf)), zaddr.Offset(len(buf)))
	objects, err := zobject.New(mem, header)
	if err != nil {
		t.Fatal(err)
	}
	stack := zstack.New()
	vars := &zvar.Namespace{Stack: stack, Mem: mem, Header: header}
	return &Interpreter{
		Mem:     mem,
		Header:  header,
		Stack:   stack,
		Vars:    vars,
		Objects: objects,
		PC:      zpc.New(mem, startPC),
		Out:     &recorder{},
	}
}

func TestStepAddWithOverflow(t *testing.T) {
	// add #FFFA, #62 -> L0, variable-form encoding (large constants require it).
	code := []byte{0xD4, 0x0F, 0xFF, 0xFA, 0x00, 0x62, 0x01}
	buf := make([]byte, 0x100)
	copy(buf, code)
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	if err := in.Stack.PushFrame(0, 1, 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := in.Step(); err != nil {
		t.Fatal(err)
	}
	got, err := in.Stack.ReadLocal(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x005C {
		t.Errorf("L0 after add #FFFA,#62 = 0x%04x, want 0x005C", got)
	}
}

func TestStepJeThreeOperandsBranchTaken(t *testing.T) {
	// je 5 3 5 ?(+7): third operand matches, branch taken, offset 7 (PC += 5).
	code := []byte{0xC1, 0x57, 5, 3, 5, 0xC7}
	buf := make([]byte, 0x100)
	copy(buf, code)
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	if err := in.Step(); err != nil {
		t.Fatal(err)
	}
	if in.PC.Current() != zaddr.Offset(len(code))+5 {
		t.Errorf("PC after je branch = %d, want %d", in.PC.Current(), zaddr.Offset(len(code))+5)
	}
}

func TestStepJeNoMatchBranchNotTaken(t *testing.T) {
	code := []byte{0xC1, 0x57, 5, 3, 4, 0xC7}
	buf := make([]byte, 0x100)
	copy(buf, code)
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	if err := in.Step(); err != nil {
		t.Fatal(err)
	}
	if in.PC.Current() != zaddr.Offset(len(code)) {
		t.Errorf("PC after untaken je branch = %d, want %d (no jump)", in.PC.Current(), len(code))
	}
}

func TestStepCallAndReturn(t *testing.T) {
	buf := make([]byte, 0x2000)
	header := &zheader.Header{Version: zaddr.V3, GlobalsBase: 0x0010}

	// call 0x0800 7 -> G00, then a routine header + rtrue at packed 0x0800
	// (absolute 0x1000 under the V3 packed-address multiplier of 2).
	callInstr := []byte{0xE0, 0x1F, 0x08, 0x00, 0x07, 0x10}
	copy(buf[0:], callInstr)

	routine := []byte{0x02, 0x00, 0x0B, 0x00, 0x16} // 2 locals, defaults 0x0B and 0x16
	copy(buf[0x1000:], routine)
	buf[0x1005] = 0xB0 // rtrue, short form 0OP

	in := newTestInterpreter(t, buf, header, 0)

	if err := in.Step(); err != nil {
		t.Fatal(err)
	}
	if in.Stack.IsRoot() {
		t.Fatal("expected a pushed call frame after call")
	}
	l0, _ := in.Stack.ReadLocal(0)
	l1, _ := in.Stack.ReadLocal(1)
	if l0 != 7 || l1 != 0x16 {
		t.Errorf("locals after call = [%d %d], want [7 22]", l0, l1)
	}
	if in.Stack.ReturnPC() != 6 || in.Stack.ReturnVariable() != 0x10 {
		t.Errorf("return linkage = (%d, 0x%x), want (6, 0x10)", in.Stack.ReturnPC(), in.Stack.ReturnVariable())
	}
	if in.PC.Current() != 0x1005 {
		t.Fatalf("PC after call = 0x%x, want 0x1005", in.PC.Current())
	}

	if err := in.Step(); err != nil {
		t.Fatal(err)
	}
	if !in.Stack.IsRoot() {
		t.Error("expected the call frame to be popped after rtrue")
	}
	if in.PC.Current() != 6 {
		t.Errorf("PC after rtrue = %d, want 6 (the call's return PC)", in.PC.Current())
	}
	global0, err := in.Mem.ReadWord(header.GlobalOffset(0))
	if err != nil {
		t.Fatal(err)
	}
	if global0 != 1 {
		t.Errorf("G00 after rtrue = %d, want 1", global0)
	}
}

func TestStepCallToZeroSkipsRoutine(t *testing.T) {
	// call 0 -> G00: per spec, calling address 0 is a no-op that stores 0.
	code := []byte{0xE0, 0x1F, 0x00, 0x00, 0x00, 0x10}
	buf := make([]byte, 0x100)
	copy(buf, code)
	header := &zheader.Header{Version: zaddr.V3, GlobalsBase: 0x20}
	in := newTestInterpreter(t, buf, header, 0)

	if err := in.Step(); err != nil {
		t.Fatal(err)
	}
	if !in.Stack.IsRoot() {
		t.Error("call to address 0 must not push a frame")
	}
	v, err := in.Mem.ReadWord(header.GlobalOffset(0))
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Errorf("store after call-to-0 = %d, want 0", v)
	}
}

func TestStepQuitReturnsHalt(t *testing.T) {
	buf := []byte{0xBA} // 0OP quit, short form
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	err := in.Step()
	if _, ok := err.(Halt); !ok {
		t.Fatalf("Step() on quit = %v (%T), want Halt", err, err)
	}
}

func TestStepSreadReturnsInputRequested(t *testing.T) {
	buf := []byte{0xE4, 0xFF} // VAR sread, no operands
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	err := in.Step()
	ir, ok := err.(InputRequested)
	if !ok {
		t.Fatalf("Step() on sread = %v (%T), want InputRequested", err, err)
	}
	if ir.Opcode != "sread" {
		t.Errorf("InputRequested.Opcode = %q, want %q", ir.Opcode, "sread")
	}
}

func TestStepUnknownOpcodeIsDiagnostic(t *testing.T) {
	// Long form, operand count 2, opcode number 2 (no 2OP:2 is defined).
	buf := []byte{0x02, 0, 0}
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	err := in.Step()
	if zerr.KindOf(err) != zerr.UnknownOpcode {
		t.Fatalf("Step() on undefined opcode = %v, want UnknownOpcode", err)
	}
}

func TestStepAttachesOffsetOnHandlerError(t *testing.T) {
	// get_parent on a nonexistent object (id 0) fails inside the handler
	// without an offset; the loop must attach the instruction's start PC.
	buf := []byte{0, 0, 0b1001_0011, 0, 0x10} // two pad bytes, then get_parent #0 -> (store)
	header := &zheader.Header{Version: zaddr.V3, ObjectTableBase: 0x40}
	in := newTestInterpreter(t, buf, header, 2)

	err := in.Step()
	ze, ok := err.(*zerr.Error)
	if !ok {
		t.Fatalf("Step() error = %v (%T), want *zerr.Error", err, err)
	}
	if !ze.HasOffset || ze.Offset != 2 {
		t.Errorf("error offset = (%v, %d), want (true, 2)", ze.HasOffset, ze.Offset)
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	buf := []byte{0xB0, 0xB0, 0xBA} // rtrue, rtrue, quit -- but root rtrue underflows first
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	if err := in.Run(); zerr.KindOf(err) != zerr.StackUnderflow {
		t.Fatalf("Run() = %v, want StackUnderflow (rtrue at the root has no frame to pop)", err)
	}
}

func TestRunHaltsCleanly(t *testing.T) {
	buf := []byte{0xBA} // quit
	header := &zheader.Header{Version: zaddr.V3}
	in := newTestInterpreter(t, buf, header, 0)

	err := in.Run()
	if _, ok := err.(Halt); !ok {
		t.Fatalf("Run() = %v (%T), want Halt", err, err)
	}
}
