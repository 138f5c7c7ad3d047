// Package zmachine ties the address, memory, stack, variable, object, and
// decoder packages together into a runnable interpreter: construction
// from a raw story file, the opcode handler table, and the fetch-decode-
// dispatch loop. Grounded on the teacher's zmachine/zmachine.go
// (LoadRom/Run/StepMachine), rewritten for explicit error propagation
// instead of panics, per spec.md §7.
package zmachine

import (
	"github.com/mvisser/zgrue/zheader"
	"github.com/mvisser/zgrue/zmem"
	"github.com/mvisser/zgrue/zobject"
	"github.com/mvisser/zgrue/zpc"
	"github.com/mvisser/zgrue/zstack"
	"github.com/mvisser/zgrue/zvar"
)

// OutputSink is the narrow interface the interpreter writes decoded text
// to. cmd/zgrue supplies a plain io.Writer-backed sink for headless runs
// and a channel-backed sink for the interactive bubbletea front end; the
// core never imports either.
type OutputSink interface {
	WriteString(s string)
	NewLine()
}

// Interpreter owns one running story: memory, header, call stack,
// variable namespace, object table, program counter, and an output sink.
// Per spec.md §5 it is single-threaded and cooperative; callers must not
// share one across goroutines.
type Interpreter struct {
	Mem     *zmem.Image
	Header  *zheader.Header
	Stack   *zstack.Stack
	Vars    *zvar.Namespace
	Objects *zobject.Table
	PC      *zpc.PC
	Out     OutputSink
}

// Load parses a raw story file and constructs a ready-to-run Interpreter
// positioned at the header's start PC. Out may be nil; callers that only
// want to validate a story file can pass a discarding sink or skip
// running altogether.
func Load(storyBytes []byte, out OutputSink) (*Interpreter, error) {
	header, err := zheader.Parse(storyBytes)
	if err != nil {
		return nil, err
	}
	if err := header.Validate(uint32(len(storyBytes))); err != nil {
		return nil, err
	}

	mem := zmem.New(storyBytes, header.StaticMemoryBase, header.HighMemoryBase)

	objects, err := zobject.New(mem, header)
	if err != nil {
		return nil, err
	}

	stack := zstack.New()
	vars := &zvar.Namespace{Stack: stack, Mem: mem, Header: header}
	pc := zpc.New(mem, header.StartPC)

	return &Interpreter{
		Mem:     mem,
		Header:  header,
		Stack:   stack,
		Vars:    vars,
		Objects: objects,
		PC:      pc,
		Out:     out,
	}, nil
}
