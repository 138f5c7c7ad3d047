package zmachine

import (
	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zdecode"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zvar"
)

// Step fetches, decodes, and executes exactly one instruction. It returns
// Halt when the story executed quit, InputRequested when it executed sread,
// and any other error with the failing instruction's start offset attached
// when the error does not already carry an offset, per spec.md §7's
// diagnostic-context rule. Errors from memory reads and writes and from PC
// moves keep the offset they were raised with.
func (in *Interpreter) Step() error {
	startPC := in.PC.Current()

	inst, err := zdecode.DecodeInstruction(in.PC, in.Header.Version)
	if err != nil {
		return attachOffset(err, startPC)
	}

	entry, ok := opcodes[opcodeKey{count: inst.OperandCount, number: inst.Number}]
	if !ok {
		return attachOffset(zerr.Newf(zerr.UnknownOpcode, "unknown opcode %d in family %d", inst.Number, inst.OperandCount), startPC)
	}

	var store *zvar.Variable
	if entry.hasStore {
		b, err := in.PC.NextByte()
		if err != nil {
			return attachOffset(err, startPC)
		}
		v := zvar.Decode(b)
		store = &v
	}

	var branch *zdecode.Branch
	if entry.hasBranch {
		b, err := zdecode.ReadBranch(in.PC)
		if err != nil {
			return attachOffset(err, startPC)
		}
		branch = &b
	}

	if err := entry.fn(in, inst, store, branch); err != nil {
		switch err.(type) {
		case Halt, InputRequested:
			return err
		default:
			return attachOffset(err, startPC)
		}
	}
	return nil
}

// attachOffset fills in a *zerr.Error's Offset when the handler that
// produced it didn't already know one, per spec.md §7: diagnostic context
// is attached at the loop boundary, never inside a handler.
func attachOffset(err error, pc zaddr.Offset) error {
	ze, ok := err.(*zerr.Error)
	if !ok || ze.HasOffset {
		return err
	}
	ze.Offset = pc
	ze.HasOffset = true
	return ze
}

// Run steps the interpreter until it halts, requests input it cannot
// serve, or fails. A Halt return is not itself an error to the caller;
// cmd/zgrue treats both Halt and InputRequested as clean-exit conditions.
func (in *Interpreter) Run() error {
	for {
		if err := in.Step(); err != nil {
			return err
		}
	}
}
