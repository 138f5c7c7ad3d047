// Package zvar is the unified variable namespace: a router that resolves a
// Variable (stack / local / global) to a concrete read or write against
// the call stack's eval area, its top frame's locals, or the header's
// global area.
package zvar

import (
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zheader"
	"github.com/mvisser/zgrue/zmem"
	"github.com/mvisser/zgrue/zstack"
)

// Kind tags which namespace a Variable addresses.
type Kind int

const (
	Stack Kind = iota
	Local
	Global
)

// Variable is a tagged reference into the unified namespace. Local holds
// 0..=14 (zero-indexed), Global holds 0..=239 (zero-indexed).
type Variable struct {
	Kind  Kind
	Index uint8
}

// Decode converts an instruction's 8-bit variable-name byte into a
// Variable: 0x00 -> Stack, 0x01..=0x0F -> Local(n-1), 0x10..=0xFF ->
// Global(n-0x10).
func Decode(b uint8) Variable {
	switch {
	case b == 0x00:
		return Variable{Kind: Stack}
	case b <= 0x0F:
		return Variable{Kind: Local, Index: b - 1}
	default:
		return Variable{Kind: Global, Index: b - 0x10}
	}
}

// Encode is the inverse of Decode.
func (v Variable) Encode() uint8 {
	switch v.Kind {
	case Stack:
		return 0x00
	case Local:
		return v.Index + 1
	default:
		return v.Index + 0x10
	}
}

// Namespace binds a call stack, memory image, and header together to
// resolve Variable reads and writes. It holds no state of its own beyond
// the borrowed handles.
type Namespace struct {
	Stack  *zstack.Stack
	Mem    *zmem.Image
	Header *zheader.Header
}

// Read resolves v and returns its value. Reading Stack pops the top
// frame's eval area (use ReadIndirect for the seven indirect-reference opcodes
// that must not disturb stack depth).
func (n *Namespace) Read(v Variable) (uint16, error) {
	switch v.Kind {
	case Stack:
		return n.Stack.PopWord()
	case Local:
		if v.Index > 14 {
			return 0, zerr.Newf(zerr.BadVariableIndex, "local index %d out of range", v.Index)
		}
		return n.Stack.ReadLocal(v.Index)
	default:
		if v.Index > 239 {
			return 0, zerr.Newf(zerr.BadVariableIndex, "global index %d out of range", v.Index)
		}
		return n.Mem.ReadWord(n.Header.GlobalOffset(v.Index))
	}
}

// Write resolves v and stores value. Writing Stack pushes it.
func (n *Namespace) Write(v Variable, value uint16) error {
	switch v.Kind {
	case Stack:
		return n.Stack.PushWord(value)
	case Local:
		if v.Index > 14 {
			return zerr.Newf(zerr.BadVariableIndex, "local index %d out of range", v.Index)
		}
		return n.Stack.WriteLocal(v.Index, value)
	default:
		if v.Index > 239 {
			return zerr.Newf(zerr.BadVariableIndex, "global index %d out of range", v.Index)
		}
		return n.Mem.WriteWord(n.Header.GlobalOffset(v.Index), value)
	}
}

// ReadIndirect resolves v like Read, except Stack peeks in place rather
// than popping — the semantics required by inc, dec, inc_chk, dec_chk,
// load, store, and pull.
func (n *Namespace) ReadIndirect(v Variable) (uint16, error) {
	if v.Kind == Stack {
		return n.Stack.PeekWord()
	}
	return n.Read(v)
}

// WriteIndirect resolves v like Write, except Stack overwrites in place
// rather than pushing a new entry. See ReadIndirect.
func (n *Namespace) WriteIndirect(v Variable, value uint16) error {
	if v.Kind == Stack {
		return n.Stack.PokeWord(value)
	}
	return n.Write(v, value)
}
