// Package zstack is the interpreter's call stack: a flat byte buffer
// holding nested call-frame records (saved frame pointer, return linkage,
// locals) each topped by its own evaluation area, exactly as laid out in
// the data model (frame header: 2-byte saved FP, 4-byte return PC, 1-byte
// return variable, 1-byte local count, N 2-byte local slots).
//
// This is a from-scratch design relative to the teacher's CallStack
// (zmachine/callstack.go), which models frames as a slice of Go structs
// with a slice-backed per-frame stack; the byte-buffer-with-sentinel
// layout here is grounded instead in original_source's Rust frame model,
// which the distilled spec's §3/§8 (frame round-trip, sentinel saved-FP)
// describe directly.
package zstack

import (
	"encoding/binary"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
)

// CapacityBytes is the fixed size of the call stack buffer.
const CapacityBytes = 1024

const (
	headerSize       = 8 // savedFP(2) + returnPC(4) + returnVariable(1) + numLocals(1)
	maxLocals        = 15
	savedFPOffset    = 0
	returnPCOffset   = 2
	returnVarOffset  = 6
	numLocalsOffset  = 7
	localsBaseOffset = 8
	sentinelSavedFP  = CapacityBytes
)

// Stack is the call stack. The zero value is not usable; construct with
// New, which installs the synthetic root frame.
type Stack struct {
	buf []byte
	fp  uint32 // byte offset of the current (topmost) frame's header
	top uint32 // next free byte in the current frame's eval area
}

// New constructs a call stack with a synthetic root frame. The root's
// saved-frame-pointer is the sentinel CapacityBytes, so PopFrame on the
// root reports StackUnderflow.
func New() *Stack {
	s := &Stack{buf: make([]byte, CapacityBytes)}
	binary.BigEndian.PutUint16(s.buf[savedFPOffset:savedFPOffset+2], sentinelSavedFP)
	// return PC / return variable on the root are never read: PopFrame
	// refuses to pop it.
	s.buf[numLocalsOffset] = 0
	s.fp = 0
	s.top = localsBaseOffset
	return s
}

func (s *Stack) numLocals() uint8 {
	return s.buf[s.fp+numLocalsOffset]
}

func (s *Stack) evalBase() uint32 {
	return s.fp + localsBaseOffset + 2*uint32(s.numLocals())
}

func (s *Stack) isRoot() bool {
	return binary.BigEndian.Uint16(s.buf[s.fp+savedFPOffset:s.fp+savedFPOffset+2]) == sentinelSavedFP
}

// PushFrame installs a new call frame above the current one's eval area.
// It copies min(len(args), numLocals) argument words into the leading
// local slots and zero-fills the remainder. Fails with zerr.StackOverflow
// if the frame (header + locals) does not fit; no partial frame is left
// visible on failure.
func (s *Stack) PushFrame(returnPC zaddr.Offset, numLocals uint8, returnVariable uint8, args []uint16) error {
	if numLocals > maxLocals {
		return zerr.Newf(zerr.BadStoryFile, "routine declares %d locals, max is %d", numLocals, maxLocals)
	}

	frameBase := s.top
	frameSize := uint32(headerSize) + 2*uint32(numLocals)
	if frameBase+frameSize > CapacityBytes {
		return zerr.New(zerr.StackOverflow, "call frame does not fit")
	}

	binary.BigEndian.PutUint16(s.buf[frameBase+savedFPOffset:frameBase+savedFPOffset+2], uint16(s.fp))
	binary.BigEndian.PutUint32(s.buf[frameBase+returnPCOffset:frameBase+returnPCOffset+4], uint32(returnPC))
	s.buf[frameBase+returnVarOffset] = returnVariable
	s.buf[frameBase+numLocalsOffset] = numLocals

	copied := len(args)
	if copied > int(numLocals) {
		copied = int(numLocals)
	}
	localsBase := frameBase + localsBaseOffset
	for i := 0; i < int(numLocals); i++ {
		var v uint16
		if i < copied {
			v = args[i]
		}
		binary.BigEndian.PutUint16(s.buf[localsBase+uint32(i)*2:localsBase+uint32(i)*2+2], v)
	}

	s.fp = frameBase
	s.top = frameBase + frameSize
	return nil
}

// PopFrame restores the previous frame pointer and truncates the eval
// area, returning the popped frame's return PC and return variable so the
// caller can complete the shared return path. Fails with
// zerr.StackUnderflow if the current frame is the root.
func (s *Stack) PopFrame() (zaddr.Offset, uint8, error) {
	if s.isRoot() {
		return 0, 0, zerr.New(zerr.StackUnderflow, "pop beyond root frame")
	}

	returnPC := zaddr.Offset(binary.BigEndian.Uint32(s.buf[s.fp+returnPCOffset : s.fp+returnPCOffset+4]))
	returnVariable := s.buf[s.fp+returnVarOffset]
	savedFP := binary.BigEndian.Uint16(s.buf[s.fp+savedFPOffset : s.fp+savedFPOffset+2])

	s.top = s.fp
	s.fp = uint32(savedFP)

	return returnPC, returnVariable, nil
}

// PushWord pushes a 16-bit value onto the current frame's eval area.
// Fails with zerr.StackOverflow if the stack is full.
func (s *Stack) PushWord(v uint16) error {
	if s.top+2 > CapacityBytes {
		return zerr.New(zerr.StackOverflow, "eval stack full")
	}
	binary.BigEndian.PutUint16(s.buf[s.top:s.top+2], v)
	s.top += 2
	return nil
}

// PopWord pops a 16-bit value from the current frame's eval area. Fails
// with zerr.StackUnderflow if the current frame's eval area is empty.
func (s *Stack) PopWord() (uint16, error) {
	if s.top < s.evalBase()+2 {
		return 0, zerr.New(zerr.StackUnderflow, "eval stack empty")
	}
	s.top -= 2
	return binary.BigEndian.Uint16(s.buf[s.top : s.top+2]), nil
}

// PeekWord returns the top of the current frame's eval area without
// popping it. Used, through zvar's indirect reads, by the indirect-variable
// opcodes implemented here (inc_chk, dec_chk, store, pull), which
// read/write the stack top in place.
func (s *Stack) PeekWord() (uint16, error) {
	if s.top < s.evalBase()+2 {
		return 0, zerr.New(zerr.StackUnderflow, "eval stack empty")
	}
	return binary.BigEndian.Uint16(s.buf[s.top-2 : s.top]), nil
}

// PokeWord overwrites the top of the current frame's eval area in place,
// without changing stack depth. See PeekWord.
func (s *Stack) PokeWord(v uint16) error {
	if s.top < s.evalBase()+2 {
		return zerr.New(zerr.StackUnderflow, "eval stack empty")
	}
	binary.BigEndian.PutUint16(s.buf[s.top-2:s.top], v)
	return nil
}

// ReadLocal reads local slot i (0-indexed) of the current frame. Fails
// with zerr.LocalOutOfRange when i >= numLocals.
func (s *Stack) ReadLocal(i uint8) (uint16, error) {
	if i >= s.numLocals() {
		return 0, zerr.Newf(zerr.LocalOutOfRange, "local %d >= count %d", i, s.numLocals())
	}
	base := s.fp + localsBaseOffset + uint32(i)*2
	return binary.BigEndian.Uint16(s.buf[base : base+2]), nil
}

// WriteLocal writes local slot i of the current frame. Fails with
// zerr.LocalOutOfRange when i >= numLocals.
func (s *Stack) WriteLocal(i uint8, v uint16) error {
	if i >= s.numLocals() {
		return zerr.Newf(zerr.LocalOutOfRange, "local %d >= count %d", i, s.numLocals())
	}
	base := s.fp + localsBaseOffset + uint32(i)*2
	binary.BigEndian.PutUint16(s.buf[base:base+2], v)
	return nil
}

// NumLocals returns the current frame's declared local count.
func (s *Stack) NumLocals() uint8 {
	return s.numLocals()
}

// ReturnPC returns the current frame's saved return PC.
func (s *Stack) ReturnPC() zaddr.Offset {
	return zaddr.Offset(binary.BigEndian.Uint32(s.buf[s.fp+returnPCOffset : s.fp+returnPCOffset+4]))
}

// ReturnVariable returns the current frame's saved return variable.
func (s *Stack) ReturnVariable() uint8 {
	return s.buf[s.fp+returnVarOffset]
}

// IsRoot reports whether the current frame is the synthetic root.
func (s *Stack) IsRoot() bool {
	return s.isRoot()
}

// FramePointer exposes the current frame's base offset, for round-trip
// assertions in tests; it carries no meaning to opcode handlers.
func (s *Stack) FramePointer() uint32 {
	return s.fp
}

// Depth exposes the current top-of-stack pointer, for round-trip
// assertions in tests.
func (s *Stack) Depth() uint32 {
	return s.top
}
