// Package zpc is the program counter: a plain Offset plus a borrowed
// handle to memory, advanced by sequential byte/word reads and by signed
// branch offsetting.
package zpc

import (
	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zmem"
)

// PC is the interpreter's program counter. Its lifecycle coincides with
// the interpreter; only the execution loop and opcode handlers mutate it.
type PC struct {
	offset zaddr.Offset
	mem    *zmem.Image
}

// New constructs a PC positioned at offset, borrowing mem for reads.
func New(mem *zmem.Image, offset zaddr.Offset) *PC {
	return &PC{offset: offset, mem: mem}
}

// Current returns the current offset.
func (p *PC) Current() zaddr.Offset {
	return p.offset
}

// Set unconditionally reassigns the PC. The loop trusts decoded
// branch/call targets, so this performs no bounds check itself; the next
// read through it will fail if the target was bad.
func (p *PC) Set(o zaddr.Offset) {
	p.offset = o
}

// NextByte fetches the byte at the current offset and advances by 1.
func (p *PC) NextByte() (uint8, error) {
	v, err := p.mem.ReadByte(p.offset)
	if err != nil {
		return 0, err
	}
	p.offset++
	return v, nil
}

// NextWord fetches a big-endian word via two NextByte calls.
func (p *PC) NextWord() (uint16, error) {
	hi, err := p.NextByte()
	if err != nil {
		return 0, err
	}
	lo, err := p.NextByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// Offset adds a signed delta to the current PC, failing with
// zerr.PCOutOfBounds if the result would move outside the memory image.
func (p *PC) Offset(delta int32) error {
	next := int64(p.offset) + int64(delta)
	if next < 0 || next >= int64(p.mem.Size()) {
		return zerr.WithOffset(zerr.PCOutOfBounds, p.offset, "branch target outside memory image")
	}
	p.offset = zaddr.Offset(next)
	return nil
}
