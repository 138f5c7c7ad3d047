// Package zmem is the byte-addressable story-file image: a fixed-length
// buffer split into dynamic, static, and high regions by the header's
// declared boundaries, with write protection enforced on the latter two.
package zmem

import (
	"encoding/binary"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
)

// Image is the loaded story file. Reads never alter state; writes never
// touch static or high memory (writeViolation instead).
type Image struct {
	bytes      []byte
	staticBase zaddr.Offset
	highBase   zaddr.Offset
}

// New wraps a raw story-file byte slice as a memory image. staticBase and
// highBase come from the header (words at 0x0E and 0x04 respectively) and
// must satisfy staticBase <= highBase <= len(bytes); callers validate the
// header before calling this (zmachine.Load does so).
func New(bytes []byte, staticBase, highBase zaddr.Offset) *Image {
	return &Image{bytes: bytes, staticBase: staticBase, highBase: highBase}
}

// Size returns the total length of the memory image in bytes.
func (m *Image) Size() zaddr.Offset {
	return zaddr.Offset(len(m.bytes))
}

func (m *Image) inBounds(o zaddr.Offset) bool {
	return o < zaddr.Offset(len(m.bytes))
}

// ReadByte reads a single byte. Fails with zerr.PCOutOfBounds... no —
// out-of-range memory reads are a distinct failure from PC movement, but
// the spec names no separate "out of bounds" read kind beyond the ones it
// lists; an out-of-range memory access here is treated as BadStoryFile
// since it only happens when a story's own pointers are corrupt or when
// the file was truncated relative to its header.
func (m *Image) ReadByte(o zaddr.Offset) (uint8, error) {
	if !m.inBounds(o) {
		return 0, zerr.WithOffset(zerr.BadStoryFile, o, "read out of bounds")
	}
	return m.bytes[o], nil
}

// ReadWord reads a big-endian 16-bit word. Unaligned offsets are permitted.
func (m *Image) ReadWord(o zaddr.Offset) (uint16, error) {
	if !m.inBounds(o) || !m.inBounds(o+1) {
		return 0, zerr.WithOffset(zerr.BadStoryFile, o, "word read out of bounds")
	}
	return binary.BigEndian.Uint16(m.bytes[o : o+2]), nil
}

// WriteByte writes a single byte. Fails with zerr.WriteViolation when
// offset is at or beyond the static-memory base.
func (m *Image) WriteByte(o zaddr.Offset, v uint8) error {
	if !m.inBounds(o) {
		return zerr.WithOffset(zerr.BadStoryFile, o, "write out of bounds")
	}
	if o >= m.staticBase {
		return zerr.WithOffset(zerr.WriteViolation, o, "write to static or high memory")
	}
	m.bytes[o] = v
	return nil
}

// WriteWord writes a big-endian 16-bit word. Both bytes must lie in
// dynamic memory; on failure neither byte is written (atomic from the
// caller's perspective).
func (m *Image) WriteWord(o zaddr.Offset, v uint16) error {
	if !m.inBounds(o) || !m.inBounds(o+1) {
		return zerr.WithOffset(zerr.BadStoryFile, o, "word write out of bounds")
	}
	if o >= m.staticBase || o+1 >= m.staticBase {
		return zerr.WithOffset(zerr.WriteViolation, o, "write to static or high memory")
	}
	binary.BigEndian.PutUint16(m.bytes[o:o+2], v)
	return nil
}

// Slice returns a read-only view of [start, end). Callers must not retain
// it past the current instruction (per the single-owner resource model).
func (m *Image) Slice(start, end zaddr.Offset) ([]byte, error) {
	if end < start || !m.inBounds(start) || end > zaddr.Offset(len(m.bytes)) {
		return nil, zerr.WithOffset(zerr.BadStoryFile, start, "slice out of bounds")
	}
	return m.bytes[start:end], nil
}

// StaticBase returns the first offset of static memory.
func (m *Image) StaticBase() zaddr.Offset { return m.staticBase }

// HighBase returns the first offset of high memory.
func (m *Image) HighBase() zaddr.Offset { return m.highBase }

// InDynamic reports whether o lies in [0, staticBase).
func (m *Image) InDynamic(o zaddr.Offset) bool { return o < m.staticBase }

// InStatic reports whether o lies in [staticBase, highBase).
func (m *Image) InStatic(o zaddr.Offset) bool { return o >= m.staticBase && o < m.highBase }

// InHigh reports whether o lies in [highBase, size).
func (m *Image) InHigh(o zaddr.Offset) bool { return o >= m.highBase }
