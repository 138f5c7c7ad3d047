// Package zheader provides typed accessors for the 64-byte Z-Machine story
// file header, grounded on the teacher's zcore.LoadCore field extraction
// but narrowed to the fields this interpreter's scope (versions 3 and 5)
// actually consumes.
package zheader

import (
	"encoding/binary"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
)

// Header is a lightweight wrapper around the fixed-offset fields of a
// story file's 64-byte header.
type Header struct {
	Version               zaddr.Version
	HighMemoryBase        zaddr.Offset
	StartPC               zaddr.Offset
	DictionaryBase        zaddr.Offset
	ObjectTableBase       zaddr.Offset
	GlobalsBase           zaddr.Offset
	StaticMemoryBase      zaddr.Offset
	AbbreviationTableBase zaddr.Offset
	fileLengthRaw         uint16
}

const headerSize = 0x40

// Parse reads the header fields out of a raw story-file byte slice. It
// does not validate file length or memory-region ordering; callers run
// Validate separately against the full file so the two failure modes
// (malformed header vs. truncated file) stay distinguishable.
func Parse(bytes []byte) (*Header, error) {
	if len(bytes) < headerSize {
		return nil, zerr.New(zerr.BadStoryFile, "file shorter than header")
	}

	version := zaddr.Version(bytes[0x00])
	if version != zaddr.V3 && version != zaddr.V5 {
		return nil, zerr.Newf(zerr.BadStoryFile, "unsupported version %d", version)
	}

	return &Header{
		Version:               version,
		HighMemoryBase:        zaddr.Offset(binary.BigEndian.Uint16(bytes[0x04:0x06])),
		StartPC:               zaddr.Offset(binary.BigEndian.Uint16(bytes[0x06:0x08])),
		DictionaryBase:        zaddr.Offset(binary.BigEndian.Uint16(bytes[0x08:0x0a])),
		ObjectTableBase:       zaddr.Offset(binary.BigEndian.Uint16(bytes[0x0a:0x0c])),
		GlobalsBase:           zaddr.Offset(binary.BigEndian.Uint16(bytes[0x0c:0x0e])),
		StaticMemoryBase:      zaddr.Offset(binary.BigEndian.Uint16(bytes[0x0e:0x10])),
		AbbreviationTableBase: zaddr.Offset(binary.BigEndian.Uint16(bytes[0x18:0x1a])),
		fileLengthRaw:         binary.BigEndian.Uint16(bytes[0x1a:0x1c]),
	}, nil
}

// FileLength returns the declared file length in bytes: the raw header
// field multiplied by the version's file-length multiplier.
func (h *Header) FileLength() uint32 {
	return uint32(h.fileLengthRaw) * zaddr.FileLengthMultiplier(h.Version)
}

// Validate checks the header against the actual loaded file length and the
// memory-region invariant static_base <= high_base <= memory_size.
func (h *Header) Validate(actualLength uint32) error {
	if h.FileLength() != actualLength {
		return zerr.Newf(zerr.BadStoryFile, "declared length %d does not match file length %d", h.FileLength(), actualLength)
	}
	if !(h.StaticMemoryBase <= h.HighMemoryBase && h.HighMemoryBase <= zaddr.Offset(actualLength)) {
		return zerr.New(zerr.BadStoryFile, "static_base <= high_base <= memory_size violated")
	}
	return nil
}

// PackedAddress converts a packed routine/string address to an Offset
// using this header's version.
func (h *Header) PackedAddress(pa zaddr.PackedAddress) zaddr.Offset {
	return pa.Offset(h.Version)
}

// GlobalOffset returns the Offset of global variable index i (0..=239).
func (h *Header) GlobalOffset(i uint8) zaddr.Offset {
	return h.GlobalsBase + zaddr.Offset(i)*2
}
