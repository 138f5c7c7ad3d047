// Package zstring decodes the Z-Machine's packed 5-bit-triplet string
// format, including abbreviation expansion, grounded on the teacher's
// zstring package (zstring/zstring.go, zstring/abbreviations.go) but
// rewritten to read through zmem/zheader instead of a raw byte slice and
// to return errors instead of panicking on the cases the teacher marks
// "TODO - not handled".
package zstring

import (
	"strings"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zheader"
	"github.com/mvisser/zgrue/zmem"
)

var a0 = [26]byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z'}
var a1 = [26]byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z'}

// a2 is the default punctuation alphabet used from V2 on. Index 0 (code 6)
// is the literal-ZSCII escape sentinel and is handled specially, never
// looked up directly in this table.
var a2 = [26]byte{0 /* escape */, '\n', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '.', ',', '!', '?', '_', '#', '\'', '"', '/', '\\', '-', ':', '(', ')'}

// maxAbbreviationDepth bounds abbreviation expansion: a well-formed story
// never nests abbreviations, but a malformed one must not be able to loop
// the decoder. Depth 0 is top-level text; an abbreviation reference found
// while already expanding one (depth >= maxAbbreviationDepth) is dropped
// rather than expanded again.
const maxAbbreviationDepth = 1

// Decode reads a Z-string starting at start and returns the decoded text
// along with the number of bytes consumed (always a multiple of 2; the
// caller advances its own cursor by this amount — Decode never mutates a
// program counter itself, so reading from an arbitrary offset does not
// advance anything).
func Decode(mem *zmem.Image, header *zheader.Header, start zaddr.Offset) (string, zaddr.Offset, error) {
	return decodeAt(mem, header, start, 0)
}

func decodeAt(mem *zmem.Image, header *zheader.Header, start zaddr.Offset, depth int) (string, zaddr.Offset, error) {
	var zchars []uint8
	ptr := start

	for {
		word, err := mem.ReadWord(ptr)
		if err != nil {
			return "", 0, err
		}
		ptr += 2

		zchars = append(zchars, uint8((word>>10)&0x1f), uint8((word>>5)&0x1f), uint8(word&0x1f))

		if word&0x8000 != 0 {
			break
		}
	}

	var out strings.Builder
	alphabet := 0 // 0, 1, or 2

	for i := 0; i < len(zchars); i++ {
		zc := zchars[i]

		switch {
		case zc == 0:
			out.WriteByte(' ')
			alphabet = 0

		case zc >= 1 && zc <= 3:
			if i+1 >= len(zchars) {
				return "", 0, zerr.New(zerr.BadStoryFile, "abbreviation escape truncated")
			}
			x := zchars[i+1]
			i++
			if depth < maxAbbreviationDepth {
				expansion, err := expandAbbreviation(mem, header, zc, x, depth)
				if err != nil {
					return "", 0, err
				}
				out.WriteString(expansion)
			}
			alphabet = 0

		case zc == 4:
			alphabet = 1

		case zc == 5:
			alphabet = 2

		default: // 6..=31, index into the current alphabet
			if alphabet == 2 && zc == 6 {
				if i+2 >= len(zchars) {
					return "", 0, zerr.New(zerr.BadStoryFile, "zscii escape truncated")
				}
				hi, lo := zchars[i+1], zchars[i+2]
				i += 2
				out.WriteByte(byte(hi<<5 | lo))
			} else {
				ch, err := lookupAlphabet(alphabet, zc)
				if err != nil {
					return "", 0, err
				}
				out.WriteByte(ch)
			}
			alphabet = 0
		}
	}

	return out.String(), ptr - start, nil
}

func lookupAlphabet(alphabet int, zc uint8) (byte, error) {
	switch alphabet {
	case 0:
		if zc < 6 || int(zc-6) >= len(a0) {
			return 0, zerr.Newf(zerr.BadStoryFile, "z-char %d out of range for A0", zc)
		}
		return a0[zc-6], nil
	case 1:
		if zc < 6 || int(zc-6) >= len(a1) {
			return 0, zerr.Newf(zerr.BadStoryFile, "z-char %d out of range for A1", zc)
		}
		return a1[zc-6], nil
	default:
		if zc < 6 || int(zc-6) >= len(a2) {
			return 0, zerr.Newf(zerr.BadStoryFile, "z-char %d out of range for A2", zc)
		}
		return a2[zc-6], nil
	}
}

// expandAbbreviation resolves abbreviation table z (1, 2, or 3) index x,
// per spec.md §4.7: word-address(abbrev_table_base + 2*(32*(table-1)+index)).
func expandAbbreviation(mem *zmem.Image, header *zheader.Header, z uint8, x uint8, depth int) (string, error) {
	entryIx := zaddr.Offset(32*(int(z)-1) + int(x))
	entryAddr := header.AbbreviationTableBase + 2*entryIx

	wordAddr, err := mem.ReadWord(entryAddr)
	if err != nil {
		return "", err
	}
	strAddr := zaddr.WordAddress(wordAddr).Offset()

	text, _, err := decodeAt(mem, header, strAddr, depth+1)
	if err != nil {
		return "", err
	}
	return text, nil
}
