package zmem

import (
	"testing"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
)

func newImage(size int, staticBase, highBase zaddr.Offset) *Image {
	return New(make([]byte, size), staticBase, highBase)
}

func TestReadWriteByteDynamic(t *testing.T) {
	img := newImage(64, 32, 48)
	for o := zaddr.Offset(0); o < 32; o++ {
		if err := img.WriteByte(o, byte(o)); err != nil {
			t.Fatalf("WriteByte(%d): %v", o, err)
		}
		v, err := img.ReadByte(o)
		if err != nil {
			t.Fatalf("ReadByte(%d): %v", o, err)
		}
		if v != byte(o) {
			t.Errorf("ReadByte(%d) = %d, want %d", o, v, o)
		}
	}
}

func TestWriteByteStaticViolation(t *testing.T) {
	img := newImage(64, 32, 48)
	before, _ := img.ReadByte(40)
	err := img.WriteByte(40, 0xFF)
	if zerr.KindOf(err) != zerr.WriteViolation {
		t.Fatalf("WriteByte into static memory: got %v, want WriteViolation", err)
	}
	after, _ := img.ReadByte(40)
	if after != before {
		t.Errorf("failed write mutated memory: before=%d after=%d", before, after)
	}
}

func TestWriteByteHighViolation(t *testing.T) {
	img := newImage(64, 32, 48)
	if err := img.WriteByte(50, 1); zerr.KindOf(err) != zerr.WriteViolation {
		t.Fatalf("WriteByte into high memory: got %v, want WriteViolation", err)
	}
}

func TestReadWriteWordRoundTrip(t *testing.T) {
	img := newImage(64, 32, 48)
	cases := []zaddr.Offset{0, 1, 2, 29}
	for _, o := range cases {
		if err := img.WriteWord(o, 0xBEEF); err != nil {
			t.Fatalf("WriteWord(%d): %v", o, err)
		}
		v, err := img.ReadWord(o)
		if err != nil {
			t.Fatalf("ReadWord(%d): %v", o, err)
		}
		if v != 0xBEEF {
			t.Errorf("ReadWord(%d) = 0x%x, want 0xBEEF", o, v)
		}
	}
}

func TestWriteWordAtomicFailure(t *testing.T) {
	img := newImage(64, 32, 48)
	// offset 31 straddles the static boundary (32): the high byte would
	// land in dynamic memory but the low byte in static memory.
	before, _ := img.ReadWord(30)
	if err := img.WriteWord(31, 0xAAAA); zerr.KindOf(err) != zerr.WriteViolation {
		t.Fatalf("straddling WriteWord: got %v, want WriteViolation", err)
	}
	after, _ := img.ReadWord(30)
	if before != after {
		t.Errorf("failed straddling write mutated memory: before=0x%x after=0x%x", before, after)
	}
}

func TestReadOutOfBounds(t *testing.T) {
	img := newImage(64, 32, 48)
	if _, err := img.ReadByte(64); zerr.KindOf(err) != zerr.BadStoryFile {
		t.Fatalf("ReadByte out of bounds: got %v, want BadStoryFile", err)
	}
}

func TestRegionClassification(t *testing.T) {
	img := newImage(64, 32, 48)
	if !img.InDynamic(0) || img.InDynamic(32) {
		t.Error("InDynamic boundary wrong")
	}
	if !img.InStatic(32) || img.InStatic(48) {
		t.Error("InStatic boundary wrong")
	}
	if !img.InHigh(48) || !img.InHigh(63) {
		t.Error("InHigh boundary wrong")
	}
}
