package zpc

import (
	"testing"

	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zmem"
)

func TestNextByteAdvances(t *testing.T) {
	mem := zmem.New([]byte{0x10, 0x20, 0x30}, 3, 3)
	pc := New(mem, 0)
	b, err := pc.NextByte()
	if err != nil || b != 0x10 {
		t.Fatalf("NextByte = (%d, %v), want (0x10, nil)", b, err)
	}
	if pc.Current() != 1 {
		t.Errorf("Current() = %d, want 1", pc.Current())
	}
}

func TestNextWordBigEndian(t *testing.T) {
	mem := zmem.New([]byte{0x12, 0x34}, 2, 2)
	pc := New(mem, 0)
	w, err := pc.NextWord()
	if err != nil {
		t.Fatal(err)
	}
	if w != 0x1234 {
		t.Errorf("NextWord = 0x%x, want 0x1234", w)
	}
	if pc.Current() != 2 {
		t.Errorf("Current() = %d, want 2", pc.Current())
	}
}

func TestOffsetOutOfBounds(t *testing.T) {
	mem := zmem.New(make([]byte, 4), 4, 4)
	pc := New(mem, 2)
	if err := pc.Offset(10); zerr.KindOf(err) != zerr.PCOutOfBounds {
		t.Fatalf("Offset past end: got %v, want PCOutOfBounds", err)
	}
	if err := pc.Offset(-10); zerr.KindOf(err) != zerr.PCOutOfBounds {
		t.Fatalf("Offset before start: got %v, want PCOutOfBounds", err)
	}
}

func TestSetUnchecked(t *testing.T) {
	mem := zmem.New(make([]byte, 4), 4, 4)
	pc := New(mem, 0)
	pc.Set(zaddr.Offset(999))
	if pc.Current() != 999 {
		t.Errorf("Current() after Set = %d, want 999", pc.Current())
	}
}
