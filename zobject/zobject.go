// Package zobject is the object table: parent/sibling/child links,
// 32-or-48-bit attribute flags, and the property list each object's
// property-table pointer leads to. The distilled spec treats the object
// table as "specified only by the opcodes that touch it" (test_attr,
// put_prop, and the object-traversal opcodes SPEC_FULL adds); this
// package implements exactly that surface, grounded on the teacher's
// zobject/object.go and zobject/property.go.
package zobject

import (
	"github.com/mvisser/zgrue/zaddr"
	"github.com/mvisser/zgrue/zerr"
	"github.com/mvisser/zgrue/zheader"
	"github.com/mvisser/zgrue/zmem"
)

// layout is the per-version table of object-record geometry, kept in one
// place per spec.md §9's guidance on per-version constants.
type layout struct {
	recordSize    zaddr.Offset
	defaultsWords zaddr.Offset
	attrBytes     zaddr.Offset
}

var layouts = map[zaddr.Version]layout{
	zaddr.V3: {recordSize: 9, defaultsWords: 31, attrBytes: 4},
	zaddr.V5: {recordSize: 14, defaultsWords: 63, attrBytes: 6},
}

func layoutFor(v zaddr.Version) (layout, error) {
	l, ok := layouts[v]
	if !ok {
		return layout{}, zerr.Newf(zerr.BadStoryFile, "no object layout for version %d", v)
	}
	return l, nil
}

// Table borrows memory and the header to resolve object records. Object 0
// denotes "null" and is never addressable through Get.
type Table struct {
	mem    *zmem.Image
	header *zheader.Header
	base   zaddr.Offset // first object record, after the property-defaults array
}

// New constructs an object-table view rooted at the header's declared
// object-table base.
func New(mem *zmem.Image, header *zheader.Header) (*Table, error) {
	l, err := layoutFor(header.Version)
	if err != nil {
		return nil, err
	}
	return &Table{
		mem:    mem,
		header: header,
		base:   header.ObjectTableBase + l.defaultsWords*2,
	}, nil
}

// Object is a resolved object record: a base address plus the fields
// directly decoded from it. Re-resolve (via Table.Get) after any mutation
// made through a different Object handle to the same id.
type Object struct {
	ID      uint16
	Base    zaddr.Offset
	Parent  uint16
	Sibling uint16
	Child   uint16
	PropTbl zaddr.Offset
}

func (t *Table) recordBase(id uint16) (zaddr.Offset, layout, error) {
	if id == 0 {
		return 0, layout{}, zerr.New(zerr.BadStoryFile, "object 0 is not addressable")
	}
	l, err := layoutFor(t.header.Version)
	if err != nil {
		return 0, layout{}, err
	}
	return t.base + zaddr.Offset(id-1)*l.recordSize, l, nil
}

// Get resolves object id's parent/sibling/child/property-pointer fields.
func (t *Table) Get(id uint16) (*Object, error) {
	base, l, err := t.recordBase(id)
	if err != nil {
		return nil, err
	}

	obj := &Object{ID: id, Base: base}

	if l.attrBytes == 4 { // V3: 1-byte parent/sibling/child
		p, err := t.mem.ReadByte(base + 4)
		if err != nil {
			return nil, err
		}
		s, err := t.mem.ReadByte(base + 5)
		if err != nil {
			return nil, err
		}
		c, err := t.mem.ReadByte(base + 6)
		if err != nil {
			return nil, err
		}
		pt, err := t.mem.ReadWord(base + 7)
		if err != nil {
			return nil, err
		}
		obj.Parent, obj.Sibling, obj.Child, obj.PropTbl = uint16(p), uint16(s), uint16(c), zaddr.Offset(pt)
		return obj, nil
	}

	// V5: 2-byte parent/sibling/child.
	p, err := t.mem.ReadWord(base + 6)
	if err != nil {
		return nil, err
	}
	s, err := t.mem.ReadWord(base + 8)
	if err != nil {
		return nil, err
	}
	c, err := t.mem.ReadWord(base + 10)
	if err != nil {
		return nil, err
	}
	pt, err := t.mem.ReadWord(base + 12)
	if err != nil {
		return nil, err
	}
	obj.Parent, obj.Sibling, obj.Child, obj.PropTbl = p, s, c, zaddr.Offset(pt)
	return obj, nil
}

func (t *Table) setLink(id uint16, fieldByteOffsetV3, fieldWordOffsetV5 zaddr.Offset, value uint16) error {
	base, l, err := t.recordBase(id)
	if err != nil {
		return err
	}
	if l.attrBytes == 4 {
		return t.mem.WriteByte(base+fieldByteOffsetV3, uint8(value))
	}
	return t.mem.WriteWord(base+fieldWordOffsetV5, value)
}

// SetParent, SetSibling, SetChild write the corresponding link field.
func (t *Table) SetParent(id uint16, parent uint16) error  { return t.setLink(id, 4, 6, parent) }
func (t *Table) SetSibling(id uint16, sibling uint16) error { return t.setLink(id, 5, 8, sibling) }
func (t *Table) SetChild(id uint16, child uint16) error     { return t.setLink(id, 6, 10, child) }

// TestAttribute reports whether attribute bit n is set on object id.
// Attribute numbering is big-endian from the first attribute byte: the
// most significant bit (0x80) of attribute byte 0 is attribute 0.
func (t *Table) TestAttribute(id uint16, n uint8) (bool, error) {
	byteOff, mask, base, err := t.attrBitLocation(id, n)
	if err != nil {
		return false, err
	}
	b, err := t.mem.ReadByte(base + byteOff)
	if err != nil {
		return false, err
	}
	return b&mask != 0, nil
}

func (t *Table) setAttribute(id uint16, n uint8, on bool) error {
	byteOff, mask, base, err := t.attrBitLocation(id, n)
	if err != nil {
		return err
	}
	b, err := t.mem.ReadByte(base + byteOff)
	if err != nil {
		return err
	}
	if on {
		b |= mask
	} else {
		b &^= mask
	}
	return t.mem.WriteByte(base+byteOff, b)
}

// SetAttribute sets attribute bit n on object id.
func (t *Table) SetAttribute(id uint16, n uint8) error { return t.setAttribute(id, n, true) }

// ClearAttribute clears attribute bit n on object id.
func (t *Table) ClearAttribute(id uint16, n uint8) error { return t.setAttribute(id, n, false) }

func (t *Table) attrBitLocation(id uint16, n uint8) (byteOff zaddr.Offset, mask uint8, base zaddr.Offset, err error) {
	base, l, err := t.recordBase(id)
	if err != nil {
		return 0, 0, 0, err
	}
	if zaddr.Offset(n) >= l.attrBytes*8 {
		return 0, 0, 0, zerr.Newf(zerr.BadStoryFile, "attribute %d out of range for version", n)
	}
	byteOff = zaddr.Offset(n / 8)
	mask = 0x80 >> (n % 8)
	return byteOff, mask, base, nil
}

// Unlink detaches id from its parent's child/sibling chain without
// changing id's own parent field, mirroring the first half of the
// teacher's RemoveObject. Used by InsertObject to relocate an object that
// already has a parent.
func (t *Table) Unlink(id uint16) error {
	obj, err := t.Get(id)
	if err != nil {
		return err
	}
	if obj.Parent == 0 {
		return nil
	}
	parent, err := t.Get(obj.Parent)
	if err != nil {
		return err
	}
	if parent.Child == id {
		return t.SetChild(obj.Parent, obj.Sibling)
	}
	cur := parent.Child
	for cur != 0 {
		curObj, err := t.Get(cur)
		if err != nil {
			return err
		}
		if curObj.Sibling == id {
			return t.SetSibling(cur, obj.Sibling)
		}
		cur = curObj.Sibling
	}
	return nil
}

// InsertObject detaches id from wherever it currently sits in the tree and
// attaches it as the first child of newParent, implementing the 2OP
// insert_obj opcode.
func (t *Table) InsertObject(id uint16, newParent uint16) error {
	if err := t.Unlink(id); err != nil {
		return err
	}
	parent, err := t.Get(newParent)
	if err != nil {
		return err
	}
	if err := t.SetSibling(id, parent.Child); err != nil {
		return err
	}
	if err := t.SetParent(id, newParent); err != nil {
		return err
	}
	return t.SetChild(newParent, id)
}

// propertyHeader decodes a property-list entry's size byte(s) at addr,
// returning the property id, the data length, and the offset of the data
// relative to addr.
func (t *Table) propertyHeader(addr zaddr.Offset) (id uint8, length zaddr.Offset, dataOff zaddr.Offset, err error) {
	sizeByte, err := t.mem.ReadByte(addr)
	if err != nil {
		return 0, 0, 0, err
	}

	if t.header.Version <= zaddr.V3 {
		return sizeByte & 0b1_1111, zaddr.Offset(sizeByte>>5) + 1, 1, nil
	}

	if sizeByte&0x80 != 0 {
		second, err := t.mem.ReadByte(addr + 1)
		if err != nil {
			return 0, 0, 0, err
		}
		length = zaddr.Offset(second & 0b11_1111)
		if length == 0 {
			length = 64
		}
		return sizeByte & 0b11_1111, length, 2, nil
	}
	length = zaddr.Offset((sizeByte>>6)&1) + 1
	return sizeByte & 0b11_1111, length, 1, nil
}

// findProperty walks object id's property list looking for propID,
// returning the data address and length. err is BadStoryFile if the
// property is absent (put_prop requires the property to already exist on
// the object — there is no mechanism to add one).
func (t *Table) findProperty(id uint16, propID uint8) (dataAddr zaddr.Offset, length zaddr.Offset, err error) {
	obj, err := t.Get(id)
	if err != nil {
		return 0, 0, err
	}

	nameLenWords, err := t.mem.ReadByte(obj.PropTbl)
	if err != nil {
		return 0, 0, err
	}
	ptr := obj.PropTbl + 1 + zaddr.Offset(nameLenWords)*2

	for {
		sizeByte, err := t.mem.ReadByte(ptr)
		if err != nil {
			return 0, 0, err
		}
		if sizeByte == 0 {
			return 0, 0, zerr.Newf(zerr.BadStoryFile, "object %d has no property %d", id, propID)
		}

		pid, plen, dataOff, err := t.propertyHeader(ptr)
		if err != nil {
			return 0, 0, err
		}
		if pid == propID {
			return ptr + dataOff, plen, nil
		}
		ptr += dataOff + plen
	}
}

// PutProperty overwrites an existing 1- or 2-byte property's value,
// implementing the VAR put_prop opcode. Per the Z-Machine standard, only
// 1- and 2-byte properties may be set this way.
func (t *Table) PutProperty(id uint16, propID uint8, value uint16) error {
	addr, length, err := t.findProperty(id, propID)
	if err != nil {
		return err
	}
	switch length {
	case 1:
		return t.mem.WriteByte(addr, uint8(value))
	case 2:
		return t.mem.WriteWord(addr, value)
	default:
		return zerr.Newf(zerr.BadStoryFile, "put_prop on property of length %d", length)
	}
}
