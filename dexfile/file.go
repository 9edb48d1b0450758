package dexfile

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

const (
	// EndianConstant is the endian_tag of a little-endian file.
	EndianConstant = 0x12345678
	// ReverseEndianConstant is the endian_tag of a byte-swapped file.
	ReverseEndianConstant = 0x78563412
)

// MagicPrefix starts every DEX file; three version digits and a NUL follow.
var MagicPrefix = []byte("dex\n")

// File is the root of a decoded DEX file.
type File struct {
	tree.Node

	Header    *Header
	StringIDs *tree.List[*StringID]
	TypeIDs   *tree.List[*TypeID]
	ProtoIDs  *tree.List[*ProtoID]
	FieldIDs  *tree.List[*FieldID]
	MethodIDs *tree.List[*MethodID]
	ClassDefs *tree.List[*ClassDef]
	MapList   *MapList
}

// New returns an unread DEX root.
func New() *File {
	f := &File{}
	f.SetName("DexFile")
	return f
}

// Parse decodes data as a DEX file. On failure the partially decoded file
// is returned with the error.
func Parse(data []byte) (*File, error) {
	return tree.Parse(New(), data, binary.LittleEndian)
}

func (f *File) ReadContent(r *reader.Reader) (err error) {
	if f.Header, err = tree.Add(f, r, newHeader()); err != nil {
		return err
	}
	h := f.Header

	if f.StringIDs, err = addTable(f, r, "string_ids", h.StringIDsSize, h.StringIDsOff, func() *StringID {
		return &StringID{}
	}); err != nil {
		return err
	}
	if f.TypeIDs, err = addTable(f, r, "type_ids", h.TypeIDsSize, h.TypeIDsOff, func() *TypeID {
		return &TypeID{}
	}); err != nil {
		return err
	}
	if f.ProtoIDs, err = addTable(f, r, "proto_ids", h.ProtoIDsSize, h.ProtoIDsOff, func() *ProtoID {
		return &ProtoID{}
	}); err != nil {
		return err
	}
	if f.FieldIDs, err = addTable(f, r, "field_ids", h.FieldIDsSize, h.FieldIDsOff, func() *FieldID {
		return &FieldID{}
	}); err != nil {
		return err
	}
	if f.MethodIDs, err = addTable(f, r, "method_ids", h.MethodIDsSize, h.MethodIDsOff, func() *MethodID {
		return &MethodID{}
	}); err != nil {
		return err
	}
	if f.ClassDefs, err = addTable(f, r, "class_defs", h.ClassDefsSize, h.ClassDefsOff, func() *ClassDef {
		return &ClassDef{}
	}); err != nil {
		return err
	}

	if h.MapOff.Value != 0 {
		f.MapList, err = tree.AddAt(f, r, h.MapOff.Int(), newMapList())
	}
	return err
}

// addTable reads an id table. A table that starts at the current position
// is read in place; one stored elsewhere is read out of band.
func addTable[T tree.Component](f *File, r *reader.Reader, name string, size, off *tree.UInt, newElem func() T) (*tree.List[T], error) {
	l := tree.NewList(name, size.Int(), newElem)
	if size.Value == 0 || off.Int() == r.Position() {
		return tree.Add(f, r, l)
	}
	return tree.AddAt(f, r, off.Int(), l)
}

// BuildIndex resolves every id table entry to text, in dependency order:
// strings, types, protos, then fields and methods. Entries that cannot be
// resolved keep the error, which surfaces when they are looked up.
func (f *File) BuildIndex() error {
	for _, t := range f.TypeIDs.Items {
		t.Descriptor, t.err = f.String(t.DescriptorIdx.Value)
	}
	for _, p := range f.ProtoIDs.Items {
		p.Descriptor, p.err = f.protoDescriptor(p)
	}
	for _, fd := range f.FieldIDs.Items {
		fd.Text, fd.err = f.memberText(fd.ClassIdx, fd.NameIdx, func() (string, error) {
			return f.Type(fd.TypeIdx.Value)
		})
	}
	for _, m := range f.MethodIDs.Items {
		m.Text, m.err = f.memberText(m.ClassIdx, m.NameIdx, func() (string, error) {
			return f.Proto(m.ProtoIdx.Value)
		})
	}
	return nil
}

func (f *File) protoDescriptor(p *ProtoID) (string, error) {
	ret, err := f.Type(p.ReturnTypeIdx.Value)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	b.WriteByte('(')
	if p.Parameters != nil {
		for _, item := range p.Parameters.Types.Items {
			d, err := f.Type(item.Value)
			if err != nil {
				return "", err
			}
			b.WriteString(d)
		}
	}
	b.WriteByte(')')
	b.WriteString(ret)
	return b.String(), nil
}

func (f *File) memberText(class, name *Ref, typ func() (string, error)) (string, error) {
	owner, err := f.Type(class.Value)
	if err != nil {
		return "", err
	}
	n, err := f.String(name.Value)
	if err != nil {
		return "", err
	}
	t, err := typ()
	if err != nil {
		return "", err
	}
	return JavaName(owner) + "." + n + ":" + t, nil
}

func entry[T tree.Component](l *tree.List[T], t Table, i uint32) (T, error) {
	var zero T
	if l == nil || uint64(i) >= uint64(len(l.Items)) {
		n := 0
		if l != nil {
			n = len(l.Items)
		}
		return zero, errors.BrokenReference(t.String(), int(i), n)
	}
	return l.Items[i], nil
}

// String returns string_ids[i].
func (f *File) String(i uint32) (string, error) {
	s, err := entry(f.StringIDs, Strings, i)
	if err != nil {
		return "", err
	}
	if s.Data == nil {
		return "", errors.InvalidData(errors.PhaseResolve, s.Offset(), fmt.Sprintf("string %d has no data", i))
	}
	return s.Data.Value, nil
}

// Type returns the descriptor of type_ids[i].
func (f *File) Type(i uint32) (string, error) {
	t, err := entry(f.TypeIDs, Types, i)
	if err != nil {
		return "", err
	}
	return t.Descriptor, t.err
}

// Proto returns the method descriptor of proto_ids[i].
func (f *File) Proto(i uint32) (string, error) {
	p, err := entry(f.ProtoIDs, Protos, i)
	if err != nil {
		return "", err
	}
	return p.Descriptor, p.err
}

// Field returns field_ids[i] as Owner.name:descriptor.
func (f *File) Field(i uint32) (string, error) {
	fd, err := entry(f.FieldIDs, Fields, i)
	if err != nil {
		return "", err
	}
	return fd.Text, fd.err
}

// Method returns method_ids[i] as Owner.name:descriptor.
func (f *File) Method(i uint32) (string, error) {
	m, err := entry(f.MethodIDs, Methods, i)
	if err != nil {
		return "", err
	}
	return m.Text, m.err
}

// Lookup returns the display text of entry i of table t. Types are shown
// by their Java names.
func (f *File) Lookup(t Table, i uint32) (string, error) {
	switch t {
	case Strings:
		return f.String(i)
	case Types:
		d, err := f.Type(i)
		return JavaName(d), err
	case Protos:
		return f.Proto(i)
	case Fields:
		return f.Field(i)
	case Methods:
		return f.Method(i)
	}
	return "", errors.InvalidInput(errors.PhaseResolve, "unknown table "+t.String())
}

// Header is the fixed header_item at the start of the file.
type Header struct {
	tree.Node

	Magic         *tree.Raw
	Checksum      *tree.UInt
	Signature     *tree.Raw
	FileSize      *tree.UInt
	HeaderSize    *tree.UInt
	EndianTag     *tree.UInt
	LinkSize      *tree.UInt
	LinkOff       *tree.UInt
	MapOff        *tree.UInt
	StringIDsSize *tree.UInt
	StringIDsOff  *tree.UInt
	TypeIDsSize   *tree.UInt
	TypeIDsOff    *tree.UInt
	ProtoIDsSize  *tree.UInt
	ProtoIDsOff   *tree.UInt
	FieldIDsSize  *tree.UInt
	FieldIDsOff   *tree.UInt
	MethodIDsSize *tree.UInt
	MethodIDsOff  *tree.UInt
	ClassDefsSize *tree.UInt
	ClassDefsOff  *tree.UInt
	DataSize      *tree.UInt
	DataOff       *tree.UInt
}

func newHeader() *Header {
	h := &Header{}
	h.SetName("header")
	return h
}

func (h *Header) ReadContent(r *reader.Reader) (err error) {
	if h.Magic, err = tree.Add(h, r, tree.Bytes("magic", 8)); err != nil {
		return err
	}
	m := h.Magic.Data
	if !bytes.HasPrefix(m, MagicPrefix) || m[7] != 0 {
		return errors.InvalidData(errors.PhaseRead, h.Magic.Offset(), fmt.Sprintf("magic %q is not a dex file", m))
	}
	h.Magic.Describe("dex %s", m[4:7])

	if h.Checksum, err = tree.Add(h, r, tree.U4("checksum").Hex()); err != nil {
		return err
	}
	if h.Signature, err = tree.Add(h, r, tree.Bytes("signature", 20)); err != nil {
		return err
	}

	fields := []struct {
		dst  **tree.UInt
		leaf *tree.UInt
	}{
		{&h.FileSize, tree.U4("file_size")},
		{&h.HeaderSize, tree.U4("header_size")},
		{&h.EndianTag, tree.U4("endian_tag").Hex()},
		{&h.LinkSize, tree.U4("link_size")},
		{&h.LinkOff, offset("link_off")},
		{&h.MapOff, offset("map_off")},
		{&h.StringIDsSize, tree.U4("string_ids_size")},
		{&h.StringIDsOff, offset("string_ids_off")},
		{&h.TypeIDsSize, tree.U4("type_ids_size")},
		{&h.TypeIDsOff, offset("type_ids_off")},
		{&h.ProtoIDsSize, tree.U4("proto_ids_size")},
		{&h.ProtoIDsOff, offset("proto_ids_off")},
		{&h.FieldIDsSize, tree.U4("field_ids_size")},
		{&h.FieldIDsOff, offset("field_ids_off")},
		{&h.MethodIDsSize, tree.U4("method_ids_size")},
		{&h.MethodIDsOff, offset("method_ids_off")},
		{&h.ClassDefsSize, tree.U4("class_defs_size")},
		{&h.ClassDefsOff, offset("class_defs_off")},
		{&h.DataSize, tree.U4("data_size")},
		{&h.DataOff, offset("data_off")},
	}
	for _, fd := range fields {
		if *fd.dst, err = tree.Add(h, r, fd.leaf); err != nil {
			return err
		}
		if fd.dst == &h.EndianTag && h.EndianTag.Value != EndianConstant {
			return errors.Unsupported(errors.PhaseRead, h.EndianTag.Offset(),
				fmt.Sprintf("endian_tag %#x", h.EndianTag.Value))
		}
	}
	return nil
}
