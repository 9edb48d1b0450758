package dexfile

import (
	"strconv"

	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// StringID is a string_id_item. Its string data lives in the data section.
type StringID struct {
	tree.Node
	StringDataOff *tree.UInt
	Data          *StringData
}

func (s *StringID) ReadContent(r *reader.Reader) (err error) {
	if s.StringDataOff, err = tree.Add(s, r, offset("string_data_off")); err != nil {
		return err
	}
	if s.StringDataOff.Value == 0 {
		return nil
	}
	if s.Data, err = tree.AddAt(s, r, s.StringDataOff.Int(), newStringData()); err != nil {
		return err
	}
	s.SetDesc(s.Data.Desc())
	return nil
}

// TypeID is a type_id_item.
type TypeID struct {
	tree.Node
	DescriptorIdx *Ref

	// Descriptor is filled in by BuildIndex.
	Descriptor string
	err        error
}

func (t *TypeID) ReadContent(r *reader.Reader) (err error) {
	t.DescriptorIdx, err = tree.Add(t, r, newRef("descriptor_idx", Strings, readU4))
	return err
}

func (t *TypeID) PostRead(*File) error {
	if t.err != nil {
		return t.err
	}
	t.SetDesc(JavaName(t.Descriptor))
	return nil
}

// ProtoID is a proto_id_item.
type ProtoID struct {
	tree.Node
	ShortyIdx     *Ref
	ReturnTypeIdx *Ref
	ParametersOff *tree.UInt
	Parameters    *TypeList

	// Descriptor is filled in by BuildIndex.
	Descriptor string
	err        error
}

func (p *ProtoID) ReadContent(r *reader.Reader) (err error) {
	if p.ShortyIdx, err = tree.Add(p, r, newRef("shorty_idx", Strings, readU4)); err != nil {
		return err
	}
	if p.ReturnTypeIdx, err = tree.Add(p, r, newRef("return_type_idx", Types, readU4)); err != nil {
		return err
	}
	if p.ParametersOff, err = tree.Add(p, r, offset("parameters_off")); err != nil {
		return err
	}
	if p.ParametersOff.Value != 0 {
		p.Parameters, err = tree.AddAt(p, r, p.ParametersOff.Int(), newTypeList("parameters"))
	}
	return err
}

func (p *ProtoID) PostRead(*File) error {
	if p.err != nil {
		return p.err
	}
	p.SetDesc(p.Descriptor)
	return nil
}

// FieldID is a field_id_item.
type FieldID struct {
	tree.Node
	ClassIdx *Ref
	TypeIdx  *Ref
	NameIdx  *Ref

	// Text is Owner.name:descriptor, filled in by BuildIndex.
	Text string
	err  error
}

func (fd *FieldID) ReadContent(r *reader.Reader) (err error) {
	if fd.ClassIdx, err = tree.Add(fd, r, newRef("class_idx", Types, readU2)); err != nil {
		return err
	}
	if fd.TypeIdx, err = tree.Add(fd, r, newRef("type_idx", Types, readU2)); err != nil {
		return err
	}
	fd.NameIdx, err = tree.Add(fd, r, newRef("name_idx", Strings, readU4))
	return err
}

func (fd *FieldID) PostRead(*File) error {
	if fd.err != nil {
		return fd.err
	}
	fd.SetDesc(fd.Text)
	return nil
}

// MethodID is a method_id_item.
type MethodID struct {
	tree.Node
	ClassIdx *Ref
	ProtoIdx *Ref
	NameIdx  *Ref

	// Text is Owner.name:descriptor, filled in by BuildIndex.
	Text string
	err  error
}

func (m *MethodID) ReadContent(r *reader.Reader) (err error) {
	if m.ClassIdx, err = tree.Add(m, r, newRef("class_idx", Types, readU2)); err != nil {
		return err
	}
	if m.ProtoIdx, err = tree.Add(m, r, newRef("proto_idx", Protos, readU2)); err != nil {
		return err
	}
	m.NameIdx, err = tree.Add(m, r, newRef("name_idx", Strings, readU4))
	return err
}

func (m *MethodID) PostRead(*File) error {
	if m.err != nil {
		return m.err
	}
	m.SetDesc(m.Text)
	return nil
}

// ClassDef is a class_def_item. Interfaces, class data and static values are
// read out of band from their offsets when present.
type ClassDef struct {
	tree.Node
	ClassIdx        *Ref
	AccessFlags     *Flags
	SuperclassIdx   *Ref
	InterfacesOff   *tree.UInt
	Interfaces      *TypeList
	SourceFileIdx   *Ref
	AnnotationsOff  *tree.UInt
	ClassDataOff    *tree.UInt
	ClassData       *ClassData
	StaticValuesOff *tree.UInt
	StaticValues    *EncodedArray
}

func (c *ClassDef) ReadContent(r *reader.Reader) (err error) {
	if c.ClassIdx, err = tree.Add(c, r, newRef("class_idx", Types, readU4)); err != nil {
		return err
	}
	if c.AccessFlags, err = tree.Add(c, r, newFlags("access_flags", ClassFlags, readU4)); err != nil {
		return err
	}
	if c.SuperclassIdx, err = tree.Add(c, r, newRef("superclass_idx", Types, readU4).Optional()); err != nil {
		return err
	}

	if c.InterfacesOff, err = tree.Add(c, r, offset("interfaces_off")); err != nil {
		return err
	}
	if c.InterfacesOff.Value != 0 {
		if c.Interfaces, err = tree.AddAt(c, r, c.InterfacesOff.Int(), newTypeList("interfaces")); err != nil {
			return err
		}
	}

	if c.SourceFileIdx, err = tree.Add(c, r, newRef("source_file_idx", Strings, readU4).Optional()); err != nil {
		return err
	}
	if c.AnnotationsOff, err = tree.Add(c, r, offset("annotations_off")); err != nil {
		return err
	}

	if c.ClassDataOff, err = tree.Add(c, r, offset("class_data_off")); err != nil {
		return err
	}
	if c.ClassDataOff.Value != 0 {
		if c.ClassData, err = tree.AddAt(c, r, c.ClassDataOff.Int(), newClassData()); err != nil {
			return err
		}
	}

	if c.StaticValuesOff, err = tree.Add(c, r, offset("static_values_off")); err != nil {
		return err
	}
	if c.StaticValuesOff.Value != 0 {
		c.StaticValues, err = tree.AddAt(c, r, c.StaticValuesOff.Int(), newEncodedArray("static_values"))
	}
	return err
}

func (c *ClassDef) PostRead(f *File) error {
	name, err := f.Lookup(Types, c.ClassIdx.Value)
	if err != nil {
		return err
	}
	c.SetDesc(name)
	return nil
}

// MapList is the map_list at map_off: one entry per section of the file.
type MapList struct {
	tree.Node
	Size  *tree.UInt
	Items *tree.List[*tree.Group]
}

var mapItemTypes = map[uint64]string{
	0x0000: "header_item",
	0x0001: "string_id_item",
	0x0002: "type_id_item",
	0x0003: "proto_id_item",
	0x0004: "field_id_item",
	0x0005: "method_id_item",
	0x0006: "class_def_item",
	0x0007: "call_site_id_item",
	0x0008: "method_handle_item",
	0x1000: "map_list",
	0x1001: "type_list",
	0x1002: "annotation_set_ref_list",
	0x1003: "annotation_set_item",
	0x2000: "class_data_item",
	0x2001: "code_item",
	0x2002: "string_data_item",
	0x2003: "debug_info_item",
	0x2004: "annotation_item",
	0x2005: "encoded_array_item",
	0x2006: "annotations_directory_item",
	0xF000: "hiddenapi_class_data_item",
}

func newMapList() *MapList {
	m := &MapList{}
	m.SetName("map_list")
	return m
}

func (m *MapList) ReadContent(r *reader.Reader) (err error) {
	if m.Size, err = tree.Add(m, r, tree.U4("size")); err != nil {
		return err
	}
	m.Items, err = tree.AddList(m, r, "list", m.Size.Int(), func() *tree.Group {
		return tree.NewGroup("", readMapItem)
	})
	return err
}

func readMapItem(g *tree.Group, r *reader.Reader) error {
	typ, err := tree.Add(g, r, tree.U2("type").Hex())
	if err != nil {
		return err
	}
	name, ok := mapItemTypes[typ.Value]
	if !ok {
		name = "unknown_" + strconv.FormatUint(typ.Value, 16)
	}
	typ.SetDesc(name)
	if _, err := tree.Add(g, r, tree.U2("unused")); err != nil {
		return err
	}
	size, err := tree.Add(g, r, tree.U4("size"))
	if err != nil {
		return err
	}
	off, err := tree.Add(g, r, offset("offset"))
	if err != nil {
		return err
	}
	g.Describe("%s x%d at %s", name, size.Value, off.Desc())
	return nil
}
