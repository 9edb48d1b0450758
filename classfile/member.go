package classfile

import (
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Member is a field_info or method_info entry.
type Member struct {
	tree.Node
	cp   *ConstantPool
	kind FlagKind

	AccessFlags     *Flags
	NameIndex       *Index
	DescriptorIndex *Index
	AttributesCount *tree.UInt
	Attributes      *tree.List[*Attribute]
}

func memberOf(cp *ConstantPool, kind FlagKind) func() *Member {
	return func() *Member {
		return &Member{cp: cp, kind: kind}
	}
}

func (m *Member) ReadContent(r *reader.Reader) (err error) {
	if m.AccessFlags, err = tree.Add(m, r, newFlags("access_flags", m.kind)); err != nil {
		return err
	}
	if m.NameIndex, err = tree.Add(m, r, newIndex("name_index")); err != nil {
		return err
	}
	if m.DescriptorIndex, err = tree.Add(m, r, newIndex("descriptor_index")); err != nil {
		return err
	}
	m.AttributesCount, m.Attributes, err = addAttributes(m, r, m.cp)
	return err
}

// PostRead describes a method as name+descriptor and a field as
// "name descriptor".
func (m *Member) PostRead(f *File) error {
	name, err := f.ConstantPool.Utf8(m.NameIndex.Value)
	if err != nil {
		return err
	}
	desc, err := f.ConstantPool.Utf8(m.DescriptorIndex.Value)
	if err != nil {
		return err
	}
	if m.kind == MethodFlags {
		m.SetDesc(name + desc)
	} else {
		m.SetDesc(name + " " + desc)
	}
	return nil
}

// Attribute returns the first attribute with the given name, or nil.
func (m *Member) Attribute(name string) *Attribute {
	return findAttribute(m.Attributes, name)
}
