package classfile

import (
	"encoding/binary"
	"fmt"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Magic is the first four bytes of every class file.
const Magic = 0xCAFEBABE

// File is the root of a decoded class file.
type File struct {
	tree.Node

	Magic             *tree.UInt
	MinorVersion      *tree.UInt
	MajorVersion      *tree.UInt
	ConstantPoolCount *tree.UInt
	ConstantPool      *ConstantPool
	AccessFlags       *Flags
	ThisClass         *Index
	SuperClass        *Index
	InterfacesCount   *tree.UInt
	Interfaces        *tree.List[*Index]
	FieldsCount       *tree.UInt
	Fields            *tree.List[*Member]
	MethodsCount      *tree.UInt
	Methods           *tree.List[*Member]
	AttributesCount   *tree.UInt
	Attributes        *tree.List[*Attribute]
}

// New returns an unread class file root.
func New() *File {
	f := &File{}
	f.SetName("ClassFile")
	return f
}

// Parse decodes data as a class file. On failure the partially decoded file
// is returned with the error.
func Parse(data []byte) (*File, error) {
	return tree.Parse(New(), data, binary.BigEndian)
}

func (f *File) ReadContent(r *reader.Reader) (err error) {
	if f.Magic, err = tree.Add(f, r, tree.U4("magic").Hex()); err != nil {
		return err
	}
	if f.Magic.Value != Magic {
		return errors.InvalidData(errors.PhaseRead, f.Magic.Offset(),
			fmt.Sprintf("magic %#x is not a class file", f.Magic.Value))
	}
	if f.MinorVersion, err = tree.Add(f, r, tree.U2("minor_version")); err != nil {
		return err
	}
	if f.MajorVersion, err = tree.Add(f, r, tree.U2("major_version")); err != nil {
		return err
	}
	if v := javaVersion(f.MajorVersion.Value); v != "" {
		f.MajorVersion.Describe("%d (Java %s)", f.MajorVersion.Value, v)
	}

	if f.ConstantPoolCount, err = tree.Add(f, r, tree.U2("constant_pool_count")); err != nil {
		return err
	}
	if f.ConstantPool, err = tree.Add(f, r, newConstantPool(f.ConstantPoolCount.Int())); err != nil {
		return err
	}
	cp := f.ConstantPool

	if f.AccessFlags, err = tree.Add(f, r, newFlags("access_flags", ClassFlags)); err != nil {
		return err
	}
	if f.ThisClass, err = tree.Add(f, r, newIndex("this_class")); err != nil {
		return err
	}
	if f.SuperClass, err = tree.Add(f, r, newIndex("super_class")); err != nil {
		return err
	}

	if f.InterfacesCount, err = tree.Add(f, r, tree.U2("interfaces_count")); err != nil {
		return err
	}
	if f.Interfaces, err = tree.AddList(f, r, "interfaces", f.InterfacesCount.Int(), func() *Index {
		return newIndex("")
	}); err != nil {
		return err
	}

	if f.FieldsCount, err = tree.Add(f, r, tree.U2("fields_count")); err != nil {
		return err
	}
	if f.Fields, err = tree.AddList(f, r, "fields", f.FieldsCount.Int(), memberOf(cp, FieldFlags)); err != nil {
		return err
	}

	if f.MethodsCount, err = tree.Add(f, r, tree.U2("methods_count")); err != nil {
		return err
	}
	if f.Methods, err = tree.AddList(f, r, "methods", f.MethodsCount.Int(), memberOf(cp, MethodFlags)); err != nil {
		return err
	}

	f.AttributesCount, f.Attributes, err = addAttributes(f, r, cp)
	return err
}

// PostRead describes the file by the name of the class it defines.
func (f *File) PostRead(*File) error {
	name, err := f.ConstantPool.Text(f.ThisClass.Value)
	if err != nil {
		return err
	}
	f.SetDesc(name)
	return nil
}

// ClassName returns the internal name of the defined class, or "" when the
// this_class reference does not resolve.
func (f *File) ClassName() string {
	if f.ThisClass == nil {
		return ""
	}
	name, _ := f.ConstantPool.Text(f.ThisClass.Value)
	return name
}

// javaVersion maps a class file major version to the Java release that
// introduced it.
func javaVersion(major uint64) string {
	switch {
	case major >= 49:
		return fmt.Sprint(major - 44)
	case major >= 45:
		return fmt.Sprintf("1.%d", major-44)
	}
	return ""
}
