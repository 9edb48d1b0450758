package classfile

import (
	"fmt"
	"strings"

	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Index is a u2 constant pool index. Zero means no reference.
type Index struct {
	tree.Node
	Value int
}

func newIndex(name string) *Index {
	x := &Index{}
	x.SetName(name)
	return x
}

func (x *Index) ReadContent(r *reader.Reader) error {
	v, err := r.ReadU2()
	if err != nil {
		return err
	}
	x.Value = int(v)
	x.Describe("#%d", v)
	return nil
}

// PostRead appends the text of the referenced entry.
func (x *Index) PostRead(f *File) error {
	if x.Value == 0 {
		return nil
	}
	text, err := f.ConstantPool.Text(x.Value)
	if err != nil {
		return err
	}
	x.Describe("#%d -> %s", x.Value, text)
	return nil
}

// FlagKind selects the flag names an access_flags field is rendered with.
type FlagKind int

const (
	ClassFlags FlagKind = iota
	FieldFlags
	MethodFlags
	InnerClassFlags
	ParameterFlags
)

type flagName struct {
	bit  uint16
	name string
}

var flagNames = map[FlagKind][]flagName{
	ClassFlags: {
		{0x0001, "public"}, {0x0010, "final"}, {0x0020, "super"},
		{0x0200, "interface"}, {0x0400, "abstract"}, {0x1000, "synthetic"},
		{0x2000, "annotation"}, {0x4000, "enum"}, {0x8000, "module"},
	},
	FieldFlags: {
		{0x0001, "public"}, {0x0002, "private"}, {0x0004, "protected"},
		{0x0008, "static"}, {0x0010, "final"}, {0x0040, "volatile"},
		{0x0080, "transient"}, {0x1000, "synthetic"}, {0x4000, "enum"},
	},
	MethodFlags: {
		{0x0001, "public"}, {0x0002, "private"}, {0x0004, "protected"},
		{0x0008, "static"}, {0x0010, "final"}, {0x0020, "synchronized"},
		{0x0040, "bridge"}, {0x0080, "varargs"}, {0x0100, "native"},
		{0x0400, "abstract"}, {0x0800, "strict"}, {0x1000, "synthetic"},
	},
	InnerClassFlags: {
		{0x0001, "public"}, {0x0002, "private"}, {0x0004, "protected"},
		{0x0008, "static"}, {0x0010, "final"}, {0x0200, "interface"},
		{0x0400, "abstract"}, {0x1000, "synthetic"}, {0x2000, "annotation"},
		{0x4000, "enum"},
	},
	ParameterFlags: {
		{0x0010, "final"}, {0x1000, "synthetic"}, {0x8000, "mandated"},
	},
}

// FlagString renders v as space-separated flag names for kind. Bits with no
// name are left out.
func FlagString(kind FlagKind, v uint16) string {
	var names []string
	for _, f := range flagNames[kind] {
		if v&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, " ")
}

// Flags is a u2 access_flags field.
type Flags struct {
	tree.Node
	Value uint16
	kind  FlagKind
}

func newFlags(name string, kind FlagKind) *Flags {
	f := &Flags{kind: kind}
	f.SetName(name)
	return f
}

func (f *Flags) ReadContent(r *reader.Reader) error {
	v, err := r.ReadU2()
	if err != nil {
		return err
	}
	f.Value = v
	desc := fmt.Sprintf("0x%04x", v)
	if names := FlagString(f.kind, v); names != "" {
		desc += " " + names
	}
	f.SetDesc(desc)
	return nil
}

// Has reports whether all bits in mask are set.
func (f *Flags) Has(mask uint16) bool {
	return f.Value&mask == mask
}
