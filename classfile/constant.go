package classfile

import (
	"fmt"
	"math"
	"strconv"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/internal/mutf8"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Tag identifies the kind of a constant pool entry.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// wide reports whether entries of this kind occupy two pool slots.
func (t Tag) wide() bool {
	return t == TagLong || t == TagDouble
}

var refKindNames = [...]string{
	1: "REF_getField",
	2: "REF_getStatic",
	3: "REF_putField",
	4: "REF_putStatic",
	5: "REF_invokeVirtual",
	6: "REF_invokeStatic",
	7: "REF_invokeSpecial",
	8: "REF_newInvokeSpecial",
	9: "REF_invokeInterface",
}

// ConstantPool holds the constant_pool_count-1 slots of a class file. Long
// and Double entries take two slots; the second has no entry.
type ConstantPool struct {
	tree.Node
	count   int
	entries []*Constant
}

func newConstantPool(count int) *ConstantPool {
	p := &ConstantPool{count: count}
	p.SetName("constant_pool")
	return p
}

func (p *ConstantPool) ReadContent(r *reader.Reader) error {
	p.entries = make([]*Constant, max(p.count, 1))
	for i := 1; i < p.count; i++ {
		c := &Constant{index: i}
		c.SetName("#" + strconv.Itoa(i))
		if _, err := tree.Add(p, r, c); err != nil {
			return err
		}
		p.entries[i] = c
		if c.Tag.wide() {
			i++
		}
	}
	return nil
}

// Len returns constant_pool_count.
func (p *ConstantPool) Len() int {
	return p.count
}

// Get returns the entry at index i. Index 0, indices past the pool and the
// unusable slot after a Long or Double are broken references.
func (p *ConstantPool) Get(i int) (*Constant, error) {
	if i <= 0 || i >= len(p.entries) || p.entries[i] == nil {
		return nil, errors.BrokenReference("constant_pool", i, p.count)
	}
	return p.entries[i], nil
}

// Utf8 returns the string held by the Utf8 entry at index i.
func (p *ConstantPool) Utf8(i int) (string, error) {
	c, err := p.Get(i)
	if err != nil {
		return "", err
	}
	if c.Tag != TagUtf8 {
		return "", errors.InvalidData(errors.PhaseResolve, c.Offset(),
			fmt.Sprintf("#%d is %s, want Utf8", i, c.Tag))
	}
	return c.Utf8, nil
}

// maxRefDepth bounds reference chains so cyclic pools fail instead of
// recursing forever. Well-formed chains are at most four deep.
const maxRefDepth = 8

// Text renders the entry at index i as readable text, following its
// references: a Class renders as its name, a Methodref as
// owner.name:descriptor.
func (p *ConstantPool) Text(i int) (string, error) {
	return p.text(i, 0)
}

func (p *ConstantPool) text(i, depth int) (string, error) {
	if depth > maxRefDepth {
		return "", errors.InvalidData(errors.PhaseResolve, errors.NoOffset,
			fmt.Sprintf("constant pool reference cycle through #%d", i))
	}
	c, err := p.Get(i)
	if err != nil {
		return "", err
	}
	ref := func(k int) (string, error) {
		return p.text(c.Refs[k].Value, depth+1)
	}

	switch c.Tag {
	case TagUtf8:
		return c.Utf8, nil
	case TagInteger, TagFloat, TagLong, TagDouble:
		return c.Literal, nil
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		return ref(0)
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		owner, err := ref(0)
		if err != nil {
			return "", err
		}
		nat, err := ref(1)
		if err != nil {
			return "", err
		}
		return owner + "." + nat, nil
	case TagNameAndType:
		name, err := ref(0)
		if err != nil {
			return "", err
		}
		desc, err := ref(1)
		if err != nil {
			return "", err
		}
		return name + ":" + desc, nil
	case TagMethodHandle:
		target, err := ref(0)
		if err != nil {
			return "", err
		}
		kind := "REF_" + strconv.Itoa(c.RefKind)
		if c.RefKind < len(refKindNames) && refKindNames[c.RefKind] != "" {
			kind = refKindNames[c.RefKind]
		}
		return kind + " " + target, nil
	case TagDynamic, TagInvokeDynamic:
		nat, err := ref(0)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("#%d:%s", c.BootstrapMethod, nat), nil
	}
	return "", errors.Unsupported(errors.PhaseResolve, c.Offset(), c.Tag.String())
}

// Constant is one constant pool entry. Which fields are set depends on Tag.
type Constant struct {
	tree.Node
	Tag   Tag
	index int

	// Utf8 is the decoded text of a Utf8 entry.
	Utf8 string
	// Literal is the formatted value of an Integer, Float, Long or Double.
	Literal string
	// Refs are the entry's constant pool references in field order.
	Refs []*Index
	// RefKind is the reference_kind of a MethodHandle.
	RefKind int
	// BootstrapMethod is the bootstrap_method_attr_index of a Dynamic or
	// InvokeDynamic.
	BootstrapMethod int
}

func (c *Constant) ReadContent(r *reader.Reader) error {
	tag, err := tree.Add(c, r, tree.U1("tag"))
	if err != nil {
		return err
	}
	c.Tag = Tag(tag.Value)
	tag.SetDesc(c.Tag.String())

	switch c.Tag {
	case TagUtf8:
		return c.readUtf8(r)
	case TagInteger:
		v, err := tree.Add(c, r, tree.U4("bytes"))
		if err != nil {
			return err
		}
		c.Literal = strconv.FormatInt(int64(int32(uint32(v.Value))), 10)
	case TagFloat:
		v, err := tree.Add(c, r, tree.U4("bytes"))
		if err != nil {
			return err
		}
		c.Literal = strconv.FormatFloat(float64(math.Float32frombits(uint32(v.Value))), 'g', -1, 32)
	case TagLong, TagDouble:
		hi, err := tree.Add(c, r, tree.U4("high_bytes"))
		if err != nil {
			return err
		}
		lo, err := tree.Add(c, r, tree.U4("low_bytes"))
		if err != nil {
			return err
		}
		bits := hi.Value<<32 | lo.Value
		if c.Tag == TagLong {
			c.Literal = strconv.FormatInt(int64(bits), 10)
		} else {
			c.Literal = strconv.FormatFloat(math.Float64frombits(bits), 'g', -1, 64)
		}
	case TagClass, TagModule, TagPackage:
		err = c.readRefs(r, "name_index")
	case TagString:
		err = c.readRefs(r, "string_index")
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		err = c.readRefs(r, "class_index", "name_and_type_index")
	case TagNameAndType:
		err = c.readRefs(r, "name_index", "descriptor_index")
	case TagMethodHandle:
		var kind *tree.UInt
		if kind, err = tree.Add(c, r, tree.U1("reference_kind")); err != nil {
			return err
		}
		c.RefKind = kind.Int()
		if c.RefKind < len(refKindNames) && refKindNames[c.RefKind] != "" {
			kind.Describe("%d (%s)", c.RefKind, refKindNames[c.RefKind])
		}
		err = c.readRefs(r, "reference_index")
	case TagMethodType:
		err = c.readRefs(r, "descriptor_index")
	case TagDynamic, TagInvokeDynamic:
		var bsm *tree.UInt
		if bsm, err = tree.Add(c, r, tree.U2("bootstrap_method_attr_index")); err != nil {
			return err
		}
		c.BootstrapMethod = bsm.Int()
		err = c.readRefs(r, "name_and_type_index")
	default:
		return errors.Unsupported(errors.PhaseRead, tag.Offset(), fmt.Sprintf("constant pool tag %d", tag.Value))
	}
	if err != nil {
		return err
	}
	if c.Literal != "" {
		c.Describe("%s: %s", c.Tag, c.Literal)
	} else {
		c.SetDesc(c.Tag.String())
	}
	return nil
}

func (c *Constant) readUtf8(r *reader.Reader) error {
	n, err := tree.Add(c, r, tree.U2("length"))
	if err != nil {
		return err
	}
	b, err := tree.Add(c, r, tree.Bytes("bytes", n.Int()))
	if err != nil {
		return err
	}
	s, err := mutf8.Decode(b.Data)
	if err != nil {
		return errors.InvalidData(errors.PhaseRead, b.Offset(), err.Error())
	}
	c.Utf8 = s
	b.SetDesc(strconv.Quote(s))
	c.Describe("Utf8: %s", s)
	return nil
}

func (c *Constant) readRefs(r *reader.Reader, names ...string) error {
	for _, name := range names {
		x, err := tree.Add(c, r, newIndex(name))
		if err != nil {
			return err
		}
		c.Refs = append(c.Refs, x)
	}
	return nil
}

// PostRead describes reference entries by the text they resolve to.
func (c *Constant) PostRead(f *File) error {
	if len(c.Refs) == 0 {
		return nil
	}
	text, err := f.ConstantPool.Text(c.index)
	if err != nil {
		return err
	}
	c.Describe("%s: %s", c.Tag, text)
	return nil
}
