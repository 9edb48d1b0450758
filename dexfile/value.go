package dexfile

import (
	"fmt"
	"math"
	"strconv"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// ValueKind is the value_type of an encoded_value.
type ValueKind uint8

const (
	ValueByte         ValueKind = 0x00
	ValueShort        ValueKind = 0x02
	ValueChar         ValueKind = 0x03
	ValueInt          ValueKind = 0x04
	ValueLong         ValueKind = 0x06
	ValueFloat        ValueKind = 0x10
	ValueDouble       ValueKind = 0x11
	ValueMethodType   ValueKind = 0x15
	ValueMethodHandle ValueKind = 0x16
	ValueString       ValueKind = 0x17
	ValueType         ValueKind = 0x18
	ValueField        ValueKind = 0x19
	ValueMethod       ValueKind = 0x1a
	ValueEnum         ValueKind = 0x1b
	ValueArray        ValueKind = 0x1c
	ValueAnnotation   ValueKind = 0x1d
	ValueNull         ValueKind = 0x1e
	ValueBoolean      ValueKind = 0x1f
)

var valueKinds = map[ValueKind]struct {
	name    string
	maxSize int
}{
	ValueByte:         {"VALUE_BYTE", 1},
	ValueShort:        {"VALUE_SHORT", 2},
	ValueChar:         {"VALUE_CHAR", 2},
	ValueInt:          {"VALUE_INT", 4},
	ValueLong:         {"VALUE_LONG", 8},
	ValueFloat:        {"VALUE_FLOAT", 4},
	ValueDouble:       {"VALUE_DOUBLE", 8},
	ValueMethodType:   {"VALUE_METHOD_TYPE", 4},
	ValueMethodHandle: {"VALUE_METHOD_HANDLE", 4},
	ValueString:       {"VALUE_STRING", 4},
	ValueType:         {"VALUE_TYPE", 4},
	ValueField:        {"VALUE_FIELD", 4},
	ValueMethod:       {"VALUE_METHOD", 4},
	ValueEnum:         {"VALUE_ENUM", 4},
	ValueArray:        {"VALUE_ARRAY", 0},
	ValueAnnotation:   {"VALUE_ANNOTATION", 0},
	ValueNull:         {"VALUE_NULL", 0},
	ValueBoolean:      {"VALUE_BOOLEAN", 0},
}

func (k ValueKind) String() string {
	if v, ok := valueKinds[k]; ok {
		return v.name
	}
	return fmt.Sprintf("ValueKind(%#x)", uint8(k))
}

// EncodedArray is an encoded_array: a ULEB128 size and that many values.
type EncodedArray struct {
	tree.Node
	Size   *tree.UInt
	Values *tree.List[*EncodedValue]
}

func newEncodedArray(name string) *EncodedArray {
	a := &EncodedArray{}
	a.SetName(name)
	return a
}

func (a *EncodedArray) ReadContent(r *reader.Reader) (err error) {
	if a.Size, err = tree.Add(a, r, tree.Uleb128("size")); err != nil {
		return err
	}
	if a.Values, err = tree.AddList(a, r, "values", a.Size.Int(), func() *EncodedValue {
		return &EncodedValue{}
	}); err != nil {
		return err
	}
	a.Describe("array of %d", a.Size.Value)
	return nil
}

// EncodedAnnotation is an encoded_annotation.
type EncodedAnnotation struct {
	tree.Node
	TypeIdx  *Ref
	Size     *tree.UInt
	Elements *tree.List[*tree.Group]
}

func newEncodedAnnotation(name string) *EncodedAnnotation {
	a := &EncodedAnnotation{}
	a.SetName(name)
	return a
}

func (a *EncodedAnnotation) ReadContent(r *reader.Reader) (err error) {
	if a.TypeIdx, err = tree.Add(a, r, newRef("type_idx", Types, readUleb)); err != nil {
		return err
	}
	if a.Size, err = tree.Add(a, r, tree.Uleb128("size")); err != nil {
		return err
	}
	a.Elements, err = tree.AddList(a, r, "elements", a.Size.Int(), func() *tree.Group {
		return tree.NewGroup("", func(g *tree.Group, r *reader.Reader) error {
			if _, err := tree.Add(g, r, newRef("name_idx", Strings, readUleb)); err != nil {
				return err
			}
			_, err := tree.Add(g, r, &EncodedValue{})
			return err
		})
	})
	return err
}

func (a *EncodedAnnotation) PostRead(f *File) error {
	name, err := f.Lookup(Types, a.TypeIdx.Value)
	if err != nil {
		return err
	}
	a.Describe("@%s", name)
	return nil
}

// EncodedValue is an encoded_value. Scalars are stored in Arg+1 bytes,
// little-endian; arrays and annotations nest.
type EncodedValue struct {
	tree.Node
	Kind ValueKind
	Arg  int
	// Bits holds the zero-extended little-endian payload of a scalar.
	Bits       uint64
	Array      *EncodedArray
	Annotation *EncodedAnnotation
}

func (v *EncodedValue) ReadContent(r *reader.Reader) error {
	if v.Name() == "" {
		v.SetName("value")
	}
	head, err := tree.Add(v, r, tree.U1("value_type"))
	if err != nil {
		return err
	}
	v.Kind = ValueKind(head.Value & 0x1f)
	v.Arg = int(head.Value >> 5)
	head.Describe("%s, arg %d", v.Kind, v.Arg)

	info, ok := valueKinds[v.Kind]
	if !ok {
		return errors.Unsupported(errors.PhaseRead, head.Offset(), v.Kind.String())
	}

	switch v.Kind {
	case ValueArray:
		v.Array, err = tree.Add(v, r, newEncodedArray("value"))
		if err == nil {
			v.SetDesc(v.Array.Desc())
		}
		return err
	case ValueAnnotation:
		v.Annotation, err = tree.Add(v, r, newEncodedAnnotation("value"))
		return err
	case ValueNull:
		v.SetDesc("null")
		return nil
	case ValueBoolean:
		v.SetDesc(strconv.FormatBool(v.Arg != 0))
		return nil
	}

	size := v.Arg + 1
	if size > info.maxSize {
		return errors.InvalidData(errors.PhaseRead, head.Offset(),
			fmt.Sprintf("%s with %d bytes, at most %d", v.Kind, size, info.maxSize))
	}
	raw, err := tree.Add(v, r, tree.Bytes("value", size))
	if err != nil {
		return err
	}
	for i := size - 1; i >= 0; i-- {
		v.Bits = v.Bits<<8 | uint64(raw.Data[i])
	}

	shift := 64 - 8*uint(size)
	switch v.Kind {
	case ValueByte, ValueShort, ValueInt, ValueLong:
		v.SetDesc(strconv.FormatInt(int64(v.Bits<<shift)>>shift, 10))
	case ValueChar:
		v.SetDesc(strconv.QuoteRune(rune(v.Bits)))
	case ValueFloat:
		bits := uint32(v.Bits << (32 - 8*uint(size)))
		v.SetDesc(strconv.FormatFloat(float64(math.Float32frombits(bits)), 'g', -1, 32))
	case ValueDouble:
		v.SetDesc(strconv.FormatFloat(math.Float64frombits(v.Bits<<shift), 'g', -1, 64))
	default:
		v.Describe("#%d", v.Bits)
	}
	return nil
}

// PostRead describes index-valued constants by what they refer to.
func (v *EncodedValue) PostRead(f *File) error {
	var (
		text string
		err  error
		idx  = uint32(v.Bits)
	)
	switch v.Kind {
	case ValueString:
		if text, err = f.String(idx); err == nil {
			text = strconv.Quote(text)
		}
	case ValueType:
		text, err = f.Lookup(Types, idx)
	case ValueField, ValueEnum:
		text, err = f.Field(idx)
	case ValueMethod:
		text, err = f.Method(idx)
	case ValueMethodType:
		text, err = f.Proto(idx)
	case ValueAnnotation:
		text = v.Annotation.Desc()
	default:
		return nil
	}
	if err != nil {
		return err
	}
	v.SetDesc(text)
	return nil
}
