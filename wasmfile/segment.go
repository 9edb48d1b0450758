package wasmfile

import (
	"fmt"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// ElementBody is the element section.
type ElementBody struct {
	Count    *tree.UInt
	Elements []*Element
}

func (b *ElementBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Elements, err = addVec(s, r, func() *Element { return &Element{} })
	return err
}

// Element is an element segment. Flags bit 0 marks passive or declarative
// segments, bit 1 an explicit table index (active) or declarative (not
// active), bit 2 initializers given as expressions instead of function
// indices.
type Element struct {
	tree.Node
	Flags      *tree.UInt
	Table      *Index
	OffsetExpr *ConstExpr
	ElemKind   *tree.UInt
	RefType    *ValueType
	Count      *tree.UInt
	Funcs      *tree.List[*Index]
	Exprs      *tree.List[*ConstExpr]
}

// Mode returns "active", "passive" or "declarative".
func (e *Element) Mode() string {
	switch {
	case e.Flags == nil:
		return ""
	case e.Flags.Value&0x01 == 0:
		return "active"
	case e.Flags.Value&0x02 == 0:
		return "passive"
	default:
		return "declarative"
	}
}

func (e *Element) ReadContent(r *reader.Reader) (err error) {
	if e.Flags, err = tree.Add(e, r, tree.Uleb128("flags")); err != nil {
		return err
	}
	flags := e.Flags.Value
	if flags > 7 {
		return errors.InvalidData(errors.PhaseRead, e.Flags.Offset(), fmt.Sprintf("element segment flags %d", flags))
	}
	e.Flags.SetDesc(e.Mode())

	hasTable := flags&0x02 != 0 && flags&0x01 == 0
	hasOffset := flags&0x01 == 0
	usesExprs := flags&0x04 != 0

	if hasTable {
		if e.Table, err = tree.Add(e, r, newIndex("table", Tables)); err != nil {
			return err
		}
	}
	if hasOffset {
		if e.OffsetExpr, err = tree.Add(e, r, newConstExpr("offset")); err != nil {
			return err
		}
	}
	if flags&0x03 != 0 {
		if usesExprs {
			e.RefType, err = tree.Add(e, r, newValueType("reftype"))
		} else {
			e.ElemKind, err = tree.Add(e, r, tree.U1("elemkind"))
		}
		if err != nil {
			return err
		}
	}

	if e.Count, err = tree.Add(e, r, tree.Uleb128("count")); err != nil {
		return err
	}
	if usesExprs {
		e.Exprs, err = tree.AddList(e, r, "init", e.Count.Int(), func() *ConstExpr { return &ConstExpr{} })
	} else {
		e.Funcs, err = tree.AddList(e, r, "init", e.Count.Int(), func() *Index { return newIndex("", Funcs) })
	}
	if err != nil {
		return err
	}
	e.Describe("%s, %d entries", e.Mode(), e.Count.Value)
	return nil
}

// CodeBody is the code section.
type CodeBody struct {
	Count *tree.UInt
	Funcs []*FuncBody
}

func (b *CodeBody) readBody(s *Section, r *reader.Reader) (err error) {
	i := 0
	b.Count, b.Funcs, err = addVec(s, r, func() *FuncBody {
		fb := &FuncBody{index: i}
		i++
		return fb
	})
	return err
}

// FuncBody is one code section entry: its size, local declarations and
// instruction bytes. Instructions are not decoded.
type FuncBody struct {
	tree.Node
	Size       *tree.UInt
	LocalCount *tree.UInt
	Locals     *tree.List[*tree.Group]
	Code       *tree.Raw

	// index is the position in the code section; the function index adds
	// the number of imported functions.
	index int
}

func (fb *FuncBody) ReadContent(r *reader.Reader) (err error) {
	if fb.Size, err = tree.Add(fb, r, tree.Uleb128("size")); err != nil {
		return err
	}
	return readSized(r, fb.Size.Int(), func(r *reader.Reader) (err error) {
		if fb.LocalCount, err = tree.Add(fb, r, tree.Uleb128("local_count")); err != nil {
			return err
		}
		if fb.Locals, err = tree.AddList(fb, r, "locals", fb.LocalCount.Int(), func() *tree.Group {
			return tree.NewGroup("", readLocal)
		}); err != nil {
			return err
		}
		fb.Code, err = tree.Add(fb, r, tree.Bytes("code", r.Remaining()))
		return err
	})
}

func readLocal(g *tree.Group, r *reader.Reader) error {
	n, err := tree.Add(g, r, tree.Uleb128("count"))
	if err != nil {
		return err
	}
	t, err := tree.Add(g, r, newValueType("type"))
	if err != nil {
		return err
	}
	g.Describe("%d x %s", n.Value, t.String())
	return nil
}

// FuncIndex returns the function index of the body.
func (fb *FuncBody) FuncIndex(f *File) uint32 {
	return uint32(f.ImportedFuncs() + fb.index)
}

func (fb *FuncBody) PostRead(f *File) error {
	text, err := f.Lookup(Funcs, fb.FuncIndex(f))
	if err != nil {
		return err
	}
	fb.SetDesc(text)
	return nil
}

// DataBody is the data section.
type DataBody struct {
	Count    *tree.UInt
	Segments []*DataSegment
}

func (b *DataBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Segments, err = addVec(s, r, func() *DataSegment { return &DataSegment{} })
	return err
}

// DataSegment is a data segment. Flags 0 is active in memory 0, 1 passive,
// 2 active with an explicit memory index.
type DataSegment struct {
	tree.Node
	Flags      *tree.UInt
	Memory     *Index
	OffsetExpr *ConstExpr
	Size       *tree.UInt
	Init       *tree.Raw
}

func (d *DataSegment) ReadContent(r *reader.Reader) (err error) {
	if d.Flags, err = tree.Add(d, r, tree.Uleb128("flags")); err != nil {
		return err
	}
	flags := d.Flags.Value
	if flags > 2 {
		return errors.InvalidData(errors.PhaseRead, d.Flags.Offset(), fmt.Sprintf("data segment flags %d", flags))
	}
	mode := "active"
	if flags == 1 {
		mode = "passive"
	}
	d.Flags.SetDesc(mode)

	if flags == 2 {
		if d.Memory, err = tree.Add(d, r, newIndex("memory", Memories)); err != nil {
			return err
		}
	}
	if flags != 1 {
		if d.OffsetExpr, err = tree.Add(d, r, newConstExpr("offset")); err != nil {
			return err
		}
	}
	if d.Size, err = tree.Add(d, r, tree.Uleb128("size")); err != nil {
		return err
	}
	if d.Init, err = tree.Add(d, r, tree.Bytes("init", d.Size.Int())); err != nil {
		return err
	}
	d.Describe("%s, %d bytes", mode, d.Size.Value)
	return nil
}
