package dexfile

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/internal/mutf8"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// StringData is a string_data_item: a ULEB128 length in UTF-16 code units,
// modified UTF-8 bytes and a NUL terminator.
type StringData struct {
	tree.Node
	Utf16Size *tree.UInt
	Data      *tree.Raw
	Value     string
}

func newStringData() *StringData {
	s := &StringData{}
	s.SetName("string_data")
	return s
}

func (s *StringData) ReadContent(r *reader.Reader) (err error) {
	if s.Utf16Size, err = tree.Add(s, r, tree.Uleb128("utf16_size")); err != nil {
		return err
	}
	str, n, err := mutf8.DecodeN(r.Bytes()[r.Position():], s.Utf16Size.Int())
	if err != nil {
		var short *mutf8.ShortError
		if stderrors.As(err, &short) {
			return errors.OutOfData(r.Position(), short.Need, short.Have)
		}
		return errors.InvalidData(errors.PhaseRead, r.Position(), err.Error())
	}
	if s.Data, err = tree.Add(s, r, tree.Bytes("data", n)); err != nil {
		return err
	}
	term, err := tree.Add(s, r, tree.U1("terminator"))
	if err != nil {
		return err
	}
	if term.Value != 0 {
		return errors.InvalidData(errors.PhaseRead, term.Offset(),
			fmt.Sprintf("string data ends with 0x%02x, want NUL after %d code units", term.Value, s.Utf16Size.Value))
	}
	s.Value = str
	s.Data.SetDesc(strconv.Quote(str))
	s.SetDesc(strconv.Quote(str))
	return nil
}

// TypeList is a type_list: a u4 size followed by u2 type indices.
type TypeList struct {
	tree.Node
	Size  *tree.UInt
	Types *tree.List[*Ref]
}

func newTypeList(name string) *TypeList {
	l := &TypeList{}
	l.SetName(name)
	return l
}

func (l *TypeList) ReadContent(r *reader.Reader) (err error) {
	if l.Size, err = tree.Add(l, r, tree.U4("size")); err != nil {
		return err
	}
	l.Types, err = tree.AddList(l, r, "list", l.Size.Int(), func() *Ref {
		return newRef("", Types, readU2)
	})
	return err
}

func (l *TypeList) PostRead(f *File) error {
	names := make([]string, 0, len(l.Types.Items))
	for _, t := range l.Types.Items {
		name, err := f.Lookup(Types, t.Value)
		if err != nil {
			return err
		}
		names = append(names, name)
	}
	l.SetDesc(strings.Join(names, ", "))
	return nil
}

// ClassData is a class_data_item. Field and method indices are stored as
// increments over the previous entry of the same list.
type ClassData struct {
	tree.Node
	StaticFieldsSize   *tree.UInt
	InstanceFieldsSize *tree.UInt
	DirectMethodsSize  *tree.UInt
	VirtualMethodsSize *tree.UInt
	StaticFields       *tree.List[*EncodedField]
	InstanceFields     *tree.List[*EncodedField]
	DirectMethods      *tree.List[*EncodedMethod]
	VirtualMethods     *tree.List[*EncodedMethod]
}

func newClassData() *ClassData {
	c := &ClassData{}
	c.SetName("class_data")
	return c
}

func (c *ClassData) ReadContent(r *reader.Reader) (err error) {
	sizes := []struct {
		dst  **tree.UInt
		name string
	}{
		{&c.StaticFieldsSize, "static_fields_size"},
		{&c.InstanceFieldsSize, "instance_fields_size"},
		{&c.DirectMethodsSize, "direct_methods_size"},
		{&c.VirtualMethodsSize, "virtual_methods_size"},
	}
	for _, s := range sizes {
		if *s.dst, err = tree.Add(c, r, tree.Uleb128(s.name)); err != nil {
			return err
		}
	}

	newField := func() *EncodedField { return &EncodedField{} }
	newMethod := func() *EncodedMethod { return &EncodedMethod{} }
	if c.StaticFields, err = tree.AddList(c, r, "static_fields", c.StaticFieldsSize.Int(), newField); err != nil {
		return err
	}
	if c.InstanceFields, err = tree.AddList(c, r, "instance_fields", c.InstanceFieldsSize.Int(), newField); err != nil {
		return err
	}
	if c.DirectMethods, err = tree.AddList(c, r, "direct_methods", c.DirectMethodsSize.Int(), newMethod); err != nil {
		return err
	}
	c.VirtualMethods, err = tree.AddList(c, r, "virtual_methods", c.VirtualMethodsSize.Int(), newMethod)
	return err
}

// PostRead recovers absolute indices from the increments, restarting the
// running sum for each of the four lists, and describes every entry.
func (c *ClassData) PostRead(f *File) error {
	var errs error
	for _, l := range []*tree.List[*EncodedField]{c.StaticFields, c.InstanceFields} {
		var idx uint32
		for _, fd := range l.Items {
			idx += uint32(fd.FieldIdxDiff.Value)
			fd.FieldIdx = idx
			text, err := f.Field(idx)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			fd.SetDesc(text)
		}
	}
	for _, l := range []*tree.List[*EncodedMethod]{c.DirectMethods, c.VirtualMethods} {
		var idx uint32
		for _, m := range l.Items {
			idx += uint32(m.MethodIdxDiff.Value)
			m.MethodIdx = idx
			text, err := f.Method(idx)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			m.SetDesc(text)
		}
	}
	return errs
}

// EncodedField is an encoded_field entry of a class_data_item.
type EncodedField struct {
	tree.Node
	FieldIdxDiff *tree.UInt
	AccessFlags  *Flags

	// FieldIdx is the absolute field index, set by the resolution pass.
	FieldIdx uint32
}

func (fd *EncodedField) ReadContent(r *reader.Reader) (err error) {
	if fd.FieldIdxDiff, err = tree.Add(fd, r, tree.Uleb128("field_idx_diff")); err != nil {
		return err
	}
	fd.AccessFlags, err = tree.Add(fd, r, newFlags("access_flags", FieldFlags, readUleb))
	return err
}

// EncodedMethod is an encoded_method entry. A non-zero code_off points at
// the method's code_item, which is read out of band.
type EncodedMethod struct {
	tree.Node
	MethodIdxDiff *tree.UInt
	AccessFlags   *Flags
	CodeOff       *tree.UInt
	Code          *CodeItem

	// MethodIdx is the absolute method index, set by the resolution pass.
	MethodIdx uint32
}

func (m *EncodedMethod) ReadContent(r *reader.Reader) (err error) {
	if m.MethodIdxDiff, err = tree.Add(m, r, tree.Uleb128("method_idx_diff")); err != nil {
		return err
	}
	if m.AccessFlags, err = tree.Add(m, r, newFlags("access_flags", MethodFlags, readUleb)); err != nil {
		return err
	}
	if m.CodeOff, err = tree.Add(m, r, tree.Uleb128("code_off").Hex()); err != nil {
		return err
	}
	if m.CodeOff.Value != 0 {
		m.Code, err = tree.AddAt(m, r, m.CodeOff.Int(), newCodeItem())
	}
	return err
}

// CodeItem is a code_item. Instructions are kept as raw code units.
type CodeItem struct {
	tree.Node
	RegistersSize *tree.UInt
	InsSize       *tree.UInt
	OutsSize      *tree.UInt
	TriesSize     *tree.UInt
	DebugInfoOff  *tree.UInt
	InsnsSize     *tree.UInt
	Insns         *tree.Raw
	Tries         *tree.List[*tree.Group]
	Handlers      *CatchHandlerList
}

func newCodeItem() *CodeItem {
	c := &CodeItem{}
	c.SetName("code")
	return c
}

func (c *CodeItem) ReadContent(r *reader.Reader) (err error) {
	if c.RegistersSize, err = tree.Add(c, r, tree.U2("registers_size")); err != nil {
		return err
	}
	if c.InsSize, err = tree.Add(c, r, tree.U2("ins_size")); err != nil {
		return err
	}
	if c.OutsSize, err = tree.Add(c, r, tree.U2("outs_size")); err != nil {
		return err
	}
	if c.TriesSize, err = tree.Add(c, r, tree.U2("tries_size")); err != nil {
		return err
	}
	if c.DebugInfoOff, err = tree.Add(c, r, offset("debug_info_off")); err != nil {
		return err
	}
	if c.InsnsSize, err = tree.Add(c, r, tree.U4("insns_size")); err != nil {
		return err
	}
	if c.Insns, err = tree.Add(c, r, tree.Bytes("insns", 2*c.InsnsSize.Int())); err != nil {
		return err
	}
	c.Describe("registers %d, %d code units", c.RegistersSize.Value, c.InsnsSize.Value)

	if c.TriesSize.Value == 0 {
		return nil
	}
	if c.InsnsSize.Value%2 == 1 {
		if _, err = tree.Add(c, r, tree.U2("padding")); err != nil {
			return err
		}
	}
	if c.Tries, err = tree.AddList(c, r, "tries", c.TriesSize.Int(), func() *tree.Group {
		return tree.NewGroup("", readTryItem)
	}); err != nil {
		return err
	}
	c.Handlers, err = tree.Add(c, r, newCatchHandlerList())
	return err
}

func readTryItem(g *tree.Group, r *reader.Reader) error {
	start, err := tree.Add(g, r, tree.U4("start_addr").Hex())
	if err != nil {
		return err
	}
	count, err := tree.Add(g, r, tree.U2("insn_count"))
	if err != nil {
		return err
	}
	if _, err := tree.Add(g, r, tree.U2("handler_off").Hex()); err != nil {
		return err
	}
	g.Describe("%#x..%#x", start.Value, start.Value+count.Value)
	return nil
}

// CatchHandlerList is an encoded_catch_handler_list.
type CatchHandlerList struct {
	tree.Node
	Size *tree.UInt
	List *tree.List[*CatchHandler]
}

func newCatchHandlerList() *CatchHandlerList {
	l := &CatchHandlerList{}
	l.SetName("handlers")
	return l
}

func (l *CatchHandlerList) ReadContent(r *reader.Reader) (err error) {
	if l.Size, err = tree.Add(l, r, tree.Uleb128("size")); err != nil {
		return err
	}
	l.List, err = tree.AddList(l, r, "list", l.Size.Int(), func() *CatchHandler {
		return &CatchHandler{}
	})
	return err
}

// CatchHandler is an encoded_catch_handler. A size of zero or less means the
// typed handlers are followed by a catch-all address.
type CatchHandler struct {
	tree.Node
	Size         *tree.SInt
	Handlers     *tree.List[*tree.Group]
	CatchAllAddr *tree.UInt
}

func (h *CatchHandler) ReadContent(r *reader.Reader) (err error) {
	if h.Size, err = tree.Add(h, r, tree.Sleb128("size")); err != nil {
		return err
	}
	n := h.Size.Value
	if n < 0 {
		n = -n
	}
	if h.Handlers, err = tree.AddList(h, r, "handlers", int(n), func() *tree.Group {
		return tree.NewGroup("", readTypeAddrPair)
	}); err != nil {
		return err
	}
	if h.Size.Value <= 0 {
		h.CatchAllAddr, err = tree.Add(h, r, tree.Uleb128("catch_all_addr").Hex())
	}
	return err
}

func readTypeAddrPair(g *tree.Group, r *reader.Reader) error {
	if _, err := tree.Add(g, r, newRef("type_idx", Types, readUleb)); err != nil {
		return err
	}
	_, err := tree.Add(g, r, tree.Uleb128("addr").Hex())
	return err
}
