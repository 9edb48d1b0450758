package wasmfile

import (
	"fmt"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Section is one module section: an id byte, a ULEB128 size and exactly
// size bytes of content. The content's fields are children of the section
// and are also reachable through Body.
type Section struct {
	tree.Node
	ID   *tree.UInt
	Size *tree.UInt
	Body Body
}

// Body holds the typed content of a section.
type Body interface {
	readBody(s *Section, r *reader.Reader) error
}

func newSection() *Section {
	s := &Section{}
	s.SetName("section")
	return s
}

func newBody(id byte) Body {
	switch id {
	case SectionCustom:
		return &CustomBody{}
	case SectionType:
		return &TypeBody{}
	case SectionImport:
		return &ImportBody{}
	case SectionFunction:
		return &FunctionBody{}
	case SectionTable:
		return &TableBody{}
	case SectionMemory:
		return &MemoryBody{}
	case SectionGlobal:
		return &GlobalBody{}
	case SectionExport:
		return &ExportBody{}
	case SectionStart:
		return &StartBody{}
	case SectionElement:
		return &ElementBody{}
	case SectionCode:
		return &CodeBody{}
	case SectionData:
		return &DataBody{}
	case SectionDataCount:
		return &DataCountBody{}
	case SectionTag:
		return &TagBody{}
	}
	return nil
}

func (s *Section) ReadContent(r *reader.Reader) (err error) {
	if s.ID, err = tree.Add(s, r, tree.U1("id")); err != nil {
		return err
	}
	id := byte(s.ID.Value)
	s.ID.SetDesc(SectionName(id))
	if s.Body = newBody(id); s.Body == nil {
		return errors.Unsupported(errors.PhaseRead, s.ID.Offset(), fmt.Sprintf("section id %d", id))
	}
	s.SetName(SectionName(id))
	s.SetDesc(SectionName(id))
	if s.Size, err = tree.Add(s, r, tree.Uleb128("size")); err != nil {
		return err
	}
	return readSized(r, s.Size.Int(), func(r *reader.Reader) error {
		return s.Body.readBody(s, r)
	})
}

// readSized runs fn over the next size bytes only. fn must consume all of
// them. r ends up wherever fn stopped.
func readSized(r *reader.Reader, size int, fn func(*reader.Reader) error) error {
	end := r.Position() + size
	return r.Within(size, func(r *reader.Reader) error {
		if err := fn(r); err != nil {
			return err
		}
		if left := end - r.Position(); left != 0 {
			return errors.InvalidData(errors.PhaseRead, r.Position(),
				fmt.Sprintf("%d byte(s) left over at end of %d-byte content", left, size))
		}
		return nil
	})
}

// addVec reads a ULEB128 count into s followed by that many elements.
func addVec[T tree.Component](s *Section, r *reader.Reader, newElem func() T) (*tree.UInt, []T, error) {
	count, err := tree.Add(s, r, tree.Uleb128("count"))
	if err != nil {
		return nil, nil, err
	}
	s.Describe("%s, %d entries", SectionName(byte(s.ID.Value)), count.Value)
	items, err := tree.AddEach(s, r, count.Int(), newElem)
	return count, items, err
}

// TypeBody is the type section.
type TypeBody struct {
	Count *tree.UInt
	Types []*FuncType
}

func (b *TypeBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Types, err = addVec(s, r, func() *FuncType { return &FuncType{} })
	return err
}

// ImportBody is the import section.
type ImportBody struct {
	Count   *tree.UInt
	Imports []*Import
}

func (b *ImportBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Imports, err = addVec(s, r, func() *Import { return &Import{} })
	return err
}

// Import is one import entry. Exactly one of the descriptor fields is set,
// chosen by Kind.
type Import struct {
	tree.Node
	Module *Name
	Field  *Name
	Kind   *tree.UInt
	Type   *Index
	Table  *TableType
	Memory *Limits
	Global *GlobalType
	Tag    *Tag
}

// KindByte returns the import kind, or 0xff if it was never read.
func (imp *Import) KindByte() byte {
	if imp.Kind == nil {
		return 0xff
	}
	return byte(imp.Kind.Value)
}

func (imp *Import) ReadContent(r *reader.Reader) (err error) {
	if imp.Module, err = tree.Add(imp, r, newName("module")); err != nil {
		return err
	}
	if imp.Field, err = tree.Add(imp, r, newName("name")); err != nil {
		return err
	}
	if imp.Kind, err = tree.Add(imp, r, tree.U1("kind")); err != nil {
		return err
	}
	kind := imp.KindByte()
	switch kind {
	case KindFunc:
		imp.Type, err = tree.Add(imp, r, newIndex("type", Types))
	case KindTable:
		imp.Table, err = tree.Add(imp, r, &TableType{})
	case KindMemory:
		imp.Memory, err = tree.Add(imp, r, newLimits())
	case KindGlobal:
		imp.Global, err = tree.Add(imp, r, newGlobalType())
	case KindTag:
		imp.Tag, err = tree.Add(imp, r, &Tag{})
	default:
		return errors.InvalidData(errors.PhaseRead, imp.Kind.Offset(), fmt.Sprintf("import kind %d", kind))
	}
	if err != nil {
		return err
	}
	imp.Kind.SetDesc(KindName(kind))
	imp.Describe("%s %s.%s", KindName(kind), imp.Module.Value, imp.Field.Value)
	return nil
}

// FunctionBody is the function section: one type index per defined
// function.
type FunctionBody struct {
	Count *tree.UInt
	Types []*Index
}

func (b *FunctionBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Types, err = addVec(s, r, func() *Index { return newIndex("", Types) })
	return err
}

// TableBody is the table section.
type TableBody struct {
	Count  *tree.UInt
	Tables []*TableType
}

func (b *TableBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Tables, err = addVec(s, r, func() *TableType { return &TableType{} })
	return err
}

// MemoryBody is the memory section.
type MemoryBody struct {
	Count    *tree.UInt
	Memories []*Limits
}

func (b *MemoryBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Memories, err = addVec(s, r, func() *Limits { return &Limits{} })
	return err
}

// GlobalBody is the global section.
type GlobalBody struct {
	Count   *tree.UInt
	Globals []*Global
}

func (b *GlobalBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Globals, err = addVec(s, r, func() *Global { return &Global{} })
	return err
}

// Global is a global's type and initializer.
type Global struct {
	tree.Node
	Type *GlobalType
	Init *ConstExpr
}

func (g *Global) ReadContent(r *reader.Reader) (err error) {
	if g.Type, err = tree.Add(g, r, newGlobalType()); err != nil {
		return err
	}
	if g.Init, err = tree.Add(g, r, newConstExpr("init")); err != nil {
		return err
	}
	g.Describe("%s = %s", g.Type.Desc(), g.Init.Desc())
	return nil
}

// ExportBody is the export section.
type ExportBody struct {
	Count   *tree.UInt
	Exports []*Export
}

func (b *ExportBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Exports, err = addVec(s, r, func() *Export { return &Export{} })
	return err
}

// Export is one export entry.
type Export struct {
	tree.Node
	Field *Name
	Kind  *tree.UInt
	Index *Index
}

// KindByte returns the export kind, or 0xff if it was never read.
func (e *Export) KindByte() byte {
	if e.Kind == nil {
		return 0xff
	}
	return byte(e.Kind.Value)
}

func (e *Export) ReadContent(r *reader.Reader) (err error) {
	if e.Field, err = tree.Add(e, r, newName("name")); err != nil {
		return err
	}
	if e.Kind, err = tree.Add(e, r, tree.U1("kind")); err != nil {
		return err
	}
	kind := e.KindByte()
	if kind > KindTag {
		return errors.InvalidData(errors.PhaseRead, e.Kind.Offset(), fmt.Sprintf("export kind 0x%02x", kind))
	}
	e.Kind.SetDesc(KindName(kind))
	if e.Index, err = tree.Add(e, r, newIndex("index", kindSpace(kind))); err != nil {
		return err
	}
	e.Describe("%s %q", KindName(kind), e.Field.Value)
	return nil
}

// StartBody is the start section.
type StartBody struct {
	Func *Index
}

func (b *StartBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Func, err = tree.Add(s, r, newIndex("func", Funcs))
	return err
}

// DataCountBody is the data count section.
type DataCountBody struct {
	Count *tree.UInt
}

func (b *DataCountBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, err = tree.Add(s, r, tree.Uleb128("count"))
	return err
}

// TagBody is the tag section.
type TagBody struct {
	Count *tree.UInt
	Tags  []*Tag
}

func (b *TagBody) readBody(s *Section, r *reader.Reader) (err error) {
	b.Count, b.Tags, err = addVec(s, r, func() *Tag { return &Tag{} })
	return err
}

// Tag is an exception tag: an attribute byte and a function type index.
type Tag struct {
	tree.Node
	Attribute *tree.UInt
	Type      *Index
}

func (t *Tag) ReadContent(r *reader.Reader) (err error) {
	if t.Name() == "" {
		t.SetName("tag")
	}
	if t.Attribute, err = tree.Add(t, r, tree.U1("attribute")); err != nil {
		return err
	}
	t.Type, err = tree.Add(t, r, newIndex("type", Types))
	return err
}

func (t *Tag) PostRead(f *File) error {
	// A bad type index is reported by the index itself.
	if sig, err := f.TypeSignature(t.Type.Value); err == nil {
		t.SetDesc(sig)
	}
	return nil
}
