package wasmfile

import (
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// CustomBody is a custom section. The "name" section is decoded; any other
// custom section keeps its payload as raw bytes.
type CustomBody struct {
	Name        *Name
	Subsections []*NameSubsection
	Data        *tree.Raw
}

func (b *CustomBody) readBody(s *Section, r *reader.Reader) (err error) {
	if b.Name, err = tree.Add(s, r, newName("name")); err != nil {
		return err
	}
	s.Describe("custom %q", b.Name.Value)
	if b.Name.Value != "name" {
		b.Data, err = tree.Add(s, r, tree.Bytes("data", r.Remaining()))
		return err
	}
	for r.Remaining() > 0 {
		sub, err := tree.Add(s, r, &NameSubsection{})
		if err == nil || len(sub.Children()) > 0 {
			b.Subsections = append(b.Subsections, sub)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FunctionNames returns the function name map of a name section, or nil.
func (b *CustomBody) FunctionNames() *NameMap {
	for _, sub := range b.Subsections {
		if sub.Functions != nil {
			return sub.Functions
		}
	}
	return nil
}

// NameSubsection is one subsection of the name section.
type NameSubsection struct {
	tree.Node
	ID        *tree.UInt
	Size      *tree.UInt
	Module    *Name
	Functions *NameMap
	Locals    *IndirectNameMap
	Data      *tree.Raw
}

var subsectionNames = map[byte]string{
	NameModule:   "module_name",
	NameFunction: "function_names",
	NameLocal:    "local_names",
}

func (n *NameSubsection) ReadContent(r *reader.Reader) (err error) {
	n.SetName("subsection")
	if n.ID, err = tree.Add(n, r, tree.U1("id")); err != nil {
		return err
	}
	id := byte(n.ID.Value)
	if name, ok := subsectionNames[id]; ok {
		n.SetName(name)
		n.ID.SetDesc(name)
	}
	if n.Size, err = tree.Add(n, r, tree.Uleb128("size")); err != nil {
		return err
	}
	return readSized(r, n.Size.Int(), func(r *reader.Reader) (err error) {
		switch id {
		case NameModule:
			if n.Module, err = tree.Add(n, r, newName("name")); err == nil {
				n.SetDesc(n.Module.Desc())
			}
		case NameFunction:
			n.Functions, err = tree.Add(n, r, newNameMap("names"))
		case NameLocal:
			n.Locals, err = tree.Add(n, r, newIndirectNameMap("names"))
		default:
			n.Data, err = tree.Add(n, r, tree.Bytes("data", r.Remaining()))
		}
		return err
	})
}

// NameMap is a vector of (index, name) pairs.
type NameMap struct {
	tree.Node
	Count   *tree.UInt
	Entries *tree.List[*tree.Group]
	Names   map[uint32]string
}

func newNameMap(name string) *NameMap {
	m := &NameMap{}
	m.SetName(name)
	return m
}

func (m *NameMap) ReadContent(r *reader.Reader) (err error) {
	m.Names = map[uint32]string{}
	if m.Count, err = tree.Add(m, r, tree.Uleb128("count")); err != nil {
		return err
	}
	m.Entries, err = tree.AddList(m, r, "entries", m.Count.Int(), func() *tree.Group {
		return tree.NewGroup("", func(g *tree.Group, r *reader.Reader) error {
			idx, err := tree.Add(g, r, tree.Uleb128("index"))
			if err != nil {
				return err
			}
			name, err := tree.Add(g, r, newName("name"))
			if err != nil {
				return err
			}
			m.Names[uint32(idx.Value)] = name.Value
			g.Describe("%d %s", idx.Value, name.Value)
			return nil
		})
	})
	return err
}

// IndirectNameMap maps a function index to the name map of its locals.
type IndirectNameMap struct {
	tree.Node
	Count   *tree.UInt
	Entries *tree.List[*tree.Group]
	Names   map[uint32]*NameMap
}

func newIndirectNameMap(name string) *IndirectNameMap {
	m := &IndirectNameMap{}
	m.SetName(name)
	return m
}

func (m *IndirectNameMap) ReadContent(r *reader.Reader) (err error) {
	m.Names = map[uint32]*NameMap{}
	if m.Count, err = tree.Add(m, r, tree.Uleb128("count")); err != nil {
		return err
	}
	m.Entries, err = tree.AddList(m, r, "entries", m.Count.Int(), func() *tree.Group {
		return tree.NewGroup("", func(g *tree.Group, r *reader.Reader) error {
			idx, err := tree.Add(g, r, tree.Uleb128("index"))
			if err != nil {
				return err
			}
			inner, err := tree.Add(g, r, newNameMap("locals"))
			if err != nil {
				return err
			}
			m.Names[uint32(idx.Value)] = inner
			g.Describe("func %d, %d names", idx.Value, inner.Count.Value)
			return nil
		})
	})
	return err
}
