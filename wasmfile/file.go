package wasmfile

import (
	"encoding/binary"
	"fmt"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// File is the root of a decoded WebAssembly module.
type File struct {
	tree.Node

	Magic    *tree.UInt
	Version  *tree.UInt
	Sections []*Section

	// Index tables, filled in by BuildIndex.
	types         []*FuncType
	funcTypes     []uint32
	importedFuncs int
	counts        [spaceCount]int
	funcNames     map[uint32]string
	exportNames   map[uint32]string
}

// New returns an unread module root.
func New() *File {
	f := &File{}
	f.SetName("WasmModule")
	return f
}

// Parse decodes data as a WebAssembly module. On failure the partially
// decoded module is returned with the error.
func Parse(data []byte) (*File, error) {
	return tree.Parse(New(), data, binary.LittleEndian)
}

func (f *File) ReadContent(r *reader.Reader) (err error) {
	if f.Magic, err = tree.Add(f, r, tree.U4("magic").Hex()); err != nil {
		return err
	}
	if uint32(f.Magic.Value) != Magic {
		return errors.InvalidData(errors.PhaseRead, f.Magic.Offset(),
			fmt.Sprintf("magic %#08x is not \\0asm", f.Magic.Value))
	}
	f.Magic.SetDesc(`"\0asm"`)
	if f.Version, err = tree.Add(f, r, tree.U4("version")); err != nil {
		return err
	}
	if uint32(f.Version.Value) != Version {
		return errors.Unsupported(errors.PhaseRead, f.Version.Offset(), fmt.Sprintf("version %d", f.Version.Value))
	}

	for r.Remaining() > 0 {
		s, err := tree.Add(f, r, newSection())
		if err == nil || len(s.Children()) > 0 {
			f.Sections = append(f.Sections, s)
		}
		if err != nil {
			return err
		}
	}
	f.Describe("%d sections", len(f.Sections))
	return nil
}

// BuildIndex assembles the module's index spaces from its sections.
// Imported functions come first in the function index space, followed by
// the functions of the function section.
func (f *File) BuildIndex() error {
	f.types = nil
	f.funcTypes = nil
	f.importedFuncs = 0
	f.counts = [spaceCount]int{}
	f.funcNames = map[uint32]string{}
	f.exportNames = map[uint32]string{}

	for _, s := range f.Sections {
		switch b := s.Body.(type) {
		case *TypeBody:
			f.types = append(f.types, b.Types...)
		case *ImportBody:
			for _, imp := range b.Imports {
				switch imp.KindByte() {
				case KindFunc:
					f.funcTypes = append(f.funcTypes, imp.Type.Value)
					f.importedFuncs++
				case KindTable:
					f.counts[Tables]++
				case KindMemory:
					f.counts[Memories]++
				case KindGlobal:
					f.counts[Globals]++
				case KindTag:
					f.counts[Tags]++
				}
			}
		case *FunctionBody:
			for _, t := range b.Types {
				f.funcTypes = append(f.funcTypes, t.Value)
			}
		case *TableBody:
			f.counts[Tables] += len(b.Tables)
		case *MemoryBody:
			f.counts[Memories] += len(b.Memories)
		case *GlobalBody:
			f.counts[Globals] += len(b.Globals)
		case *TagBody:
			f.counts[Tags] += len(b.Tags)
		case *ExportBody:
			for _, e := range b.Exports {
				if e.KindByte() != KindFunc {
					continue
				}
				if _, ok := f.exportNames[e.Index.Value]; !ok {
					f.exportNames[e.Index.Value] = e.Field.Value
				}
			}
		case *CustomBody:
			if fn := b.FunctionNames(); fn != nil {
				for idx, name := range fn.Names {
					f.funcNames[idx] = name
				}
			}
		}
	}
	f.counts[Types] = len(f.types)
	f.counts[Funcs] = len(f.funcTypes)
	return nil
}

// Count returns the size of an index space.
func (f *File) Count(s Space) int {
	return f.counts[s]
}

// ImportedFuncs returns how many functions the module imports.
func (f *File) ImportedFuncs() int {
	return f.importedFuncs
}

// TypeSignature returns the signature of type i.
func (f *File) TypeSignature(i uint32) (string, error) {
	if uint64(i) >= uint64(len(f.types)) {
		return "", errors.BrokenReference(Types.String(), int(i), len(f.types))
	}
	return f.types[i].Signature(), nil
}

// FuncName returns the display name of function i: its name-section entry,
// else its first export name, else func[i].
func (f *File) FuncName(i uint32) (string, error) {
	if uint64(i) >= uint64(len(f.funcTypes)) {
		return "", errors.BrokenReference(Funcs.String(), int(i), len(f.funcTypes))
	}
	if name, ok := f.funcNames[i]; ok {
		return name, nil
	}
	if name, ok := f.exportNames[i]; ok {
		return name, nil
	}
	return fmt.Sprintf("func[%d]", i), nil
}

// FuncType returns the type of function i.
func (f *File) FuncType(i uint32) (*FuncType, error) {
	if uint64(i) >= uint64(len(f.funcTypes)) {
		return nil, errors.BrokenReference(Funcs.String(), int(i), len(f.funcTypes))
	}
	t := f.funcTypes[i]
	if uint64(t) >= uint64(len(f.types)) {
		return nil, errors.BrokenReference(Types.String(), int(t), len(f.types))
	}
	return f.types[t], nil
}

// FuncSignature returns the signature of function i.
func (f *File) FuncSignature(i uint32) (string, error) {
	if uint64(i) >= uint64(len(f.funcTypes)) {
		return "", errors.BrokenReference(Funcs.String(), int(i), len(f.funcTypes))
	}
	return f.TypeSignature(f.funcTypes[i])
}

// Lookup returns the display text of entry i of an index space.
func (f *File) Lookup(s Space, i uint32) (string, error) {
	switch s {
	case Types:
		return f.TypeSignature(i)
	case Funcs:
		name, err := f.FuncName(i)
		if err != nil {
			return "", err
		}
		sig, err := f.FuncSignature(i)
		if err != nil {
			return "", err
		}
		return name + " " + sig, nil
	case Tables, Memories, Globals, Tags:
		if n := f.counts[s]; uint64(i) >= uint64(n) {
			return "", errors.BrokenReference(s.String(), int(i), n)
		}
		return fmt.Sprintf("%s[%d]", spaceItems[s], i), nil
	}
	return "", errors.InvalidInput(errors.PhaseResolve, "unknown index space "+s.String())
}

// Imports returns the entries of the import section.
func (f *File) Imports() []*Import {
	var out []*Import
	for _, s := range f.Sections {
		if b, ok := s.Body.(*ImportBody); ok {
			out = append(out, b.Imports...)
		}
	}
	return out
}

// Exports returns the entries of the export section.
func (f *File) Exports() []*Export {
	var out []*Export
	for _, s := range f.Sections {
		if b, ok := s.Body.(*ExportBody); ok {
			out = append(out, b.Exports...)
		}
	}
	return out
}

// Section returns the first section with the given ID, or nil.
func (f *File) Section(id byte) *Section {
	for _, s := range f.Sections {
		if s.ID != nil && byte(s.ID.Value) == id {
			return s
		}
	}
	return nil
}
