package wasmfile

import (
	"fmt"

	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Space is one of the module's index spaces.
type Space int

const (
	Types Space = iota
	Funcs
	Tables
	Memories
	Globals
	Tags

	spaceCount
)

var spaceNames = [...]string{
	Types:    "types",
	Funcs:    "functions",
	Tables:   "tables",
	Memories: "memories",
	Globals:  "globals",
	Tags:     "tags",
}

var spaceItems = [...]string{
	Types:    "type",
	Funcs:    "func",
	Tables:   "table",
	Memories: "memory",
	Globals:  "global",
	Tags:     "tag",
}

func (s Space) String() string {
	if s >= 0 && int(s) < len(spaceNames) {
		return spaceNames[s]
	}
	return fmt.Sprintf("Space(%d)", int(s))
}

// kindSpace maps an import/export kind to its index space.
func kindSpace(kind byte) Space {
	switch kind {
	case KindFunc:
		return Funcs
	case KindTable:
		return Tables
	case KindMemory:
		return Memories
	case KindGlobal:
		return Globals
	default:
		return Tags
	}
}

// Index is a ULEB128 index into one of the index spaces. It describes
// itself with the entry it names once the module is resolved.
type Index struct {
	tree.Node
	Space Space
	Value uint32
}

func newIndex(name string, s Space) *Index {
	x := &Index{Space: s}
	x.SetName(name)
	return x
}

func (x *Index) ReadContent(r *reader.Reader) error {
	v, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	x.Value = v
	x.Describe("#%d", v)
	return nil
}

func (x *Index) PostRead(f *File) error {
	text, err := f.Lookup(x.Space, x.Value)
	if err != nil {
		return err
	}
	x.Describe("#%d -> %s", x.Value, text)
	return nil
}
