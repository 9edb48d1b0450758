package dexfile

import (
	"fmt"

	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// NoIndex marks an absent optional index.
const NoIndex = 0xffffffff

// Table names one of the id tables an index can point into.
type Table int

const (
	Strings Table = iota
	Types
	Protos
	Fields
	Methods
)

var tableNames = [...]string{
	Strings: "string_ids",
	Types:   "type_ids",
	Protos:  "proto_ids",
	Fields:  "field_ids",
	Methods: "method_ids",
}

func (t Table) String() string {
	if int(t) < len(tableNames) {
		return tableNames[t]
	}
	return fmt.Sprintf("Table(%d)", int(t))
}

type uint32Reader func(r *reader.Reader) (uint32, error)

func readU2(r *reader.Reader) (uint32, error) {
	v, err := r.ReadU2()
	return uint32(v), err
}

func readU4(r *reader.Reader) (uint32, error) {
	return r.ReadU4()
}

func readUleb(r *reader.Reader) (uint32, error) {
	return r.ReadVarU32()
}

// Ref is an index into one of the id tables. It describes itself with the
// referenced entry once the file is resolved.
type Ref struct {
	tree.Node
	Table    Table
	Value    uint32
	read     uint32Reader
	optional bool
}

func newRef(name string, t Table, read uint32Reader) *Ref {
	x := &Ref{Table: t, read: read}
	x.SetName(name)
	return x
}

// Optional lets the index hold NoIndex.
func (x *Ref) Optional() *Ref {
	x.optional = true
	return x
}

// IsNone reports whether an optional index holds NoIndex.
func (x *Ref) IsNone() bool {
	return x.optional && x.Value == NoIndex
}

func (x *Ref) ReadContent(r *reader.Reader) error {
	v, err := x.read(r)
	if err != nil {
		return err
	}
	x.Value = v
	if x.IsNone() {
		x.SetDesc("NO_INDEX")
	} else {
		x.Describe("#%d", v)
	}
	return nil
}

func (x *Ref) PostRead(f *File) error {
	if x.IsNone() {
		return nil
	}
	text, err := f.Lookup(x.Table, x.Value)
	if err != nil {
		return err
	}
	x.Describe("#%d -> %s", x.Value, text)
	return nil
}

// Flags is an access_flags value, stored as u4 in class_def_item and as
// ULEB128 in class data.
type Flags struct {
	tree.Node
	Value uint32
	kind  FlagKind
	read  uint32Reader
}

func newFlags(name string, kind FlagKind, read uint32Reader) *Flags {
	f := &Flags{kind: kind, read: read}
	f.SetName(name)
	return f
}

func (f *Flags) ReadContent(r *reader.Reader) error {
	v, err := f.read(r)
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

// offset adds a u4 offset field described in hex.
func offset(name string) *tree.UInt {
	return tree.U4(name).Hex()
}
