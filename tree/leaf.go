package tree

import (
	"encoding/hex"
	"strconv"

	"github.com/starsquare/classpy/reader"
)

// UInt is an unsigned integer leaf: fixed-width or ULEB128.
type UInt struct {
	Node
	read  func(*reader.Reader) (uint64, error)
	Value uint64
	hex   bool
}

func newUInt(name string, read func(*reader.Reader) (uint64, error)) *UInt {
	u := &UInt{read: read}
	u.name = name
	return u
}

// U1 returns a one-byte unsigned leaf.
func U1(name string) *UInt {
	return newUInt(name, func(r *reader.Reader) (uint64, error) {
		v, err := r.ReadU1()
		return uint64(v), err
	})
}

// U2 returns a two-byte unsigned leaf.
func U2(name string) *UInt {
	return newUInt(name, func(r *reader.Reader) (uint64, error) {
		v, err := r.ReadU2()
		return uint64(v), err
	})
}

// U4 returns a four-byte unsigned leaf.
func U4(name string) *UInt {
	return newUInt(name, func(r *reader.Reader) (uint64, error) {
		v, err := r.ReadU4()
		return uint64(v), err
	})
}

// U8 returns an eight-byte unsigned leaf.
func U8(name string) *UInt {
	return newUInt(name, func(r *reader.Reader) (uint64, error) {
		return r.ReadU8()
	})
}

// Uleb128 returns a ULEB128 leaf limited to 32 bits.
func Uleb128(name string) *UInt {
	return newUInt(name, func(r *reader.Reader) (uint64, error) {
		v, err := r.ReadVarU32()
		return uint64(v), err
	})
}

// Uleb128x64 returns a ULEB128 leaf limited to 64 bits.
func Uleb128x64(name string) *UInt {
	return newUInt(name, func(r *reader.Reader) (uint64, error) {
		return r.ReadVarU64()
	})
}

// Hex makes the leaf describe its value in hexadecimal.
func (u *UInt) Hex() *UInt {
	u.hex = true
	return u
}

// Int returns the value as an int.
func (u *UInt) Int() int {
	return int(u.Value)
}

func (u *UInt) ReadContent(r *reader.Reader) error {
	v, err := u.read(r)
	if err != nil {
		return err
	}
	u.Value = v
	if u.hex {
		u.desc = "0x" + strconv.FormatUint(v, 16)
	} else {
		u.desc = strconv.FormatUint(v, 10)
	}
	return nil
}

// SInt is a signed LEB128 leaf.
type SInt struct {
	Node
	read  func(*reader.Reader) (int64, error)
	Value int64
}

// Sleb128 returns a SLEB128 leaf limited to 32 bits.
func Sleb128(name string) *SInt {
	s := &SInt{read: func(r *reader.Reader) (int64, error) {
		v, err := r.ReadVarS32()
		return int64(v), err
	}}
	s.name = name
	return s
}

// Sleb128x64 returns a SLEB128 leaf limited to 64 bits.
func Sleb128x64(name string) *SInt {
	s := &SInt{read: func(r *reader.Reader) (int64, error) {
		return r.ReadVarS64()
	}}
	s.name = name
	return s
}

func (s *SInt) ReadContent(r *reader.Reader) error {
	v, err := s.read(r)
	if err != nil {
		return err
	}
	s.Value = v
	s.desc = strconv.FormatInt(v, 10)
	return nil
}

// rawPreview is how many bytes a Raw leaf shows in its description.
const rawPreview = 16

// Raw is an uninterpreted run of bytes.
type Raw struct {
	Node
	Data []byte
	n    int
}

// Bytes returns a leaf covering exactly n bytes.
func Bytes(name string, n int) *Raw {
	b := &Raw{n: n}
	b.name = name
	return b
}

func (b *Raw) ReadContent(r *reader.Reader) error {
	data, err := r.ReadBytes(b.n)
	if err != nil {
		return err
	}
	b.Data = data
	if len(data) <= rawPreview {
		b.desc = hex.EncodeToString(data)
	} else {
		b.desc = hex.EncodeToString(data[:rawPreview]) + "..."
	}
	return nil
}

// Group is a container with no fields of its own. Formats use it to gather
// related children under one name.
type Group struct {
	Node
	read func(g *Group, r *reader.Reader) error
}

// NewGroup returns a Group whose content is read by fn.
func NewGroup(name string, fn func(g *Group, r *reader.Reader) error) *Group {
	g := &Group{read: fn}
	g.name = name
	return g
}

func (g *Group) ReadContent(r *reader.Reader) error {
	return g.read(g, r)
}
