package dexfile

import (
	"strings"
)

// JavaName converts a type descriptor to its Java source form:
// "[Ljava/lang/Object;" becomes "java.lang.Object[]" and "I" becomes "int".
// Descriptors it does not understand are returned unchanged.
func JavaName(d string) string {
	dims := 0
	for dims < len(d) && d[dims] == '[' {
		dims++
	}
	if dims == len(d) {
		return d
	}

	var base string
	switch c := d[dims]; c {
	case 'L':
		if !strings.HasSuffix(d, ";") {
			return d
		}
		base = strings.ReplaceAll(d[dims+1:len(d)-1], "/", ".")
	case 'B':
		base = "byte"
	case 'C':
		base = "char"
	case 'D':
		base = "double"
	case 'F':
		base = "float"
	case 'I':
		base = "int"
	case 'J':
		base = "long"
	case 'S':
		base = "short"
	case 'Z':
		base = "boolean"
	case 'V':
		base = "void"
	default:
		return d
	}
	if c := d[dims]; c != 'L' && dims+1 != len(d) {
		return d
	}
	return base + strings.Repeat("[]", dims)
}

// FlagKind selects the flag names used for an access_flags value. A few
// bits mean different things on fields and methods.
type FlagKind int

const (
	ClassFlags FlagKind = iota
	FieldFlags
	MethodFlags
)

type flagName struct {
	bit  uint32
	name string
}

var flagNames = map[FlagKind][]flagName{
	ClassFlags: {
		{0x1, "public"}, {0x2, "private"}, {0x4, "protected"}, {0x8, "static"},
		{0x10, "final"}, {0x200, "interface"}, {0x400, "abstract"},
		{0x1000, "synthetic"}, {0x2000, "annotation"}, {0x4000, "enum"},
	},
	FieldFlags: {
		{0x1, "public"}, {0x2, "private"}, {0x4, "protected"}, {0x8, "static"},
		{0x10, "final"}, {0x40, "volatile"}, {0x80, "transient"},
		{0x1000, "synthetic"}, {0x4000, "enum"},
	},
	MethodFlags: {
		{0x1, "public"}, {0x2, "private"}, {0x4, "protected"}, {0x8, "static"},
		{0x10, "final"}, {0x20, "synchronized"}, {0x40, "bridge"}, {0x80, "varargs"},
		{0x100, "native"}, {0x400, "abstract"}, {0x800, "strict"},
		{0x1000, "synthetic"}, {0x10000, "constructor"}, {0x20000, "declared-synchronized"},
	},
}

// FlagString renders v as space-separated flag names.
func FlagString(kind FlagKind, v uint32) string {
	var names []string
	for _, f := range flagNames[kind] {
		if v&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, " ")
}
