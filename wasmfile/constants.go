package wasmfile

import "fmt"

// WebAssembly binary format magic number and version.
const (
	// Magic is "\0asm" read as a little-endian u32.
	Magic uint32 = 0x6D736100

	// Version is the supported binary format version.
	Version uint32 = 0x01
)

// Section IDs.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

var sectionNames = [...]string{
	SectionCustom:    "custom",
	SectionType:      "type",
	SectionImport:    "import",
	SectionFunction:  "function",
	SectionTable:     "table",
	SectionMemory:    "memory",
	SectionGlobal:    "global",
	SectionExport:    "export",
	SectionStart:     "start",
	SectionElement:   "element",
	SectionCode:      "code",
	SectionData:      "data",
	SectionDataCount: "datacount",
	SectionTag:       "tag",
}

// SectionName returns the conventional name of a section ID.
func SectionName(id byte) string {
	if int(id) < len(sectionNames) {
		return sectionNames[id]
	}
	return fmt.Sprintf("section_%d", id)
}

// Import/export descriptor kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
	KindTag    byte = 4
)

var kindNames = [...]string{
	KindFunc:   "func",
	KindTable:  "table",
	KindMemory: "memory",
	KindGlobal: "global",
	KindTag:    "tag",
}

// KindName returns the text-format keyword of an import/export kind.
func KindName(k byte) string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind_%d", k)
}

// ValType is a value type encoding.
type ValType byte

const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValV128    ValType = 0x7B
	ValFuncRef ValType = 0x70
	ValExtern  ValType = 0x6F

	// Reference types followed by a heap type.
	ValRefNull ValType = 0x63
	ValRef     ValType = 0x64

	ValNullFuncRef   ValType = 0x73
	ValNullExternRef ValType = 0x72
	ValNullRef       ValType = 0x71
	ValAnyRef        ValType = 0x6E
	ValEqRef         ValType = 0x6D
	ValI31Ref        ValType = 0x6C
	ValStructRef     ValType = 0x6B
	ValArrayRef      ValType = 0x6A
	ValExnRef        ValType = 0x69
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	case ValAnyRef:
		return "anyref"
	case ValEqRef:
		return "eqref"
	case ValI31Ref:
		return "i31ref"
	case ValStructRef:
		return "structref"
	case ValArrayRef:
		return "arrayref"
	case ValExnRef:
		return "exnref"
	case ValNullRef:
		return "nullref"
	case ValNullExternRef:
		return "nullexternref"
	case ValNullFuncRef:
		return "nullfuncref"
	case ValRefNull:
		return "ref null"
	case ValRef:
		return "ref"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(v))
	}
}

// Type forms in the type section.
const (
	FormFunc byte = 0x60
)

// Limits flags.
const (
	LimitsHasMax   byte = 0x01
	LimitsShared   byte = 0x02
	LimitsMemory64 byte = 0x04
)

// Opcodes that may appear in constant expressions.
const (
	OpEnd       byte = 0x0B
	OpGlobalGet byte = 0x23
	OpI32Const  byte = 0x41
	OpI64Const  byte = 0x42
	OpF32Const  byte = 0x43
	OpF64Const  byte = 0x44
	OpI32Add    byte = 0x6A
	OpI32Sub    byte = 0x6B
	OpI32Mul    byte = 0x6C
	OpI32And    byte = 0x71
	OpI32Or     byte = 0x72
	OpI32Xor    byte = 0x73
	OpI64Add    byte = 0x7C
	OpI64Sub    byte = 0x7D
	OpI64Mul    byte = 0x7E
	OpI64And    byte = 0x83
	OpI64Or     byte = 0x84
	OpI64Xor    byte = 0x85
	OpRefNull   byte = 0xD0
	OpRefFunc   byte = 0xD2

	OpPrefixGC   byte = 0xFB
	OpPrefixSIMD byte = 0xFD
)

var constOpNames = map[byte]string{
	OpGlobalGet: "global.get",
	OpI32Const:  "i32.const",
	OpI64Const:  "i64.const",
	OpF32Const:  "f32.const",
	OpF64Const:  "f64.const",
	OpI32Add:    "i32.add",
	OpI32Sub:    "i32.sub",
	OpI32Mul:    "i32.mul",
	OpI32And:    "i32.and",
	OpI32Or:     "i32.or",
	OpI32Xor:    "i32.xor",
	OpI64Add:    "i64.add",
	OpI64Sub:    "i64.sub",
	OpI64Mul:    "i64.mul",
	OpI64And:    "i64.and",
	OpI64Or:     "i64.or",
	OpI64Xor:    "i64.xor",
	OpRefNull:   "ref.null",
	OpRefFunc:   "ref.func",
}

// Prefixed sub-opcodes valid in constant expressions.
const (
	SimdV128Const uint32 = 0x0C

	GCStructNew        uint32 = 0x00
	GCStructNewDefault uint32 = 0x01
	GCArrayNew         uint32 = 0x06
	GCArrayNewDefault  uint32 = 0x07
	GCArrayNewFixed    uint32 = 0x08
	GCArrayNewData     uint32 = 0x09
	GCArrayNewElem     uint32 = 0x0A
	GCAnyConvertExtern uint32 = 0x1A
	GCExternConvertAny uint32 = 0x1B
	GCRefI31           uint32 = 0x1C
)

// Name section subsection IDs.
const (
	NameModule   byte = 0
	NameFunction byte = 1
	NameLocal    byte = 2
)
