package wasmfile

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

// Name is a length-prefixed UTF-8 string. The length and the bytes form a
// single leaf.
type Name struct {
	tree.Node
	Value string
}

func newName(name string) *Name {
	n := &Name{}
	n.SetName(name)
	return n
}

func (n *Name) ReadContent(r *reader.Reader) error {
	size, err := r.ReadVarU32()
	if err != nil {
		return err
	}
	b, err := r.ReadBytes(int(size))
	if err != nil {
		return err
	}
	if !utf8.Valid(b) {
		return errors.InvalidData(errors.PhaseRead, r.Position()-len(b), "name is not valid UTF-8")
	}
	n.Value = string(b)
	n.SetDesc(strconv.Quote(n.Value))
	return nil
}

// ValueType is a value type byte, followed by a heap type for the
// (ref null ht) and (ref ht) forms.
type ValueType struct {
	tree.Node
	Type     ValType
	HeapType int64
}

func newValueType(name string) *ValueType {
	v := &ValueType{}
	v.SetName(name)
	return v
}

func (v *ValueType) ReadContent(r *reader.Reader) error {
	b, err := r.ReadU1()
	if err != nil {
		return err
	}
	v.Type = ValType(b)
	if v.Type == ValRefNull || v.Type == ValRef {
		if v.HeapType, err = r.ReadVarS64(); err != nil {
			return err
		}
	}
	v.SetDesc(v.String())
	return nil
}

func (v *ValueType) String() string {
	switch v.Type {
	case ValRefNull:
		return "(ref null " + heapTypeName(v.HeapType) + ")"
	case ValRef:
		return "(ref " + heapTypeName(v.HeapType) + ")"
	}
	return v.Type.String()
}

// heapTypeName renders an s33 heap type: abstract types are negative, type
// indices are not.
func heapTypeName(ht int64) string {
	if ht >= 0 {
		return strconv.FormatInt(ht, 10)
	}
	switch ValType(byte(ht) & 0x7f) {
	case ValFuncRef:
		return "func"
	case ValExtern:
		return "extern"
	case ValAnyRef:
		return "any"
	case ValEqRef:
		return "eq"
	case ValI31Ref:
		return "i31"
	case ValStructRef:
		return "struct"
	case ValArrayRef:
		return "array"
	case ValExnRef:
		return "exn"
	case ValNullFuncRef:
		return "nofunc"
	case ValNullExternRef:
		return "noextern"
	case ValNullRef:
		return "none"
	}
	return strconv.FormatInt(ht, 10)
}

// FuncType is a function signature from the type section.
type FuncType struct {
	tree.Node
	Form        *tree.UInt
	ParamCount  *tree.UInt
	Params      *tree.List[*ValueType]
	ResultCount *tree.UInt
	Results     *tree.List[*ValueType]
}

// ParamTypes returns the parameter value types.
func (t *FuncType) ParamTypes() []ValType {
	return valTypes(t.Params)
}

// ResultTypes returns the result value types.
func (t *FuncType) ResultTypes() []ValType {
	return valTypes(t.Results)
}

func valTypes(l *tree.List[*ValueType]) []ValType {
	if l == nil {
		return nil
	}
	out := make([]ValType, len(l.Items))
	for i, v := range l.Items {
		out[i] = v.Type
	}
	return out
}

func (t *FuncType) ReadContent(r *reader.Reader) (err error) {
	if t.Form, err = tree.Add(t, r, tree.U1("form").Hex()); err != nil {
		return err
	}
	if byte(t.Form.Value) != FormFunc {
		return errors.Unsupported(errors.PhaseRead, t.Form.Offset(), fmt.Sprintf("type form 0x%02x", t.Form.Value))
	}
	t.Form.SetDesc("func")
	if t.ParamCount, err = tree.Add(t, r, tree.Uleb128("param_count")); err != nil {
		return err
	}
	if t.Params, err = tree.AddList(t, r, "params", t.ParamCount.Int(), func() *ValueType {
		return &ValueType{}
	}); err != nil {
		return err
	}
	if t.ResultCount, err = tree.Add(t, r, tree.Uleb128("result_count")); err != nil {
		return err
	}
	if t.Results, err = tree.AddList(t, r, "results", t.ResultCount.Int(), func() *ValueType {
		return &ValueType{}
	}); err != nil {
		return err
	}
	t.SetDesc(t.Signature())
	return nil
}

// Signature renders the type as "(i32, i32) -> (i64)".
func (t *FuncType) Signature() string {
	return "(" + joinTypes(t.Params) + ") -> (" + joinTypes(t.Results) + ")"
}

func joinTypes(l *tree.List[*ValueType]) string {
	if l == nil {
		return ""
	}
	s := make([]string, len(l.Items))
	for i, v := range l.Items {
		s[i] = v.String()
	}
	return strings.Join(s, ", ")
}

// Limits is the min/max pair of a memory or table type.
type Limits struct {
	tree.Node
	Flags *tree.UInt
	Min   *tree.UInt
	Max   *tree.UInt
}

func newLimits() *Limits {
	l := &Limits{}
	l.SetName("limits")
	return l
}

func (l *Limits) ReadContent(r *reader.Reader) (err error) {
	if l.Flags, err = tree.Add(l, r, tree.U1("flags").Hex()); err != nil {
		return err
	}
	flags := byte(l.Flags.Value)
	if flags&^(LimitsHasMax|LimitsShared|LimitsMemory64) != 0 {
		return errors.InvalidData(errors.PhaseRead, l.Flags.Offset(), fmt.Sprintf("limits flags 0x%02x", flags))
	}
	leb := tree.Uleb128
	if flags&LimitsMemory64 != 0 {
		leb = tree.Uleb128x64
	}
	if l.Min, err = tree.Add(l, r, leb("min")); err != nil {
		return err
	}
	desc := "min " + l.Min.Desc()
	if flags&LimitsHasMax != 0 {
		if l.Max, err = tree.Add(l, r, leb("max")); err != nil {
			return err
		}
		desc += " max " + l.Max.Desc()
	}
	if flags&LimitsShared != 0 {
		desc += " shared"
	}
	if flags&LimitsMemory64 != 0 {
		desc += " i64"
	}
	l.SetDesc(desc)
	return nil
}

// TableType is a table's element type and limits. The 0x40 0x00 prefixed
// form also carries an initializer expression.
type TableType struct {
	tree.Node
	Prefix   *tree.Raw
	ElemType *ValueType
	Limits   *Limits
	Init     *ConstExpr
}

func (t *TableType) ReadContent(r *reader.Reader) (err error) {
	first, err := r.PeekU1()
	if err != nil {
		return err
	}
	if first == 0x40 {
		if t.Prefix, err = tree.Add(t, r, tree.Bytes("prefix", 2)); err != nil {
			return err
		}
		if t.Prefix.Data[1] != 0x00 {
			return errors.InvalidData(errors.PhaseRead, t.Prefix.Offset()+1,
				fmt.Sprintf("expected 0x00 after 0x40, got 0x%02x", t.Prefix.Data[1]))
		}
	}
	if t.ElemType, err = tree.Add(t, r, newValueType("elem_type")); err != nil {
		return err
	}
	if t.Limits, err = tree.Add(t, r, newLimits()); err != nil {
		return err
	}
	if t.Prefix != nil {
		if t.Init, err = tree.Add(t, r, newConstExpr("init")); err != nil {
			return err
		}
	}
	t.SetDesc(t.ElemType.String() + " " + t.Limits.Desc())
	return nil
}

// GlobalType is a global's value type and mutability.
type GlobalType struct {
	tree.Node
	Type *ValueType
	Mut  *tree.UInt
}

func newGlobalType() *GlobalType {
	g := &GlobalType{}
	g.SetName("type")
	return g
}

func (g *GlobalType) ReadContent(r *reader.Reader) (err error) {
	if g.Type, err = tree.Add(g, r, newValueType("valtype")); err != nil {
		return err
	}
	if g.Mut, err = tree.Add(g, r, tree.U1("mut")); err != nil {
		return err
	}
	switch g.Mut.Value {
	case 0:
		g.SetDesc(g.Type.String())
	case 1:
		g.SetDesc("mut " + g.Type.String())
	default:
		return errors.InvalidData(errors.PhaseRead, g.Mut.Offset(), fmt.Sprintf("mutability %d", g.Mut.Value))
	}
	return nil
}

// ConstExpr is a constant expression scanned up to and including its end
// opcode. It is kept as raw bytes with a text rendering as description.
type ConstExpr struct {
	tree.Node
	Data   []byte
	Instrs []string
}

func newConstExpr(name string) *ConstExpr {
	e := &ConstExpr{}
	e.SetName(name)
	return e
}

func (e *ConstExpr) ReadContent(r *reader.Reader) error {
	start := r.Position()
	for {
		at := r.Position()
		op, err := r.ReadU1()
		if err != nil {
			return err
		}
		if op == OpEnd {
			break
		}
		text, err := scanImmediate(r, op)
		if err != nil {
			return err
		}
		if text == "" {
			return errors.Unsupported(errors.PhaseRead, at, fmt.Sprintf("opcode 0x%02x in constant expression", op))
		}
		e.Instrs = append(e.Instrs, text)
	}
	e.Data = r.Bytes()[start:r.Position()]
	if len(e.Instrs) == 0 {
		e.SetDesc("(empty)")
	} else {
		e.SetDesc(strings.Join(e.Instrs, "; "))
	}
	return nil
}

// scanImmediate consumes the immediates of a constant-expression opcode and
// returns the instruction text, or "" for an opcode that cannot appear in
// one.
func scanImmediate(r *reader.Reader, op byte) (string, error) {
	name := constOpNames[op]
	switch op {
	case OpI32Const:
		v, err := r.ReadVarS32()
		return name + " " + strconv.FormatInt(int64(v), 10), err
	case OpI64Const:
		v, err := r.ReadVarS64()
		return name + " " + strconv.FormatInt(v, 10), err
	case OpF32Const:
		v, err := r.ReadU4()
		return name + " " + strconv.FormatFloat(float64(math.Float32frombits(v)), 'g', -1, 32), err
	case OpF64Const:
		v, err := r.ReadU8()
		return name + " " + strconv.FormatFloat(math.Float64frombits(v), 'g', -1, 64), err
	case OpGlobalGet, OpRefFunc:
		v, err := r.ReadVarU32()
		return name + " " + strconv.FormatUint(uint64(v), 10), err
	case OpRefNull:
		ht, err := r.ReadVarS64()
		return name + " " + heapTypeName(ht), err
	case OpI32Add, OpI32Sub, OpI32Mul, OpI32And, OpI32Or, OpI32Xor,
		OpI64Add, OpI64Sub, OpI64Mul, OpI64And, OpI64Or, OpI64Xor:
		return name, nil
	case OpPrefixSIMD:
		sub, err := r.ReadVarU32()
		if err != nil {
			return "", err
		}
		if sub != SimdV128Const {
			return "", nil
		}
		b, err := r.ReadBytes(16)
		return "v128.const 0x" + hex.EncodeToString(b), err
	case OpPrefixGC:
		return scanGCImmediate(r)
	}
	return "", nil
}

func scanGCImmediate(r *reader.Reader) (string, error) {
	sub, err := r.ReadVarU32()
	if err != nil {
		return "", err
	}
	var (
		name string
		args int
	)
	switch sub {
	case GCStructNew:
		name, args = "struct.new", 1
	case GCStructNewDefault:
		name, args = "struct.new_default", 1
	case GCArrayNew:
		name, args = "array.new", 1
	case GCArrayNewDefault:
		name, args = "array.new_default", 1
	case GCArrayNewFixed:
		name, args = "array.new_fixed", 2
	case GCArrayNewData:
		name, args = "array.new_data", 2
	case GCArrayNewElem:
		name, args = "array.new_elem", 2
	case GCAnyConvertExtern:
		name = "any.convert_extern"
	case GCExternConvertAny:
		name = "extern.convert_any"
	case GCRefI31:
		name = "ref.i31"
	default:
		return "", nil
	}
	for i := 0; i < args; i++ {
		v, err := r.ReadVarU32()
		if err != nil {
			return "", err
		}
		name += " " + strconv.FormatUint(uint64(v), 10)
	}
	return name, nil
}
