package classfile_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/cryptobyte"

	"github.com/starsquare/classpy/classfile"
	cperrors "github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/tree"
)

var initCode = []byte{0x2a, 0xb7, 0x00, 0x01, 0xb1}

func utf8(b *cryptobyte.Builder, s string) {
	b.AddUint8(1)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(s))
	})
}

func ref(b *cryptobyte.Builder, tag uint8, idx ...uint16) {
	b.AddUint8(tag)
	for _, i := range idx {
		b.AddUint16(i)
	}
}

func attr(b *cryptobyte.Builder, name uint16, body func(b *cryptobyte.Builder)) {
	b.AddUint16(name)
	b.AddUint32LengthPrefixed(body)
}

// classOptions tweaks the fixture so tests can break one thing at a time.
type classOptions struct {
	magic          uint32
	thisClass      uint16
	sourceFileBody []byte
	extraConstant  func(b *cryptobyte.Builder)
	// lineCount overrides line_number_table_length without adding entries.
	lineCount uint16
}

// buildClass assembles:
//
//	public class Hello {
//	    static final long count = 1L << 40;
//	    public Hello() { super(); }
//	}
func buildClass(opts classOptions) []byte {
	if opts.magic == 0 {
		opts.magic = classfile.Magic
	}
	if opts.thisClass == 0 {
		opts.thisClass = 7
	}
	if opts.sourceFileBody == nil {
		opts.sourceFileBody = []byte{0x00, 0x10}
	}
	if opts.lineCount == 0 {
		opts.lineCount = 1
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddUint32(opts.magic)
	b.AddUint16(0)
	b.AddUint16(52)

	count := uint16(20)
	if opts.extraConstant != nil {
		count++
	}
	b.AddUint16(count)
	ref(b, 10, 2, 3) // #1 Methodref
	ref(b, 7, 4)     // #2 Class
	ref(b, 12, 5, 6) // #3 NameAndType
	utf8(b, "java/lang/Object")
	utf8(b, "<init>")
	utf8(b, "()V")
	ref(b, 7, 8) // #7 Class
	utf8(b, "Hello")
	utf8(b, "Code")
	b.AddUint8(5) // #10 Long, takes #11 too
	b.AddUint64(1 << 40)
	utf8(b, "count") // #12
	utf8(b, "J")
	utf8(b, "ConstantValue")
	utf8(b, "SourceFile")
	utf8(b, "Hello.java")
	utf8(b, "LineNumberTable")
	ref(b, 8, 16) // #18 String
	utf8(b, "Custom")
	if opts.extraConstant != nil {
		opts.extraConstant(b) // #20
	}

	b.AddUint16(0x0021)
	b.AddUint16(opts.thisClass)
	b.AddUint16(2)
	b.AddUint16(0) // interfaces

	b.AddUint16(1)
	b.AddUint16(0x0018)
	b.AddUint16(12)
	b.AddUint16(13)
	b.AddUint16(1)
	attr(b, 14, func(b *cryptobyte.Builder) { b.AddUint16(10) })

	b.AddUint16(1)
	b.AddUint16(0x0001)
	b.AddUint16(5)
	b.AddUint16(6)
	b.AddUint16(1)
	attr(b, 9, func(b *cryptobyte.Builder) {
		b.AddUint16(1) // max_stack
		b.AddUint16(1) // max_locals
		b.AddUint32LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(initCode) })
		b.AddUint16(0) // exception_table_length
		b.AddUint16(1)
		attr(b, 17, func(b *cryptobyte.Builder) {
			b.AddUint16(opts.lineCount)
			b.AddUint16(0)
			b.AddUint16(1)
		})
	})

	b.AddUint16(2)
	attr(b, 15, func(b *cryptobyte.Builder) { b.AddBytes(opts.sourceFileBody) })
	attr(b, 19, func(b *cryptobyte.Builder) { b.AddBytes([]byte{1, 2, 3}) })
	return b.BytesOrPanic()
}

func TestParseClass(t *testing.T) {
	data := buildClass(classOptions{})
	f, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if f.Length() != len(data) {
		t.Errorf("root length: got %d, want %d", f.Length(), len(data))
	}
	if f.ClassName() != "Hello" || f.Desc() != "Hello" {
		t.Errorf("class name: %q, desc %q", f.ClassName(), f.Desc())
	}
	if got := f.MajorVersion.Desc(); got != "52 (Java 8)" {
		t.Errorf("major version desc: %q", got)
	}
	if got := f.AccessFlags.Desc(); got != "0x0021 public super" {
		t.Errorf("access flags: %q", got)
	}
	if got := f.SuperClass.Desc(); got != "#2 -> java/lang/Object" {
		t.Errorf("super_class: %q", got)
	}
	if n := len(f.Children()); n != 16 {
		t.Errorf("root children: got %d, want 16", n)
	}
	assertContiguous(t, f)
}

func TestConstantPool(t *testing.T) {
	f, err := classfile.Parse(buildClass(classOptions{}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cp := f.ConstantPool

	tests := []struct {
		index int
		desc  string
	}{
		{1, "Methodref: java/lang/Object.<init>:()V"},
		{2, "Class: java/lang/Object"},
		{3, "NameAndType: <init>:()V"},
		{4, "Utf8: java/lang/Object"},
		{10, "Long: 1099511627776"},
		{12, "Utf8: count"},
		{18, "String: Hello.java"},
	}
	for _, tt := range tests {
		c, err := cp.Get(tt.index)
		if err != nil {
			t.Errorf("#%d: %v", tt.index, err)
			continue
		}
		if c.Desc() != tt.desc {
			t.Errorf("#%d: got %q, want %q", tt.index, c.Desc(), tt.desc)
		}
	}

	// 19 entries occupy 20 slots: the Long's second slot is not an entry.
	if n := len(cp.Children()); n != 18 {
		t.Errorf("pool entries: got %d, want 18", n)
	}
	if _, err := cp.Get(11); !errors.Is(err, &cperrors.Error{Phase: cperrors.PhaseResolve, Kind: cperrors.KindBrokenReference}) {
		t.Errorf("slot after Long: expected broken_reference, got %v", err)
	}
	if _, err := cp.Get(0); err == nil {
		t.Error("index 0 should not resolve")
	}
	if c, _ := cp.Get(12); c.Name() != "#12" {
		t.Errorf("entry after Long is named %q", c.Name())
	}
}

func TestMembersAndAttributes(t *testing.T) {
	f, err := classfile.Parse(buildClass(classOptions{}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	field := f.Fields.Items[0]
	if field.Desc() != "count J" {
		t.Errorf("field desc: %q", field.Desc())
	}
	if got := field.AccessFlags.Desc(); got != "0x0018 static final" {
		t.Errorf("field flags: %q", got)
	}
	cv := field.Attribute("ConstantValue")
	if cv == nil {
		t.Fatal("ConstantValue attribute missing")
	}
	if got := tree.Find(cv, "constantvalue_index").Desc(); got != "#10 -> 1099511627776" {
		t.Errorf("constantvalue_index: %q", got)
	}

	m := f.Methods.Items[0]
	if m.Desc() != "<init>()V" {
		t.Errorf("method desc: %q", m.Desc())
	}
	code := m.Attribute("Code")
	if code == nil {
		t.Fatal("Code attribute missing")
	}
	if !bytes.Equal(code.Code.Data, initCode) {
		t.Errorf("code bytes: %x", code.Code.Data)
	}
	lnt := code.Attribute("LineNumberTable")
	if lnt == nil {
		t.Fatal("nested LineNumberTable missing")
	}
	if line := tree.FindPath(lnt, "line_number_table", "[0]", "line_number"); line == nil || line.Desc() != "1" {
		t.Errorf("line number entry: %v", line)
	}

	if got := tree.Find(f.Attribute("SourceFile"), "sourcefile_index").Desc(); got != "#16 -> Hello.java" {
		t.Errorf("sourcefile_index: %q", got)
	}
	custom := f.Attribute("Custom")
	if custom == nil || !bytes.Equal(custom.Info.Data, []byte{1, 2, 3}) {
		t.Errorf("unknown attribute should be kept raw: %+v", custom)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		phase cperrors.Phase
		kind  cperrors.Kind
	}{
		{
			name:  "bad magic",
			data:  buildClass(classOptions{magic: 0xdeadbeef}),
			phase: cperrors.PhaseRead,
			kind:  cperrors.KindInvalidData,
		},
		{
			name:  "attribute length mismatch",
			data:  buildClass(classOptions{sourceFileBody: []byte{0x00, 0x10, 0x00}}),
			phase: cperrors.PhaseRead,
			kind:  cperrors.KindInvalidData,
		},
		{
			name: "unknown constant tag",
			data: buildClass(classOptions{extraConstant: func(b *cryptobyte.Builder) {
				b.AddUint8(2)
			}}),
			phase: cperrors.PhaseRead,
			kind:  cperrors.KindUnsupported,
		},
		{
			name:  "this_class out of range",
			data:  buildClass(classOptions{thisClass: 99}),
			phase: cperrors.PhaseResolve,
			kind:  cperrors.KindBrokenReference,
		},
		{
			name: "reference cycle",
			data: buildClass(classOptions{thisClass: 20, extraConstant: func(b *cryptobyte.Builder) {
				ref(b, 7, 20)
			}}),
			phase: cperrors.PhaseResolve,
			kind:  cperrors.KindInvalidData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := classfile.Parse(tt.data)
			if !errors.Is(err, &cperrors.Error{Phase: tt.phase, Kind: tt.kind}) {
				t.Fatalf("expected %s %s, got %v", tt.phase, tt.kind, err)
			}
			if len(f.Children()) == 0 {
				t.Error("failed parse should keep a partial tree")
			}
		})
	}
}

func TestAttributeBodyStaysInsideLength(t *testing.T) {
	// line_number_table_length says 3 but attribute_length only covers one
	// entry; the body must not read the bytes that follow the attribute.
	_, err := classfile.Parse(buildClass(classOptions{lineCount: 3}))
	e, ok := cperrors.As(err)
	if !ok || e.Kind != cperrors.KindOutOfData || e.Phase != cperrors.PhaseRead {
		t.Fatalf("expected read out_of_data, got %v", err)
	}
	if !strings.Contains(e.Detail, "0 remaining") {
		t.Errorf("read was not limited to the attribute: %s", e.Detail)
	}
	if !strings.Contains(err.Error(), "line_number_table") {
		t.Errorf("error does not name the table: %v", err)
	}
}

func TestResolveFailureKeepsTree(t *testing.T) {
	data := buildClass(classOptions{thisClass: 99})
	f, err := classfile.Parse(data)
	if err == nil {
		t.Fatal("expected resolution error")
	}
	if !tree.Complete(f) || f.Length() != len(data) {
		t.Error("resolution errors must not affect the read tree")
	}
	if f.ThisClass.Desc() != "#99" {
		t.Errorf("unresolved index should keep its raw desc, got %q", f.ThisClass.Desc())
	}
	if f.Methods.Items[0].Desc() != "<init>()V" {
		t.Error("other nodes should still be resolved")
	}
}

func TestTruncatedClass(t *testing.T) {
	data := buildClass(classOptions{})
	for _, n := range []int{3, 9, 40, len(data) / 2, len(data) - 1} {
		f, err := classfile.Parse(data[:n])
		if !errors.Is(err, &cperrors.Error{Phase: cperrors.PhaseRead, Kind: cperrors.KindOutOfData}) {
			t.Errorf("cut at %d: expected out_of_data, got %v", n, err)
			continue
		}
		if f.Length() > n {
			t.Errorf("cut at %d: partial tree covers %d bytes", n, f.Length())
		}
		tree.Walk(f, func(c tree.Component, _ int) bool {
			if tree.Complete(c) && c.End() > n {
				t.Errorf("cut at %d: complete node %s ends at %d", n, c.Name(), c.End())
			}
			return true
		})
	}
}

func TestFlagString(t *testing.T) {
	tests := []struct {
		kind classfile.FlagKind
		v    uint16
		want string
	}{
		{classfile.ClassFlags, 0x0601, "public interface abstract"},
		{classfile.MethodFlags, 0x0109, "public static native"},
		{classfile.FieldFlags, 0x0042, "private volatile"},
		{classfile.ParameterFlags, 0x8010, "final mandated"},
		{classfile.MethodFlags, 0, ""},
	}
	for _, tt := range tests {
		if got := classfile.FlagString(tt.kind, tt.v); got != tt.want {
			t.Errorf("FlagString(%d, %#x): got %q, want %q", tt.kind, tt.v, got, tt.want)
		}
	}
}

func assertContiguous(t *testing.T, root tree.Component) {
	t.Helper()
	tree.Walk(root, func(c tree.Component, _ int) bool {
		next := c.Offset()
		sum := 0
		for _, k := range c.Children() {
			if k.OutOfBand() {
				continue
			}
			if k.Offset() != next {
				t.Errorf("%s: child %s at %d, want %d", c.Name(), k.Name(), k.Offset(), next)
			}
			next = k.End()
			sum += k.Length()
		}
		if len(c.Children()) > 0 && sum != c.Length() {
			t.Errorf("%s: length %d, children sum %d", c.Name(), c.Length(), sum)
		}
		return true
	})
}
