package dexfile_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/starsquare/classpy/dexfile"
	cperrors "github.com/starsquare/classpy/errors"
	"github.com/starsquare/classpy/internal/mutf8"
	"github.com/starsquare/classpy/reader"
	"github.com/starsquare/classpy/tree"
)

var fixtureStrings = []string{
	"<init>",             // 0
	"I",                  // 1
	"LHello;",            // 2
	"Ljava/lang/Object;", // 3
	"V",                  // 4
	"VI",                 // 5
	"count",              // 6
	"run",                // 7
	"Hello.java",         // 8
	"héllo",              // 9
	"Ljava/lang/String;", // 10
	"name",               // 11
}

// type_ids as string indices.
var fixtureTypes = []uint32{1, 2, 3, 4, 10}

type dexOptions struct {
	magic       string
	endianTag   uint32
	virtualDiff uint64
	// gap inserts bytes between the header and the id tables so the tables
	// are not where sequential reading would find them.
	gap int
	// shortString stores the first string's utf16_size one less than its
	// real length, so its NUL terminator is not where the size says.
	shortString bool
}

type dexLayout struct {
	data       []byte
	codeOff    uint32
	classData  uint32
	mapOff     uint32
	stringData uint32
	idsEnd     int
}

func le16(b *bytes.Buffer, v uint16) { _ = binary.Write(b, binary.LittleEndian, v) }
func le32(b *bytes.Buffer, v uint32) { _ = binary.Write(b, binary.LittleEndian, v) }
func uleb(b *bytes.Buffer, v uint64) { b.Write(reader.AppendUleb128(nil, v)) }
func sleb(b *bytes.Buffer, v int64)  { b.Write(reader.AppendSleb128(nil, v)) }

// buildDex lays out a one-class file:
//
//	public class Hello {
//	    static int count;
//	    private String name;
//	    public Hello() { super(); }
//	    public void run(int) {}
//	}
func buildDex(opts dexOptions) dexLayout {
	if opts.magic == "" {
		opts.magic = "dex\n035\x00"
	}
	if opts.endianTag == 0 {
		opts.endianTag = dexfile.EndianConstant
	}
	if opts.virtualDiff == 0 {
		opts.virtualDiff = 1
	}

	const (
		nStrings = 12
		nTypes   = 5
		nProtos  = 2
		nFields  = 2
		nMethods = 3
		nClasses = 1
	)
	stringIDsOff := uint32(0x70 + opts.gap)
	typeIDsOff := stringIDsOff + 4*nStrings
	protoIDsOff := typeIDsOff + 4*nTypes
	fieldIDsOff := protoIDsOff + 12*nProtos
	methodIDsOff := fieldIDsOff + 8*nFields
	classDefsOff := methodIDsOff + 8*nMethods
	dataOff := classDefsOff + 32*nClasses

	var d bytes.Buffer
	at := func() uint32 { return dataOff + uint32(d.Len()) }

	stringOffs := make([]uint32, len(fixtureStrings))
	for i, s := range fixtureStrings {
		stringOffs[i] = at()
		units := len(utf16.Encode([]rune(s)))
		if i == 0 && opts.shortString {
			units--
		}
		uleb(&d, uint64(units))
		d.Write(mutf8.Encode(s))
		d.WriteByte(0)
	}

	paramsOff := at()
	le32(&d, 1)
	le16(&d, 0) // I

	codeOff := at()
	le16(&d, 1) // registers_size
	le16(&d, 1) // ins_size
	le16(&d, 1) // outs_size
	le16(&d, 1) // tries_size
	le32(&d, 0) // debug_info_off
	le32(&d, 3) // insns_size
	d.Write([]byte{0x70, 0x10, 0x02, 0x00, 0x00, 0x00})
	le16(&d, 0) // padding
	le32(&d, 0) // start_addr
	le16(&d, 3) // insn_count
	le16(&d, 1) // handler_off
	uleb(&d, 1) // handlers size
	sleb(&d, -1)
	uleb(&d, 4) // java.lang.String
	uleb(&d, 2)
	uleb(&d, 5) // catch_all_addr

	classDataOff := at()
	uleb(&d, 1)
	uleb(&d, 1)
	uleb(&d, 2)
	uleb(&d, 1)
	uleb(&d, 0) // count
	uleb(&d, 0x8)
	uleb(&d, 1) // name
	uleb(&d, 0x2)
	uleb(&d, 0) // <init>
	uleb(&d, 0x10001)
	uleb(&d, uint64(codeOff))
	uleb(&d, 2) // Object.<init>
	uleb(&d, 0x1)
	uleb(&d, 0)
	uleb(&d, opts.virtualDiff) // run
	uleb(&d, 0x1)
	uleb(&d, 0)

	staticValuesOff := at()
	uleb(&d, 7)
	d.Write([]byte{0x04, 0x2a})       // int 42
	d.Write([]byte{0x17, 0x09})       // string 9
	d.Write([]byte{0x1e})             // null
	d.Write([]byte{0x3f})             // true
	d.Write([]byte{0x00, 0xff})       // byte -1
	d.Write([]byte{0x22, 0x00, 0x80}) // short -32768
	d.Write([]byte{0x1c, 0x01, 0x18, 0x02})

	mapOff := at()
	le32(&d, 2)
	le16(&d, 0x0000)
	le16(&d, 0)
	le32(&d, 1)
	le32(&d, 0)
	le16(&d, 0x1000)
	le16(&d, 0)
	le32(&d, 1)
	le32(&d, mapOff)

	var b bytes.Buffer
	b.WriteString(opts.magic)
	le32(&b, 0)               // checksum
	b.Write(make([]byte, 20)) // signature
	le32(&b, dataOff+uint32(d.Len()))
	le32(&b, 0x70)
	le32(&b, opts.endianTag)
	le32(&b, 0)
	le32(&b, 0)
	le32(&b, mapOff)
	for _, t := range [][2]uint32{
		{nStrings, stringIDsOff},
		{nTypes, typeIDsOff},
		{nProtos, protoIDsOff},
		{nFields, fieldIDsOff},
		{nMethods, methodIDsOff},
		{nClasses, classDefsOff},
		{uint32(d.Len()), dataOff},
	} {
		le32(&b, t[0])
		le32(&b, t[1])
	}
	b.Write(make([]byte, opts.gap))

	for _, off := range stringOffs {
		le32(&b, off)
	}
	for _, s := range fixtureTypes {
		le32(&b, s)
	}
	// ()V and (I)V
	le32(&b, 4)
	le32(&b, 3)
	le32(&b, 0)
	le32(&b, 5)
	le32(&b, 3)
	le32(&b, paramsOff)
	// Hello.count:I and Hello.name:String
	le16(&b, 1)
	le16(&b, 0)
	le32(&b, 6)
	le16(&b, 1)
	le16(&b, 4)
	le32(&b, 11)
	// Hello.<init>, Hello.run, Object.<init>
	le16(&b, 1)
	le16(&b, 0)
	le32(&b, 0)
	le16(&b, 1)
	le16(&b, 1)
	le32(&b, 7)
	le16(&b, 2)
	le16(&b, 0)
	le32(&b, 0)
	// class_def
	le32(&b, 1)
	le32(&b, 0x1)
	le32(&b, 2)
	le32(&b, 0)
	le32(&b, 8)
	le32(&b, 0)
	le32(&b, classDataOff)
	le32(&b, staticValuesOff)
	idsEnd := b.Len()

	b.Write(d.Bytes())
	return dexLayout{
		data:       b.Bytes(),
		codeOff:    codeOff,
		classData:  classDataOff,
		mapOff:     mapOff,
		stringData: stringOffs[0],
		idsEnd:     idsEnd,
	}
}

func parseFixture(t *testing.T, opts dexOptions) (*dexfile.File, dexLayout) {
	t.Helper()
	l := buildDex(opts)
	f, err := dexfile.Parse(l.data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f, l
}

func TestParseDex(t *testing.T) {
	f, l := parseFixture(t, dexOptions{})

	if f.Length() != l.idsEnd {
		t.Errorf("root length: got %d, want %d", f.Length(), l.idsEnd)
	}
	if n := len(f.Children()); n != 8 {
		t.Errorf("root children: got %d, want 8", n)
	}
	if got := f.Header.Magic.Desc(); got != "dex 035" {
		t.Errorf("magic desc: %q", got)
	}
	if f.MapList == nil || !f.MapList.OutOfBand() || f.MapList.Offset() != int(l.mapOff) {
		t.Fatalf("map list should be read out of band at %#x", l.mapOff)
	}
	if got := f.MapList.Items.Items[1].Desc(); got != fmt.Sprintf("map_list x1 at %#x", l.mapOff) {
		t.Errorf("map item: %q", got)
	}

	tests := []struct {
		name string
		c    tree.Component
		want string
	}{
		{"string", f.StringIDs.Items[9], `"héllo"`},
		{"type", f.TypeIDs.Items[4], "java.lang.String"},
		{"proto no params", f.ProtoIDs.Items[0], "()V"},
		{"proto", f.ProtoIDs.Items[1], "(I)V"},
		{"proto params", f.ProtoIDs.Items[1].Parameters, "int"},
		{"field", f.FieldIDs.Items[1], "Hello.name:Ljava/lang/String;"},
		{"method", f.MethodIDs.Items[2], "java.lang.Object.<init>:()V"},
		{"class", f.ClassDefs.Items[0], "Hello"},
		{"superclass", f.ClassDefs.Items[0].SuperclassIdx, "#2 -> java.lang.Object"},
		{"source file", f.ClassDefs.Items[0].SourceFileIdx, "#8 -> Hello.java"},
		{"class flags", f.ClassDefs.Items[0].AccessFlags, "0x0001 public"},
		{"field name ref", f.FieldIDs.Items[0].NameIdx, "#6 -> count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Desc(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassDataDeltaIndices(t *testing.T) {
	f, l := parseFixture(t, dexOptions{})
	cd := f.ClassDefs.Items[0].ClassData
	if cd == nil {
		t.Fatal("class data missing")
	}
	if !cd.OutOfBand() || cd.Offset() != int(l.classData) {
		t.Errorf("class data at %d (oob=%v), want %d", cd.Offset(), cd.OutOfBand(), l.classData)
	}

	var direct []uint32
	for _, m := range cd.DirectMethods.Items {
		direct = append(direct, m.MethodIdx)
	}
	if len(direct) != 2 || direct[0] != 0 || direct[1] != 2 {
		t.Errorf("direct method indices: %v, want [0 2]", direct)
	}
	if got := cd.VirtualMethods.Items[0].MethodIdx; got != 1 {
		t.Errorf("virtual method index: got %d, want 1 (running sum restarts per list)", got)
	}
	if got := cd.InstanceFields.Items[0].FieldIdx; got != 1 {
		t.Errorf("instance field index: got %d, want 1", got)
	}

	wantDescs := map[tree.Component]string{
		cd.StaticFields.Items[0]:   "Hello.count:I",
		cd.InstanceFields.Items[0]: "Hello.name:Ljava/lang/String;",
		cd.DirectMethods.Items[0]:  "Hello.<init>:()V",
		cd.DirectMethods.Items[1]:  "java.lang.Object.<init>:()V",
		cd.VirtualMethods.Items[0]: "Hello.run:(I)V",
	}
	for c, want := range wantDescs {
		if c.Desc() != want {
			t.Errorf("%s: got %q, want %q", c.Name(), c.Desc(), want)
		}
	}
	if got := cd.DirectMethods.Items[0].AccessFlags.Desc(); got != "0x10001 public constructor" {
		t.Errorf("method flags: %q", got)
	}
}

func TestCodeItemOutOfBand(t *testing.T) {
	f, l := parseFixture(t, dexOptions{})
	cd := f.ClassDefs.Items[0].ClassData

	withCode := cd.DirectMethods.Items[0]
	if len(withCode.Children()) != 4 || withCode.Code == nil {
		t.Fatalf("method with code: %d children", len(withCode.Children()))
	}
	code := withCode.Code
	if !code.OutOfBand() || code.Offset() != int(l.codeOff) {
		t.Errorf("code item at %d (oob=%v), want %d", code.Offset(), code.OutOfBand(), l.codeOff)
	}
	if withCode.End() > code.Offset() && withCode.Offset() < code.End() {
		t.Error("out-of-band code must not lie inside its method's range")
	}
	if next := cd.DirectMethods.Items[1]; next.Offset() != withCode.End() {
		t.Errorf("next method starts at %d, want %d", next.Offset(), withCode.End())
	}

	without := cd.DirectMethods.Items[1]
	if len(without.Children()) != 3 || without.Code != nil {
		t.Errorf("zero code_off: %d children, want 3", len(without.Children()))
	}

	if tree.Find(code, "padding") == nil {
		t.Error("odd insns_size with tries should have padding")
	}
	if len(code.Insns.Data) != 6 {
		t.Errorf("insns: %d bytes, want 6", len(code.Insns.Data))
	}
	h := code.Handlers.List.Items[0]
	if h.Size.Value != -1 || h.CatchAllAddr == nil || h.CatchAllAddr.Value != 5 {
		t.Errorf("catch handler: size %d catch_all %v", h.Size.Value, h.CatchAllAddr)
	}
	if typ := tree.FindPath(h, "handlers", "[0]", "type_idx"); typ == nil || typ.Desc() != "#4 -> java.lang.String" {
		t.Errorf("handler type: %v", typ)
	}
}

func TestStaticValues(t *testing.T) {
	f, _ := parseFixture(t, dexOptions{})
	sv := f.ClassDefs.Items[0].StaticValues
	if sv == nil {
		t.Fatal("static values missing")
	}
	want := []string{"42", `"héllo"`, "null", "true", "-1", "-32768", "array of 1"}
	if len(sv.Values.Items) != len(want) {
		t.Fatalf("values: got %d, want %d", len(sv.Values.Items), len(want))
	}
	for i, v := range sv.Values.Items {
		if v.Desc() != want[i] {
			t.Errorf("value %d (%s): got %q, want %q", i, v.Kind, v.Desc(), want[i])
		}
	}
	nested := sv.Values.Items[6].Array.Values.Items[0]
	if nested.Kind != dexfile.ValueType || nested.Desc() != "java.lang.Object" {
		t.Errorf("nested type value: %s %q", nested.Kind, nested.Desc())
	}
}

func TestTablesOutOfPlace(t *testing.T) {
	f, _ := parseFixture(t, dexOptions{gap: 8})
	if f.Length() != 0x70 {
		t.Errorf("root length: got %d, want header only", f.Length())
	}
	if !f.StringIDs.OutOfBand() || f.StringIDs.Offset() != 0x78 {
		t.Errorf("string_ids at %d (oob=%v)", f.StringIDs.Offset(), f.StringIDs.OutOfBand())
	}
	if got := f.MethodIDs.Items[1].Desc(); got != "Hello.run:(I)V" {
		t.Errorf("method desc: %q", got)
	}
}

func TestParseDexErrors(t *testing.T) {
	tests := []struct {
		name  string
		opts  dexOptions
		phase cperrors.Phase
		kind  cperrors.Kind
	}{
		{"bad magic", dexOptions{magic: "dey\n035\x00"}, cperrors.PhaseRead, cperrors.KindInvalidData},
		{"big endian", dexOptions{endianTag: dexfile.ReverseEndianConstant}, cperrors.PhaseRead, cperrors.KindUnsupported},
		{"method index out of range", dexOptions{virtualDiff: 9}, cperrors.PhaseResolve, cperrors.KindBrokenReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := dexfile.Parse(buildDex(tt.opts).data)
			if !errors.Is(err, &cperrors.Error{Phase: tt.phase, Kind: tt.kind}) {
				t.Fatalf("expected %s %s, got %v", tt.phase, tt.kind, err)
			}
			if f.Header == nil {
				t.Error("partial tree should keep the header")
			}
		})
	}
}

func TestBrokenDeltaKeepsTree(t *testing.T) {
	f, err := dexfile.Parse(buildDex(dexOptions{virtualDiff: 9}).data)
	if err == nil {
		t.Fatal("expected resolution error")
	}
	cd := f.ClassDefs.Items[0].ClassData
	if got := cd.VirtualMethods.Items[0].MethodIdx; got != 9 {
		t.Errorf("index should still be recorded: %d", got)
	}
	if cd.VirtualMethods.Items[0].Desc() != "" {
		t.Error("unresolvable method should keep an empty description")
	}
	if cd.DirectMethods.Items[0].Desc() != "Hello.<init>:()V" {
		t.Error("resolvable entries should still be described")
	}
}

func TestTruncatedDex(t *testing.T) {
	l := buildDex(dexOptions{})
	data := l.data
	for _, n := range []int{4, 0x70, 0x90, int(l.stringData) + 3, len(data) - 1} {
		f, err := dexfile.Parse(data[:n])
		if !errors.Is(err, &cperrors.Error{Phase: cperrors.PhaseRead, Kind: cperrors.KindOutOfData}) {
			t.Errorf("cut at %d: expected out_of_data, got %v", n, err)
			continue
		}
		tree.Walk(f, func(c tree.Component, _ int) bool {
			if tree.Complete(c) && c.End() > n {
				t.Errorf("cut at %d: complete node %s ends at %d", n, c.Name(), c.End())
			}
			return true
		})
	}
}

func TestTruncatedStringData(t *testing.T) {
	l := buildDex(dexOptions{})
	// utf16_size and two of the six bytes of "<init>"
	_, err := dexfile.Parse(l.data[:l.stringData+3])
	e, ok := cperrors.As(err)
	if !ok || e.Kind != cperrors.KindOutOfData {
		t.Fatalf("expected out_of_data, got %v", err)
	}
	if e.Offset != int(l.stringData)+1 {
		t.Errorf("offset: got %#x, want %#x", e.Offset, l.stringData+1)
	}
	if !strings.Contains(err.Error(), "string_data") {
		t.Errorf("error does not name string_data: %v", err)
	}
}

func TestStringDataTerminator(t *testing.T) {
	l := buildDex(dexOptions{shortString: true})
	_, err := dexfile.Parse(l.data)
	e, ok := cperrors.As(err)
	if !ok || e.Kind != cperrors.KindInvalidData || e.Phase != cperrors.PhaseRead {
		t.Fatalf("expected read invalid_data, got %v", err)
	}
	// "<init" is five bytes after the one-byte size; the terminator slot holds '>'.
	if want := int(l.stringData) + 6; e.Offset != want {
		t.Errorf("offset: got %#x, want %#x", e.Offset, want)
	}
}

func TestJavaName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"I", "int"},
		{"[[J", "long[][]"},
		{"Ljava/lang/Object;", "java.lang.Object"},
		{"[Ljava/lang/String;", "java.lang.String[]"},
		{"Lbroken", "Lbroken"},
		{"II", "II"},
		{"", ""},
		{"[", "["},
	}
	for _, tt := range tests {
		if got := dexfile.JavaName(tt.in); got != tt.want {
			t.Errorf("JavaName(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFlagString(t *testing.T) {
	tests := []struct {
		kind dexfile.FlagKind
		v    uint32
		want string
	}{
		{dexfile.ClassFlags, 0x0411, "public final abstract"},
		{dexfile.FieldFlags, 0x0048, "static volatile"},
		{dexfile.MethodFlags, 0x0048, "static bridge"},
		{dexfile.MethodFlags, 0x10002, "private constructor"},
		{dexfile.MethodFlags, 0, ""},
	}
	for _, tt := range tests {
		if got := dexfile.FlagString(tt.kind, tt.v); got != tt.want {
			t.Errorf("FlagString(%d, %#x): got %q, want %q", tt.kind, tt.v, got, tt.want)
		}
	}
}
