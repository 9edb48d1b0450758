package reader

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestUleb128Encoding(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   uint64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xff, 0x7f}, 16383},
		{[]byte{0x80, 0x80, 0x01}, 16384},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		got := AppendUleb128(nil, tt.value)
		if !bytes.Equal(got, tt.encoded) {
			t.Errorf("encode %d: got % x, want % x", tt.value, got, tt.encoded)
		}
		if n := Uleb128Size(tt.value); n != len(tt.encoded) {
			t.Errorf("Uleb128Size(%d) = %d, want %d", tt.value, n, len(tt.encoded))
		}
	}
}

func TestSleb128Encoding(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   int64
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x40}, -64},
		{[]byte{0xbf, 0x7f}, -65},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xff, 0x7e}, -129},
	}

	for _, tt := range tests {
		got := AppendSleb128(nil, tt.value)
		if !bytes.Equal(got, tt.encoded) {
			t.Errorf("encode %d: got % x, want % x", tt.value, got, tt.encoded)
		}
	}
}

// Canonical encodings survive decode followed by re-encode unchanged.
func TestUleb128RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 300, 16384, 1<<21 - 1, 1 << 28, 0xFFFFFFFF, 1 << 35, ^uint64(0)}
	for _, v := range values {
		encoded := AppendUleb128(nil, v)

		r := New(encoded, binary.LittleEndian)
		decoded, err := r.ReadVarU64()
		if err != nil {
			t.Fatalf("decode % x: %v", encoded, err)
		}
		if decoded != v {
			t.Errorf("decode % x: got %d, want %d", encoded, decoded, v)
		}
		if again := AppendUleb128(nil, decoded); !bytes.Equal(again, encoded) {
			t.Errorf("re-encode %d: got % x, want % x", decoded, again, encoded)
		}
	}
}

func TestUleb128RoundTripFromBytes(t *testing.T) {
	canonical := [][]byte{
		{0x00},
		{0x05},
		{0x80, 0x01},
		{0xe5, 0x8e, 0x26},
		{0xff, 0xff, 0xff, 0xff, 0x0f},
	}
	for _, enc := range canonical {
		r := New(enc, binary.LittleEndian)
		v, err := r.ReadVarU32()
		if err != nil {
			t.Fatalf("decode % x: %v", enc, err)
		}
		if got := AppendUleb128(nil, uint64(v)); !bytes.Equal(got, enc) {
			t.Errorf("round trip % x: got % x", enc, got)
		}
	}
}

func TestAppendPreservesPrefix(t *testing.T) {
	dst := []byte{0xaa}
	dst = AppendUleb128(dst, 300)
	dst = AppendSleb128(dst, -2)
	want := []byte{0xaa, 0xac, 0x02, 0x7e}
	if !bytes.Equal(dst, want) {
		t.Errorf("got % x, want % x", dst, want)
	}
}
