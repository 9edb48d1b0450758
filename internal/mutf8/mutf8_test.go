package mutf8

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty", nil, ""},
		{"ascii", []byte("java/lang/Object"), "java/lang/Object"},
		{"nul", []byte{'a', 0xc0, 0x80, 'b'}, "a\x00b"},
		{"two byte", []byte{0xc3, 0xa9}, "é"},
		{"three byte", []byte{0xe4, 0xb8, 0xad}, "中"},
		{"surrogate pair", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}, "😀"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"truncated two byte", []byte{0xc3}},
		{"bad continuation", []byte{0xe4, 0x38, 0xad}},
		{"four byte lead", []byte{0xf0, 0x9f, 0x98, 0x80}},
		{"stray continuation", []byte{0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.input); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestDecodeN(t *testing.T) {
	data := []byte{'h', 0xc3, 0xa9, 'y', 0x00, 'z'}
	s, n, err := DecodeN(data, 3)
	if err != nil {
		t.Fatalf("DecodeN: %v", err)
	}
	if s != "héy" || n != 4 {
		t.Errorf("got %q consuming %d bytes", s, n)
	}

	tests := []struct {
		name       string
		input      []byte
		units      int
		need, have int
	}{
		{"ends between units", data[:2], 3, 4, 2},
		{"ends inside a unit", data[:2], 2, 3, 2},
		{"empty", nil, 1, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeN(tt.input, tt.units)
			var short *ShortError
			if !errors.As(err, &short) {
				t.Fatalf("expected *ShortError, got %v", err)
			}
			if short.Need != tt.need || short.Have != tt.have {
				t.Errorf("need/have: got %d/%d, want %d/%d", short.Need, short.Have, tt.need, tt.have)
			}
			if errors.Is(err, ErrInvalid) {
				t.Errorf("short input reported as malformed: %v", err)
			}
		})
	}

	if _, _, err := DecodeN([]byte{0xff, 0x00}, 1); !errors.Is(err, ErrInvalid) {
		t.Errorf("bad lead byte: expected ErrInvalid, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, s := range []string{"", "Hello", "a\x00b", "é中😀"} {
		enc := Encode(s)
		if bytes.IndexByte(enc, 0) >= 0 {
			t.Errorf("%q: encoding contains NUL", s)
		}
		got, err := Decode(enc)
		if err != nil || got != s {
			t.Errorf("%q: round trip gave %q, %v", s, got, err)
		}
	}
}
