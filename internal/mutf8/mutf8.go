// Package mutf8 decodes the modified UTF-8 encoding used by class files and
// DEX string data.
//
// Modified UTF-8 differs from standard UTF-8 in two ways: NUL is encoded as
// the two-byte sequence C0 80, and supplementary characters are encoded as a
// surrogate pair of three-byte sequences rather than one four-byte sequence.
package mutf8

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// ErrInvalid reports a malformed byte sequence.
var ErrInvalid = errors.New("mutf8: invalid encoding")

// ShortError reports input that ends before the requested number of code
// units. Need is a lower bound on the bytes required.
type ShortError struct {
	Need int
	Have int
}

func (e *ShortError) Error() string {
	return fmt.Sprintf("mutf8: need at least %d byte(s), have %d", e.Need, e.Have)
}

// Decode converts modified UTF-8 bytes to a Go string. Decoding stops at the
// first malformed sequence.
func Decode(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return "", fmt.Errorf("%w at byte %d", ErrInvalid, i)
			}
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return "", fmt.Errorf("%w at byte %d", ErrInvalid, i)
			}
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", fmt.Errorf("%w at byte %d", ErrInvalid, i)
		}
	}
	return string(utf16.Decode(units)), nil
}

// DecodeN decodes the NUL-terminated string at the start of b whose length in
// UTF-16 code units is n, as stored in DEX string_data_item. It returns the
// string and the number of bytes consumed, excluding the terminator. Input
// that ends early yields a *ShortError.
func DecodeN(b []byte, n int) (string, int, error) {
	end := 0
	units := 0
	for units < n {
		if end >= len(b) {
			return "", 0, &ShortError{Need: end + 1, Have: len(b)}
		}
		c := b[end]
		switch {
		case c < 0x80:
			end++
		case c&0xe0 == 0xc0:
			end += 2
		case c&0xf0 == 0xe0:
			end += 3
		default:
			return "", 0, fmt.Errorf("%w at byte %d", ErrInvalid, end)
		}
		units++
	}
	if end > len(b) {
		return "", 0, &ShortError{Need: end, Have: len(b)}
	}
	s, err := Decode(b[:end])
	return s, end, err
}

// Encode converts s to modified UTF-8. It is used to build fixtures.
func Encode(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xc0|byte(u>>6), 0x80|byte(u&0x3f))
		default:
			out = append(out, 0xe0|byte(u>>12), 0x80|byte(u>>6&0x3f), 0x80|byte(u&0x3f))
		}
	}
	return out
}
