package reader

// LEB128 encoders. Decoding lives on Reader; these exist for fixtures and
// for tools that need to show the canonical encoding of a value.

// AppendUleb128 appends the canonical unsigned LEB128 encoding of v.
func AppendUleb128(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendSleb128 appends the canonical signed LEB128 encoding of v.
func AppendSleb128(dst []byte, v int64) []byte {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}

// Uleb128Size returns the number of bytes AppendUleb128 would write for v.
func Uleb128Size(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}
