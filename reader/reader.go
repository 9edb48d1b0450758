// Package reader implements the cursor shared by every container decoder.
//
// A Reader wraps an immutable byte slice with a mutable position. All reads
// are bounds checked before the position moves, so a failed read leaves the
// cursor where it was. A Reader belongs to a single decode session and must
// not be shared between goroutines.
package reader

import (
	"encoding/binary"
	"fmt"

	"github.com/starsquare/classpy/errors"
)

// Reader is a position-tracking cursor over a byte buffer.
type Reader struct {
	order binary.ByteOrder
	data  []byte
	pos   int
}

// New creates a Reader over data using order for fixed-width reads.
func New(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{data: data, order: order}
}

// Order returns the byte order used for fixed-width reads.
func (r *Reader) Order() binary.ByteOrder {
	return r.order
}

// Position returns the current byte position.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the total buffer length.
func (r *Reader) Len() int {
	return len(r.data)
}

// Remaining returns the number of unread bytes after the position.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Seek moves the cursor to an absolute offset. Seeking to the end of the
// buffer is allowed; seeking past it is not.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return errors.New(errors.PhaseRead, errors.KindOutOfData).
			Offset(r.pos).
			Value(pos).
			Detail("seek to 0x%x outside buffer of %d byte(s)", pos, len(r.data)).
			Build()
	}
	r.pos = pos
	return nil
}

// At runs fn with the cursor at offset and restores the previous position
// afterwards, including when fn fails.
func (r *Reader) At(offset int, fn func(*Reader) error) error {
	saved := r.pos
	if err := r.Seek(offset); err != nil {
		return err
	}
	defer func() { r.pos = saved }()
	return fn(r)
}

// Within runs fn over a reader limited to the next size bytes. Offsets stay
// absolute. Afterwards r is positioned wherever fn stopped; fn need not
// consume every byte.
func (r *Reader) Within(size int, fn func(*Reader) error) error {
	start := r.pos
	if size < 0 || size > r.Remaining() {
		return errors.OutOfData(start, size, r.Remaining())
	}
	sub := &Reader{data: r.data[:start+size], order: r.order, pos: start}
	err := fn(sub)
	r.pos = sub.pos
	return err
}

// Bytes returns the backing buffer. Callers must not modify it.
func (r *Reader) Bytes() []byte {
	return r.data
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.pos {
		return nil, errors.OutOfData(r.pos, n, len(r.data)-r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBytes reads exactly n bytes. The result aliases the buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

// PeekU1 returns the next byte without consuming it.
func (r *Reader) PeekU1() (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, errors.OutOfData(r.pos, 1, 0)
	}
	return r.data[r.pos], nil
}

// ReadU1 reads one byte.
func (r *Reader) ReadU1() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU2 reads a two-byte unsigned integer.
func (r *Reader) ReadU2() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// ReadU4 reads a four-byte unsigned integer.
func (r *Reader) ReadU4() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// ReadU8 reads an eight-byte unsigned integer.
func (r *Reader) ReadU8() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// ReadVarU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadVarU32() (uint32, error) {
	start := r.pos
	v, err := r.readUleb(32)
	if err != nil {
		r.pos = start
		return 0, err
	}
	return uint32(v), nil
}

// ReadVarU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadVarU64() (uint64, error) {
	start := r.pos
	v, err := r.readUleb(64)
	if err != nil {
		r.pos = start
	}
	return v, err
}

// ReadVarS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadVarS32() (int32, error) {
	start := r.pos
	v, err := r.readSleb(32)
	if err != nil {
		r.pos = start
		return 0, err
	}
	return int32(v), nil
}

// ReadVarS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadVarS64() (int64, error) {
	start := r.pos
	v, err := r.readSleb(64)
	if err != nil {
		r.pos = start
	}
	return v, err
}

func (r *Reader) readUleb(bits uint) (uint64, error) {
	start := r.pos
	var result uint64
	var shift uint
	for {
		if r.pos >= len(r.data) {
			return 0, errors.OutOfData(start, r.pos-start+1, r.pos-start)
		}
		b := r.data[r.pos]
		r.pos++
		if shift >= bits || (bits-shift < 7 && uint64(b&0x7f)>>(bits-shift) != 0) {
			return 0, errors.Overflow(start, fmt.Sprintf("leb128 % x", r.data[start:r.pos]), fmt.Sprintf("u%d", bits))
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

func (r *Reader) readSleb(bits uint) (int64, error) {
	start := r.pos
	var result int64
	var shift uint
	var b byte
	for {
		if r.pos >= len(r.data) {
			return 0, errors.OutOfData(start, r.pos-start+1, r.pos-start)
		}
		b = r.data[r.pos]
		r.pos++
		// The tenth byte of an s64 carries one value bit; the rest must
		// repeat the sign.
		if shift >= bits || (shift == 63 && b != 0x00 && b != 0x7f) {
			return 0, errors.Overflow(start, fmt.Sprintf("leb128 % x", r.data[start:r.pos]), fmt.Sprintf("s%d", bits))
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	// Sign extend
	if shift < 64 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	if bits < 64 {
		lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if result < lo || result > hi {
			return 0, errors.Overflow(start, result, fmt.Sprintf("s%d", bits))
		}
	}
	return result, nil
}
