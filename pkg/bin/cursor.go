// Package bin provides a small bounds-checked byte cursor used to decode
// the fixed-width and variable-length primitives that show up throughout
// the PE/COFF container and the CLI metadata streams it carries.
package bin

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned whenever a read would run past the end of the
// cursor's backing slice.
var ErrTruncated = errors.New("bin: truncated input")

// ErrInvalidCompressedInt is returned when a compressed unsigned integer's
// leading byte has the reserved `111...` bit pattern.
var ErrInvalidCompressedInt = errors.New("bin: invalid compressed integer")

// Cursor reads little-endian primitives from a byte slice it does not own.
// The zero value is not usable; construct one with NewCursor.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor wraps data for bounds-checked reading starting at position 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Len returns the total length of the backing slice.
func (c *Cursor) Len() int { return len(c.data) }

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Seek moves the cursor to an absolute offset. It does not itself fail on
// an out-of-range offset; the next read will report ErrTruncated.
func (c *Cursor) Seek(offset int) { c.pos = offset }

func (c *Cursor) require(n int) error {
	if c.pos < 0 || n < 0 || c.pos+n > len(c.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, c.pos, len(c.data))
	}
	return nil
}

// ReadExact returns a view of the next n bytes and advances the position.
// The returned slice aliases the cursor's backing array.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Peek returns the next n bytes without advancing the position.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	return c.data[c.pos : c.pos+n], nil
}

// U8 reads a single byte.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian uint16.
func (c *Cursor) U16() (uint16, error) {
	b, err := c.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian uint32.
func (c *Cursor) U32() (uint32, error) {
	b, err := c.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (c *Cursor) U64() (uint64, error) {
	b, err := c.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// UintN reads a little-endian unsigned integer occupying n bytes, n in {1,2,4,8}.
// Used by index fields whose width (2 vs 4 bytes) is only known at runtime.
func (c *Cursor) UintN(n int) (uint64, error) {
	b, err := c.ReadExact(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// CompressedUint decodes a CLI compressed unsigned integer (ECMA-335 II.23.2):
//
//	0xxxxxxx            -> 1 byte,  7 bits of value
//	10xxxxxx xxxxxxxx   -> 2 bytes, 14 bits of value, big-endian payload
//	110xxxxx ...        -> 4 bytes, 29 bits of value, big-endian payload
//	111.....            -> reserved, invalid
func (c *Cursor) CompressedUint() (uint32, error) {
	first, err := c.Peek(1)
	if err != nil {
		return 0, err
	}
	switch {
	case first[0]&0x80 == 0:
		b, _ := c.ReadExact(1)
		return uint32(b[0]), nil
	case first[0]&0xC0 == 0x80:
		b, err := c.ReadExact(2)
		if err != nil {
			return 0, err
		}
		return uint32(b[0]&0x3F)<<8 | uint32(b[1]), nil
	case first[0]&0xE0 == 0xC0:
		b, err := c.ReadExact(4)
		if err != nil {
			return 0, err
		}
		return uint32(b[0]&0x1F)<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
	default:
		return 0, ErrInvalidCompressedInt
	}
}

// AlignedString reads a u32 length prefix followed by that many bytes,
// truncates at the first NUL (or uses the full length if none is found),
// and advances the cursor to the next 4-byte boundary relative to base.
// The metadata root's version string is the only user of this shape; base
// is the metadata root's own starting offset, since alignment there is
// relative to the root, not to offset 0 of the file.
func (c *Cursor) AlignedString(base int) (string, error) {
	n, err := c.U32()
	if err != nil {
		return "", err
	}
	raw, err := c.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	end := len(raw)
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	s := string(raw[:end])
	relative := c.pos - base
	aligned := (relative + 3) &^ 3
	c.Seek(base + aligned)
	return s, nil
}

// NulString reads bytes up to (and consuming) the next NUL byte and returns
// the bytes before it. When maxLen > 0 the search covers at most maxLen
// bytes. If the backing slice ends before a NUL is found, it returns
// ErrTruncated.
func (c *Cursor) NulString(maxLen int) (string, error) {
	start := c.pos
	limit := len(c.data)
	if maxLen > 0 && start+maxLen < limit {
		limit = start + maxLen
	}
	end := limit
	for i := start; i < limit; i++ {
		if c.data[i] == 0 {
			end = i
			break
		}
	}
	if end >= len(c.data) {
		return "", ErrTruncated
	}
	s := string(c.data[start:end])
	c.pos = end + 1
	return s, nil
}

// PaddedName reads a NUL-terminated ASCII name and consumes the name plus
// its NUL, rounded up to a multiple of round (a power of two; the
// stream-header name convention uses 4).
func (c *Cursor) PaddedName(round int) (string, error) {
	start := c.pos
	raw, err := c.Peek(len(c.data) - start)
	if err != nil {
		return "", err
	}
	end := -1
	for i, b := range raw {
		if b == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated name", ErrTruncated)
	}
	advance := ((end + 1) + (round - 1)) &^ (round - 1)
	if _, err := c.ReadExact(advance); err != nil {
		return "", err
	}
	return string(raw[:end]), nil
}
