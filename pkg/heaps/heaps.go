// Package heaps implements the four CLI metadata heaps: String,
// UserString, Blob, and GUID. Each wraps a byte slice taken directly
// from the metadata root and must not outlive it.
package heaps

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"clrmeta/pkg/bin"
	"clrmeta/pkg/pe"
)

// ErrIndexOutOfBounds is returned when a heap index falls outside the
// heap's backing slice.
var ErrIndexOutOfBounds = errors.New("heaps: index out of bounds")

// StringHeap is the #Strings heap: NUL-terminated UTF-8 strings
// indexed by byte offset. Index 0 is always the empty string.
type StringHeap struct {
	data []byte
}

// NewStringHeap wraps data as a String heap.
func NewStringHeap(data []byte) *StringHeap { return &StringHeap{data: data} }

// Get returns the NUL-terminated string starting at byte offset i.
func (h *StringHeap) Get(i uint32) (string, error) {
	if i == 0 {
		return "", nil
	}
	if int(i) >= len(h.data) {
		return "", fmt.Errorf("%w: string heap index %d, len %d", ErrIndexOutOfBounds, i, len(h.data))
	}
	end := int(i)
	for end < len(h.data) && h.data[end] != 0 {
		end++
	}
	return string(h.data[i:end]), nil
}

// BlobHeap is the #Blob heap: length-prefixed (compressed uint) byte
// sequences indexed by byte offset.
type BlobHeap struct {
	data []byte
}

// NewBlobHeap wraps data as a Blob heap.
func NewBlobHeap(data []byte) *BlobHeap { return &BlobHeap{data: data} }

// Get returns the blob payload (excluding its length prefix) at byte
// offset i.
func (h *BlobHeap) Get(i uint32) ([]byte, error) {
	if i == 0 {
		return nil, nil
	}
	if int(i) >= len(h.data) {
		return nil, fmt.Errorf("%w: blob heap index %d, len %d", ErrIndexOutOfBounds, i, len(h.data))
	}
	c := bin.NewCursor(h.data)
	c.Seek(int(i))
	n, err := c.CompressedUint()
	if err != nil {
		return nil, err
	}
	return c.ReadExact(int(n))
}

// UserStringHeap is the #US heap: like Blob, but the payload (minus its
// trailing single flag byte) is UTF-16LE text.
type UserStringHeap struct {
	data []byte
}

// NewUserStringHeap wraps data as a UserString heap.
func NewUserStringHeap(data []byte) *UserStringHeap { return &UserStringHeap{data: data} }

// Get decodes the UTF-16LE user string at byte offset i. A fresh
// decoder is built per call: transform.Transformer implementations
// carry internal state across calls and are not safe to share between
// concurrent readers, and this heap must support any number of them.
func (h *UserStringHeap) Get(i uint32) (string, error) {
	if i == 0 {
		return "", nil
	}
	if int(i) >= len(h.data) {
		return "", fmt.Errorf("%w: user string heap index %d, len %d", ErrIndexOutOfBounds, i, len(h.data))
	}
	c := bin.NewCursor(h.data)
	c.Seek(int(i))
	n, err := c.CompressedUint()
	if err != nil {
		return "", err
	}
	raw, err := c.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	payload := raw[:len(raw)-1] // drop the trailing flag byte
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := decoder.Bytes(payload)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// GuidHeap is the #GUID heap: 1-based, fixed 16-byte slots.
type GuidHeap struct {
	data []byte
}

// NewGuidHeap wraps data as a GUID heap.
func NewGuidHeap(data []byte) *GuidHeap { return &GuidHeap{data: data} }

// Get returns the GUID at 1-based index i. Index 0 returns the zero
// GUID and no error ("none" is not an error case).
func (h *GuidHeap) Get(i uint32) (pe.GUID, error) {
	g, err := pe.GuidFromHeapSlot(h.data, i)
	if err != nil {
		return pe.GUID{}, fmt.Errorf("%w: %v", ErrIndexOutOfBounds, err)
	}
	return g, nil
}
