package cli

import (
	"errors"
	"fmt"
)

// ErrMissingDataDirectory is returned when a required data directory
// (the CLI header, most commonly) is absent from the optional header.
var ErrMissingDataDirectory = errors.New("cli: missing data directory")

// ErrMissingStream is returned when a required metadata stream
// (#Strings, #Blob, #GUID, #~) is absent from the metadata root's
// stream directory.
type ErrMissingStream struct {
	Name string
}

func (e *ErrMissingStream) Error() string {
	return fmt.Sprintf("cli: missing stream %q", e.Name)
}

// ErrUnsupportedUncompressedTables is returned when the metadata root
// carries a `#-` stream instead of `#~`; the uncompressed table format
// is out of scope.
var ErrUnsupportedUncompressedTables = errors.New("cli: uncompressed (#-) table stream is not supported")

// ErrTableStreamLengthMismatch is returned when the sum of every
// present table's row_count*row_size does not account for the `#~`
// stream body, beyond a small trailing-padding tolerance.
type ErrTableStreamLengthMismatch struct {
	Computed   int
	StreamSize int
}

func (e *ErrTableStreamLengthMismatch) Error() string {
	return fmt.Sprintf("cli: table stream length mismatch: computed %d bytes, stream is %d bytes", e.Computed, e.StreamSize)
}

// ErrUnsupportedTableKind is returned when the Valid bitmask marks a
// table bit present that has no defined ECMA-335 column schema; such a
// table cannot be sized, so it cannot be validated or skipped safely.
type ErrUnsupportedTableKind struct {
	Bit uint8
}

func (e *ErrUnsupportedTableKind) Error() string {
	return fmt.Sprintf("cli: unsupported table kind at bit 0x%02X", e.Bit)
}

// ErrInvalidCodedTag is returned when a coded index's tag bits select a
// target table position outside the scheme's defined list.
type ErrInvalidCodedTag struct {
	Scheme string
	Tag    uint32
}

func (e *ErrInvalidCodedTag) Error() string {
	return fmt.Sprintf("cli: invalid coded tag %d for scheme %s", e.Tag, e.Scheme)
}

// ErrIndexOutOfBounds is returned by a row accessor given a row id
// beyond the table's row count (row id 0 is "null", not an error).
type ErrIndexOutOfBounds struct {
	What  string
	Index uint32
	Len   uint32
}

func (e *ErrIndexOutOfBounds) Error() string {
	return fmt.Sprintf("cli: %s index %d out of bounds (len %d)", e.What, e.Index, e.Len)
}
