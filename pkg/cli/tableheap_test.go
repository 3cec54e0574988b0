package cli

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"clrmeta/pkg/token"
)

// buildMinimalTableHeap builds a `#~` stream with one Module row and one
// TypeRef row, 2-byte heap and table indices throughout.
func buildMinimalTableHeap(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}

	write := func(v interface{}) {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("binary.Write: %v", err)
		}
	}

	write(uint32(0))   // reserved
	write(uint8(2))    // major version
	write(uint8(0))    // minor version
	write(uint8(0))    // heap_sizes: all narrow (2-byte) indices
	write(uint8(0))    // reserved
	valid := uint64(1)<<uint(token.Module) | uint64(1)<<uint(token.TypeRef)
	write(valid)
	write(uint64(0)) // sorted

	// Row count vector, ascending bit order: Module (bit 0), TypeRef (bit 1).
	write(uint32(1)) // Module: 1 row
	write(uint32(1)) // TypeRef: 1 row

	// Module row: Generation, Name, Mvid, EncId, EncBaseId (all 2 bytes).
	write(uint16(0))
	write(uint16(1)) // Name -> string heap offset 1
	write(uint16(1)) // Mvid -> guid heap slot 1
	write(uint16(0))
	write(uint16(0))

	// TypeRef row: ResolutionScope (coded, 2 bytes), Name, Namespace.
	write(uint16(0)) // tag 0 (Module), row 0 -> module-local, null scope
	write(uint16(5)) // Name -> string heap offset 5
	write(uint16(0)) // Namespace

	return buf.Bytes()
}

func TestReadTableHeap(t *testing.T) {
	th, err := readTableHeap(buildMinimalTableHeap(t))
	if err != nil {
		t.Fatalf("readTableHeap error: %v", err)
	}
	if got := th.RowCount(token.Module); got != 1 {
		t.Errorf("RowCount(Module) = %d, want 1", got)
	}
	if got := th.RowCount(token.TypeRef); got != 1 {
		t.Errorf("RowCount(TypeRef) = %d, want 1", got)
	}
	if got := th.RowCount(token.TypeDef); got != 0 {
		t.Errorf("RowCount(TypeDef) = %d, want 0", got)
	}
}

func TestTableHeapRowNullReference(t *testing.T) {
	th, err := readTableHeap(buildMinimalTableHeap(t))
	if err != nil {
		t.Fatalf("readTableHeap error: %v", err)
	}
	row, err := th.Row(token.Module, 0)
	if err != nil {
		t.Fatalf("Row(Module, 0) error: %v", err)
	}
	if row != nil {
		t.Fatalf("Row(Module, 0) = %v, want nil (null reference)", row)
	}
}

func TestTableHeapRowOutOfBounds(t *testing.T) {
	th, err := readTableHeap(buildMinimalTableHeap(t))
	if err != nil {
		t.Fatalf("readTableHeap error: %v", err)
	}
	if _, err := th.Row(token.Module, 2); err == nil {
		t.Fatalf("Row(Module, 2) succeeded, want out-of-bounds error")
	}
}

func TestTableHeapRowDecode(t *testing.T) {
	th, err := readTableHeap(buildMinimalTableHeap(t))
	if err != nil {
		t.Fatalf("readTableHeap error: %v", err)
	}

	row, err := th.Row(token.Module, 1)
	if err != nil {
		t.Fatalf("Row(Module, 1) error: %v", err)
	}
	mod := newModuleRow(row)
	if mod.NameIdx != 1 {
		t.Errorf("Module.NameIdx = %d, want 1", mod.NameIdx)
	}
	if mod.MvidIdx != 1 {
		t.Errorf("Module.MvidIdx = %d, want 1", mod.MvidIdx)
	}

	row, err = th.Row(token.TypeRef, 1)
	if err != nil {
		t.Fatalf("Row(TypeRef, 1) error: %v", err)
	}
	ref := newTypeRefRow(row)
	if ref.NameIdx != 5 {
		t.Errorf("TypeRef.NameIdx = %d, want 5", ref.NameIdx)
	}
	scope, scopeRow, err := ref.ResolutionScope()
	if err != nil {
		t.Fatalf("ResolutionScope() error: %v", err)
	}
	if scope != token.Module || scopeRow != 0 {
		t.Errorf("ResolutionScope() = (%v, %d), want (Module, 0)", scope, scopeRow)
	}
}

func TestReadTableHeapUnsupportedTableKind(t *testing.T) {
	buf := &bytes.Buffer{}
	write := func(v interface{}) { _ = binary.Write(buf, binary.LittleEndian, v) }

	write(uint32(0))
	write(uint8(2))
	write(uint8(0))
	write(uint8(0))
	write(uint8(0))
	// bit 0x2D is past GenericParamConstraint (0x2C) and has no schema.
	write(uint64(1) << 0x2D)
	write(uint64(0))
	write(uint32(0)) // zero rows, still must resolve a schema

	if _, err := readTableHeap(buf.Bytes()); err == nil {
		t.Fatalf("readTableHeap() succeeded for an unschemed table bit, want ErrUnsupportedTableKind")
	}
}

func TestReadTableHeapLengthMismatch(t *testing.T) {
	data := buildMinimalTableHeap(t)
	// Append a dangling byte run long enough to exceed the small trailing
	// padding tolerance.
	data = append(data, make([]byte, 16)...)

	_, err := readTableHeap(data)
	var mismatch *ErrTableStreamLengthMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *ErrTableStreamLengthMismatch", err)
	}
}

func TestReadTableHeapTruncated(t *testing.T) {
	data := buildMinimalTableHeap(t)
	// Cut the stream short mid-way through the last table's row data,
	// the literal "truncated #~, last table's bytes cut in half" case.
	data = data[:len(data)-3]

	_, err := readTableHeap(data)
	var mismatch *ErrTableStreamLengthMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *ErrTableStreamLengthMismatch", err)
	}
}
