package cli

import (
	"clrmeta/pkg/bin"
	"clrmeta/pkg/token"
)

// IndexSizes captures the per-Assembly widths needed to decode table
// rows: heap index widths (string/guid/blob), per-table row-index
// widths, and per-coded-index-scheme widths. Computed once at load and
// shared read-only by every row decode.
type IndexSizes struct {
	StringSize int
	GuidSize   int
	BlobSize   int

	rowCounts [64]uint32
	coded     map[CodedIndexKind]int
}

// TableSize returns 2 or 4: the byte width used for a plain table-index
// column referencing t.
func (s *IndexSizes) TableSize(t token.Table) int {
	if s.rowCounts[t] < 65536 {
		return 2
	}
	return 4
}

// CodedSize returns 2 or 4 for the named coded-index scheme.
func (s *IndexSizes) CodedSize(k CodedIndexKind) int {
	return s.coded[k]
}

// RowCount returns the number of rows present for table t (0 if
// absent).
func (s *IndexSizes) RowCount(t token.Table) uint32 {
	return s.rowCounts[t]
}

// rawTable holds one present table's row data and row width; absent
// tables have a nil Data and zero RowSize.
type rawTable struct {
	Data    []byte
	RowSize int
}

// TableHeap is the decoded `#~` stream: per-table row slices sized by
// IndexSizes, ready for the row decoders in rows.go to index into.
type TableHeap struct {
	Sizes  *IndexSizes
	Valid  uint64
	Sorted uint64

	tables [64]rawTable
}

// readTableHeap parses the `#~` stream per spec.md §4.5: header,
// heap-sizes byte, Valid/Sorted masks, row-count vector, IndexSizes,
// per-table row_size, then the offset-walk slicing each present
// table's row data out of the remaining stream bytes.
func readTableHeap(data []byte) (*TableHeap, error) {
	c := bin.NewCursor(data)

	if _, err := c.U32(); err != nil { // reserved
		return nil, err
	}
	if _, err := c.U8(); err != nil { // major version
		return nil, err
	}
	if _, err := c.U8(); err != nil { // minor version
		return nil, err
	}
	heapSizes, err := c.U8()
	if err != nil {
		return nil, err
	}
	if _, err := c.U8(); err != nil { // reserved
		return nil, err
	}
	valid, err := c.U64()
	if err != nil {
		return nil, err
	}
	sorted, err := c.U64()
	if err != nil {
		return nil, err
	}

	sizes := &IndexSizes{
		StringSize: 2,
		GuidSize:   2,
		BlobSize:   2,
	}
	if heapSizes&0x01 != 0 {
		sizes.StringSize = 4
	}
	if heapSizes&0x02 != 0 {
		sizes.GuidSize = 4
	}
	if heapSizes&0x04 != 0 {
		sizes.BlobSize = 4
	}

	for bit := 0; bit < 64; bit++ {
		if valid&(1<<uint(bit)) == 0 {
			continue
		}
		n, err := c.U32()
		if err != nil {
			return nil, err
		}
		sizes.rowCounts[bit] = n
	}

	sizes.coded = make(map[CodedIndexKind]int, len(allSchemes))
	for kind, scheme := range allSchemes {
		sizes.coded[kind] = codedIndexSize(scheme, sizes.rowCounts)
	}

	th := &TableHeap{Sizes: sizes, Valid: valid, Sorted: sorted}

	// Size every present table before reading any row bytes, so a
	// truncated stream (the last table's bytes cut short) and an
	// oversized one (excess trailing bytes) are both reported
	// uniformly as ErrTableStreamLengthMismatch rather than letting a
	// short ReadExact fail first with a generic truncation error.
	rowSizes := make([]int, 64)
	computed := c.Pos()
	for bit := 0; bit < 64; bit++ {
		if valid&(1<<uint(bit)) == 0 {
			continue
		}
		rowSize, ok := tableColumnWidth(token.Table(bit), sizes)
		if !ok {
			return nil, &ErrUnsupportedTableKind{Bit: uint8(bit)}
		}
		rowSizes[bit] = rowSize
		computed += int(sizes.rowCounts[bit]) * rowSize
	}

	if slack := len(data) - computed; slack < 0 || slack > 7 {
		return nil, &ErrTableStreamLengthMismatch{Computed: computed, StreamSize: len(data)}
	}

	for bit := 0; bit < 64; bit++ {
		count := sizes.rowCounts[bit]
		if count == 0 {
			continue
		}
		length := int(count) * rowSizes[bit]
		raw, err := c.ReadExact(length)
		if err != nil {
			return nil, err
		}
		th.tables[bit] = rawTable{Data: raw, RowSize: rowSizes[bit]}
	}

	return th, nil
}

func (th *TableHeap) table(t token.Table) rawTable {
	return th.tables[t]
}

// RowCount returns the number of rows present for table t.
func (th *TableHeap) RowCount(t token.Table) uint32 {
	return th.Sizes.RowCount(t)
}

// Row decodes row (1-based) of table t. row == 0 (null reference)
// returns (nil, nil): a normal, non-error outcome per spec.md §4.6.
func (th *TableHeap) Row(t token.Table, row uint32) (*Row, error) {
	if row == 0 {
		return nil, nil
	}
	raw, ok := rowBytes(th.table(t), row)
	if !ok {
		return nil, &ErrIndexOutOfBounds{What: t.String(), Index: row, Len: th.RowCount(t)}
	}
	return decodeRowSized(t, raw, th.Sizes)
}

func rowBytes(rt rawTable, row uint32) ([]byte, bool) {
	if row == 0 {
		return nil, false
	}
	idx := int(row-1) * rt.RowSize
	if rt.Data == nil || idx+rt.RowSize > len(rt.Data) {
		return nil, false
	}
	return rt.Data[idx : idx+rt.RowSize], true
}
