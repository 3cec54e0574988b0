package cli

import (
	"fmt"

	"clrmeta/pkg/bin"
	"clrmeta/pkg/token"
)

// Row is one decoded table row: a fixed sequence of column values in
// schema-declaration order, each still in its raw encoded form. Use the
// Uint32/Coded/StringIndex/etc. accessors, or one of the typed wrappers
// below (TypeDefRow, MethodDefRow, AssemblyRow, ...) for the tables
// that most callers care about by name.
type Row struct {
	table  token.Table
	cols   []column
	values []uint64
}

// decodeRowSized decodes one row's columns in schema order, using
// IndexSizes to pick each heap-index/coded-index/table-index column's
// width (2 or 4 bytes) — the same width function columns.go uses to
// size the table in the first place.
func decodeRowSized(t token.Table, raw []byte, sizes *IndexSizes) (*Row, error) {
	cols := tableSchemas[t]
	c := bin.NewCursor(raw)
	r := &Row{table: t, cols: cols, values: make([]uint64, len(cols))}
	for i, col := range cols {
		v, err := c.UintN(col.width(sizes))
		if err != nil {
			return nil, err
		}
		r.values[i] = v
	}
	return r, nil
}

func (r *Row) indexOf(name string) int {
	for i, c := range r.cols {
		if c.name == name {
			return i
		}
	}
	return -1
}

// Uint32 returns the raw value of a u8/u16/u32 column by name.
func (r *Row) Uint32(name string) uint32 {
	i := r.indexOf(name)
	if i < 0 {
		return 0
	}
	return uint32(r.values[i])
}

// StringIndex returns a String-heap index column's raw value by name.
func (r *Row) StringIndex(name string) uint32 {
	return r.Uint32(name)
}

// GuidIndex returns a Guid-heap index column's raw value by name.
func (r *Row) GuidIndex(name string) uint32 {
	return r.Uint32(name)
}

// BlobIndex returns a Blob-heap index column's raw value by name.
func (r *Row) BlobIndex(name string) uint32 {
	return r.Uint32(name)
}

// TableIndex returns a plain table-index column's 1-based row id by
// name (0 means null).
func (r *Row) TableIndex(name string) uint32 {
	return r.Uint32(name)
}

// Coded decodes a coded-index column by name into its target table and
// 1-based row id.
func (r *Row) Coded(name string) (token.Table, uint32, error) {
	i := r.indexOf(name)
	if i < 0 {
		return 0, 0, fmt.Errorf("cli: no such coded column %q", name)
	}
	col := r.cols[i]
	if col.kind != colCoded {
		return 0, 0, fmt.Errorf("cli: column %q is not a coded index", name)
	}
	return decodeCoded(allSchemes[col.coded], uint32(r.values[i]))
}
