package cli

import (
	"fmt"

	"github.com/PurpleSec/logx"

	"clrmeta/pkg/heaps"
	"clrmeta/pkg/pe"
	"clrmeta/pkg/token"
)

// Heaps bundles the four byte-indexed metadata heaps an Assembly reads
// string, blob, GUID, and user-string data from.
type Heaps struct {
	Strings     *heaps.StringHeap
	Blobs       *heaps.BlobHeap
	Guids       *heaps.GuidHeap
	UserStrings *heaps.UserStringHeap
}

// Assembly is one successfully parsed managed executable: its PE
// container, CLI header, metadata root, heaps, and table heap. Once
// constructed it is immutable and safe for concurrent reads.
type Assembly struct {
	Path     string
	File     *pe.File
	Header   *Header
	Root     *MetadataRoot
	Heaps    Heaps
	Tables   *TableHeap

	log logx.Log
}

// LoadOption configures LoadFile.
type LoadOption func(*loadOptions)

type loadOptions struct {
	log logx.Log
}

// WithLogger routes load-time progress messages (Debug-level parse steps
// and the Info-level "loaded" summary) through the given logger instead
// of the default stderr console logger. Warnings raised while parsing the
// PE headers (entry point outside the sections, oversized
// NumberOfRvaAndSizes) are written with the standard log package and do
// not go through this logger.
func WithLogger(l logx.Log) LoadOption {
	return func(o *loadOptions) { o.log = l }
}

func resolveOptions(opts []LoadOption) *loadOptions {
	o := &loadOptions{log: logx.Console(logx.Info)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LoadFile memory-maps path and parses it as a CLI-metadata-carrying
// PE image.
func LoadFile(path string, opts ...LoadOption) (*Assembly, error) {
	o := resolveOptions(opts)
	f, err := pe.Open(path)
	if err != nil {
		return nil, err
	}
	a, err := load(path, f, o)
	if err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

func load(path string, f *pe.File, o *loadOptions) (*Assembly, error) {
	o.log.Debug("%s: parsing CLI header", path)
	header, err := ReadHeader(f)
	if err != nil {
		return nil, err
	}

	o.log.Debug("%s: parsing metadata root", path)
	root, err := ReadMetadataRoot(f, header)
	if err != nil {
		return nil, err
	}

	o.log.Debug("%s: parsing table heap", path)
	tableData, err := root.Stream("#~")
	if err != nil {
		return nil, err
	}
	tables, err := readTableHeap(tableData)
	if err != nil {
		return nil, err
	}

	strings, err := root.Stream("#Strings")
	if err != nil {
		return nil, err
	}
	blobs, err := root.Stream("#Blob")
	if err != nil {
		return nil, err
	}
	guids, err := root.Stream("#GUID")
	if err != nil {
		return nil, err
	}
	us, err := root.Stream("#US")
	if err != nil {
		return nil, err
	}

	a := &Assembly{
		Path:   path,
		File:   f,
		Header: header,
		Root:   root,
		Tables: tables,
		Heaps: Heaps{
			Strings:     heaps.NewStringHeap(strings),
			Blobs:       heaps.NewBlobHeap(blobs),
			Guids:       heaps.NewGuidHeap(guids),
			UserStrings: heaps.NewUserStringHeap(us),
		},
		log: o.log,
	}

	o.log.Info("%s: loaded, %d streams", path, len(root.Streams))
	return a, nil
}

// Close releases the backing memory mapping. Heap and table views
// obtained from this Assembly must not be used afterward.
func (a *Assembly) Close() error {
	return a.File.Close()
}

// Name resolves the Assembly table's row 1 (if present) through the
// String heap — the common case of "what is this assembly called"
// without manually chaining Tables.Row(token.Assembly, 1) through the
// String heap.
func (a *Assembly) Name() (string, error) {
	row, err := a.Tables.Row(token.Assembly, 1)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	asm := newAssemblyRow(row)
	return a.Heaps.Strings.Get(asm.NameIdx)
}

// ModuleRow returns the Module table's single row, typically present
// as row 1.
func (a *Assembly) ModuleRow() (*ModuleRow, error) {
	row, err := a.Tables.Row(token.Module, 1)
	if err != nil || row == nil {
		return nil, err
	}
	return newModuleRow(row), nil
}

// TypeDef returns row i (1-based) of the TypeDef table.
func (a *Assembly) TypeDef(i uint32) (*TypeDefRow, error) {
	row, err := a.Tables.Row(token.TypeDef, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newTypeDefRow(row), nil
}

// MethodDef returns row i (1-based) of the MethodDef table.
func (a *Assembly) MethodDef(i uint32) (*MethodDefRow, error) {
	row, err := a.Tables.Row(token.MethodDef, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newMethodDefRow(row), nil
}

// Param returns row i (1-based) of the Param table.
func (a *Assembly) Param(i uint32) (*ParamRow, error) {
	row, err := a.Tables.Row(token.Param, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newParamRow(row), nil
}

// ParamRange returns [lo, hi) into the Param table for MethodDef row
// methodIdx, per the standard "this method's param list runs to the
// next method's param list, or to the end of the table" convention.
func (a *Assembly) ParamRange(methodIdx uint32) (lo, hi uint32, err error) {
	m, err := a.MethodDef(methodIdx)
	if err != nil || m == nil {
		return 0, 0, err
	}
	lo = m.ParamList
	hi = a.Tables.RowCount(token.Param) + 1
	if next, err := a.MethodDef(methodIdx + 1); err == nil && next != nil {
		hi = next.ParamList
	}
	return lo, hi, nil
}

// Field returns row i (1-based) of the Field table.
func (a *Assembly) Field(i uint32) (*FieldRow, error) {
	row, err := a.Tables.Row(token.Field, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newFieldRow(row), nil
}

// TypeRef returns row i (1-based) of the TypeRef table.
func (a *Assembly) TypeRef(i uint32) (*TypeRefRow, error) {
	row, err := a.Tables.Row(token.TypeRef, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newTypeRefRow(row), nil
}

// MemberRef returns row i (1-based) of the MemberRef table.
func (a *Assembly) MemberRef(i uint32) (*MemberRefRow, error) {
	row, err := a.Tables.Row(token.MemberRef, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newMemberRefRow(row), nil
}

// Constant returns row i (1-based) of the Constant table.
func (a *Assembly) Constant(i uint32) (*ConstantRow, error) {
	row, err := a.Tables.Row(token.Constant, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newConstantRow(row), nil
}

// CustomAttribute returns row i (1-based) of the CustomAttribute table.
func (a *Assembly) CustomAttribute(i uint32) (*CustomAttributeRow, error) {
	row, err := a.Tables.Row(token.CustomAttribute, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newCustomAttributeRow(row), nil
}

// AssemblyRow returns row i (1-based, conventionally 1) of the
// Assembly table.
func (a *Assembly) AssemblyRow(i uint32) (*AssemblyRow, error) {
	row, err := a.Tables.Row(token.Assembly, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newAssemblyRow(row), nil
}

// AssemblyRef returns row i (1-based) of the AssemblyRef table.
func (a *Assembly) AssemblyRef(i uint32) (*AssemblyRefRow, error) {
	row, err := a.Tables.Row(token.AssemblyRef, i)
	if err != nil || row == nil {
		return nil, err
	}
	return newAssemblyRefRow(row), nil
}

// NativeImports returns the native import descriptors (best-effort
// enrichment, not all assemblies have any beyond the CLR bootstrap
// thunk).
func (a *Assembly) NativeImports() ([]*pe.ImportDescriptor, error) {
	return a.File.ParseImportDirectory()
}

// NativeExports returns the native export table (best-effort
// enrichment, empty for almost all managed assemblies).
func (a *Assembly) NativeExports() ([]*pe.ExportedFunction, error) {
	return a.File.ParseExportDirectory()
}

// DebugDirectories returns the PE debug directory entries, which for a
// managed assembly usually name the PDB it was built with.
func (a *Assembly) DebugDirectories() ([]*pe.DebugDirectory, error) {
	return a.File.ParseDebugDirectories()
}

func (a *Assembly) String() string {
	name, _ := a.Name()
	return fmt.Sprintf("Assembly(%s)", name)
}
