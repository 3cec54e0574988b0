package pe

import (
	"encoding/binary"
	"log"
)

// ImportedFunction is a single entry of an import descriptor's thunk
// table: either a named function (hint/name pair) or an import by
// ordinal.
type ImportedFunction struct {
	Name       string
	Ordinal    uint16
	ByOrdinal  bool
	ThunkRVA   uint32
}

// ImportDescriptor names one DLL this image imports from and the
// functions pulled from it. Managed assemblies compiled by the CLR
// typically carry exactly one, importing `_CorExeMain`/`_CorDllMain`
// from mscoree.dll as a native bootstrap thunk.
type ImportDescriptor struct {
	Module  string
	Imports []*ImportedFunction
}

// ParseImportDirectory walks the import directory (data directory #1),
// resolving DLL names and thunk entries. A zeroed descriptor terminates
// the list per the PE convention. If a descriptor cannot be read, the
// descriptors parsed so far are returned together with the error. A DLL
// or function name that fails its charset check is replaced with
// "<invalid>", and a descriptor whose thunk table cannot be walked is
// logged with the standard log package and kept without its imports.
func (f *File) ParseImportDirectory() ([]*ImportDescriptor, error) {
	dir := f.Optional.DataDirectory(ImageDirectoryEntryImport)
	if dir.VirtualAddress == 0 {
		return nil, nil
	}

	const descriptorSize = 20 // 5 x uint32
	var descriptors []*ImportDescriptor

	rva := dir.VirtualAddress
	for i := 0; i < 4096; i++ { // hard ceiling against a corrupt, non-terminating table
		raw, err := f.DataAt(rva, descriptorSize)
		if err != nil {
			return descriptors, err
		}
		originalFirstThunk := binary.LittleEndian.Uint32(raw[0:4])
		nameRVA := binary.LittleEndian.Uint32(raw[12:16])
		firstThunk := binary.LittleEndian.Uint32(raw[16:20])
		if originalFirstThunk == 0 && nameRVA == 0 && firstThunk == 0 {
			return descriptors, nil
		}

		name, err := f.StringAtRVA(nameRVA)
		if err != nil || !validDosFilename([]byte(name)) {
			name = string(invalidImportName)
		}
		desc := &ImportDescriptor{Module: name}

		thunkRVA := originalFirstThunk
		if thunkRVA == 0 {
			thunkRVA = firstThunk
		}
		imports, err := f.parseThunkTable(thunkRVA, desc.Module)
		if err != nil {
			log.Printf("WARNING: import directory for %q: %v", desc.Module, err)
		} else {
			desc.Imports = imports
		}

		descriptors = append(descriptors, desc)
		rva += descriptorSize
	}
	return descriptors, nil
}

func (f *File) parseThunkTable(rva uint32, module string) ([]*ImportedFunction, error) {
	var imports []*ImportedFunction
	is64 := f.Optional.Header64 != nil
	entrySize := uint32(4)
	ordinalFlag := uint64(ImageOrdinalFlag32)
	if is64 {
		entrySize = 8
		ordinalFlag = 1 << 63
	}

	for i := 0; i < 65536; i++ {
		raw, err := f.DataAt(rva, entrySize)
		if err != nil {
			return imports, err
		}
		var data uint64
		if is64 {
			data = binary.LittleEndian.Uint64(raw)
		} else {
			data = uint64(binary.LittleEndian.Uint32(raw))
		}
		if data == 0 {
			break
		}

		imp := &ImportedFunction{ThunkRVA: rva}
		if data&ordinalFlag != 0 {
			imp.ByOrdinal = true
			imp.Ordinal = uint16(data & 0xFFFF)
			if name := OrdLookup(module, uint64(imp.Ordinal), false); name != "" {
				imp.Name = name
				imp.ByOrdinal = false
			}
		} else {
			hintNameRVA := uint32(data & 0x7FFFFFFF)
			name, err := f.StringAtRVA(hintNameRVA + 2)
			if err == nil && validFuncName([]byte(name)) {
				imp.Name = name
			} else {
				imp.Name = string(invalidImportName)
			}
		}
		imports = append(imports, imp)
		rva += entrySize
	}
	return imports, nil
}
