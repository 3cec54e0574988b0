package pe

import (
	"encoding/binary"
)

// ExportedFunction is one entry of the export directory: a named or
// ordinal-only function, possibly forwarded to another DLL (the
// "forwarder" string, e.g. "NTDLL.RtlAllocateHeap").
type ExportedFunction struct {
	Name      string
	Ordinal   uint16
	RVA       uint32
	Forwarder string
}

// ParseExportDirectory walks the export directory (data directory #0).
// Pure native .NET assemblies rarely export anything; this accessor
// exists for the mixed-mode (C++/CLI) case where it does.
func (f *File) ParseExportDirectory() ([]*ExportedFunction, error) {
	dir := f.Optional.DataDirectory(ImageDirectoryEntryExport)
	if dir.VirtualAddress == 0 {
		return nil, nil
	}

	const headerSize = 40
	raw, err := f.DataAt(dir.VirtualAddress, headerSize)
	if err != nil {
		return nil, err
	}

	base := binary.LittleEndian.Uint32(raw[16:20])
	numberOfFunctions := binary.LittleEndian.Uint32(raw[20:24])
	numberOfNames := binary.LittleEndian.Uint32(raw[24:28])
	addressOfFunctions := binary.LittleEndian.Uint32(raw[28:32])
	addressOfNames := binary.LittleEndian.Uint32(raw[32:36])
	addressOfNameOrdinals := binary.LittleEndian.Uint32(raw[36:40])

	functions := make([]uint32, 0, numberOfFunctions)
	for i := uint32(0); i < numberOfFunctions; i++ {
		fn, err := f.DataAt(addressOfFunctions+i*4, 4)
		if err != nil {
			break
		}
		functions = append(functions, binary.LittleEndian.Uint32(fn))
	}

	named := make(map[uint16]bool, numberOfNames)
	var exports []*ExportedFunction
	for i := uint32(0); i < numberOfNames; i++ {
		nameRVARaw, err := f.DataAt(addressOfNames+i*4, 4)
		if err != nil {
			break
		}
		ordRaw, err := f.DataAt(addressOfNameOrdinals+i*2, 2)
		if err != nil {
			break
		}
		ordinal := binary.LittleEndian.Uint16(ordRaw)
		name, err := f.StringAtRVA(binary.LittleEndian.Uint32(nameRVARaw))
		if err != nil {
			continue
		}
		if !validFuncName([]byte(name)) {
			name = string(invalidImportName)
		}
		if int(ordinal) >= len(functions) {
			continue
		}
		named[ordinal] = true

		rva := functions[ordinal]
		exp := &ExportedFunction{Name: name, Ordinal: uint16(base) + ordinal, RVA: rva}
		if rva >= dir.VirtualAddress && rva < dir.VirtualAddress+dir.Size {
			exp.Forwarder, _ = f.StringAtRVA(rva)
		}
		exports = append(exports, exp)
	}

	for i, rva := range functions {
		if rva == 0 || named[uint16(i)] {
			continue
		}
		exp := &ExportedFunction{Ordinal: uint16(base) + uint16(i), RVA: rva}
		if rva >= dir.VirtualAddress && rva < dir.VirtualAddress+dir.Size {
			exp.Forwarder, _ = f.StringAtRVA(rva)
		}
		exports = append(exports, exp)
	}

	return exports, nil
}
