package cli

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"clrmeta/pkg/pe"
	"clrmeta/pkg/token"
)

// buildTableHeap assembles a `#~` stream with one row each in Module,
// TypeDef, MethodDef, and Assembly, using 2-byte heap/table/coded
// indices throughout (heapSizes = 0, every row count well under 65536).
func buildTableHeap() []byte {
	buf := &bytes.Buffer{}
	put8 := func(v uint8) { buf.WriteByte(v) }
	put16 := func(v uint16) { _ = binary.Write(buf, binary.LittleEndian, v) }
	put32 := func(v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }
	put64 := func(v uint64) { _ = binary.Write(buf, binary.LittleEndian, v) }

	put32(0) // reserved
	put8(2)  // major version
	put8(0)  // minor version
	put8(0)  // heap sizes: all heap indices are 2 bytes
	put8(0)  // reserved

	valid := uint64(1)<<uint(token.Module) | uint64(1)<<uint(token.TypeDef) |
		uint64(1)<<uint(token.MethodDef) | uint64(1)<<uint(token.Assembly)
	put64(valid)
	put64(0) // sorted

	// Row counts in ascending bit order: Module(0), TypeDef(2), MethodDef(6), Assembly(0x20).
	put32(1)
	put32(1)
	put32(1)
	put32(1)

	// Module row: Generation, Name, Mvid, EncId, EncBaseId.
	put16(0)
	put16(1) // Name -> "MyModule"
	put16(1) // Mvid -> guid heap row 1
	put16(0)
	put16(0)

	// TypeDef row: Flags, Name, Namespace, Extends(coded), FieldList, MethodList.
	put32(0x00100101) // public, auto-layout, class semantics (arbitrary but plausible)
	put16(10)          // Name -> "HelloWorld"
	put16(0)           // Namespace -> ""
	put16(0)           // Extends -> null (no base type)
	put16(1)           // FieldList -> 1 (Field table is empty)
	put16(1)           // MethodList -> 1

	// MethodDef row: RVA, ImplFlags, Flags, Name, Signature, ParamList.
	put32(0x2050)
	put16(0)
	put16(0x0091) // private | static | hidebysig
	put16(21)     // Name -> "Main"
	put16(0)      // Signature -> blob index 0 (empty)
	put16(1)      // ParamList -> 1 (Param table is empty)

	// Assembly row: HashAlgId, Major, Minor, Build, Revision, Flags, PublicKey, Name, Culture.
	put32(0x8004) // SHA1
	put16(1)
	put16(0)
	put16(0)
	put16(0)
	put32(0)
	put16(0)  // PublicKey -> blob index 0
	put16(26) // Name -> "MyAssembly"
	put16(0)  // Culture -> ""

	return buf.Bytes()
}

func buildStringsHeap() []byte {
	b := []byte{0x00}
	b = append(b, []byte("MyModule\x00")...)   // offset 1
	b = append(b, []byte("HelloWorld\x00")...) // offset 10
	b = append(b, []byte("Main\x00")...)       // offset 21
	b = append(b, []byte("MyAssembly\x00")...) // offset 26
	return b
}

func buildGuidHeap() []byte {
	return []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10,
	}
}

func buildEmptyAssemblyPE(t *testing.T) string {
	t.Helper()
	root := buildMetadataRoot([]metadataStream{
		{"#Strings", buildStringsHeap()},
		{"#GUID", buildGuidHeap()},
		{"#Blob", []byte{0x00}},
		{"#~", buildTableHeap()},
	})
	header := buildCLIHeader(metadataRootRVA, uint32(len(root)))
	data := buildManagedPE(t, header, root)
	return writeTempFile(t, data)
}

func TestLoadFileEndToEnd(t *testing.T) {
	path := buildEmptyAssemblyPE(t)
	a, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	defer a.Close()

	name, err := a.Name()
	if err != nil {
		t.Fatalf("Name() error: %v", err)
	}
	if name != "MyAssembly" {
		t.Errorf("Name() = %q, want %q", name, "MyAssembly")
	}

	mod, err := a.ModuleRow()
	if err != nil {
		t.Fatalf("ModuleRow() error: %v", err)
	}
	if mod == nil {
		t.Fatal("ModuleRow() = nil, want a row")
	}
	modName, err := a.Heaps.Strings.Get(mod.NameIdx)
	if err != nil {
		t.Fatalf("Strings.Get(mod.NameIdx) error: %v", err)
	}
	if modName != "MyModule" {
		t.Errorf("module name = %q, want %q", modName, "MyModule")
	}
	mvid, err := a.Heaps.Guids.Get(mod.MvidIdx)
	if err != nil {
		t.Fatalf("Guids.Get(mod.MvidIdx) error: %v", err)
	}
	wantGUID := pe.GuidFromWindowsArray([16]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10,
	})
	if mvid != wantGUID {
		t.Errorf("module MVID = %v, want %v", mvid, wantGUID)
	}

	typeDef, err := a.TypeDef(1)
	if err != nil {
		t.Fatalf("TypeDef(1) error: %v", err)
	}
	typeName, err := a.Heaps.Strings.Get(typeDef.NameIdx)
	if err != nil {
		t.Fatalf("Strings.Get(typeDef.NameIdx) error: %v", err)
	}
	if typeName != "HelloWorld" {
		t.Errorf("TypeDef name = %q, want %q", typeName, "HelloWorld")
	}
	if extendsTable, extendsRow, err := typeDef.ExtendsTarget(); err != nil {
		t.Fatalf("ExtendsTarget() error: %v", err)
	} else if extendsRow != 0 {
		t.Errorf("ExtendsTarget() = (%v, %d), want row 0 (null)", extendsTable, extendsRow)
	}

	method, err := a.MethodDef(1)
	if err != nil {
		t.Fatalf("MethodDef(1) error: %v", err)
	}
	methodName, err := a.Heaps.Strings.Get(method.NameIdx)
	if err != nil {
		t.Fatalf("Strings.Get(method.NameIdx) error: %v", err)
	}
	if methodName != "Main" {
		t.Errorf("MethodDef name = %q, want %q", methodName, "Main")
	}
	if method.RVA != 0x2050 {
		t.Errorf("MethodDef RVA = 0x%X, want 0x2050", method.RVA)
	}

	lo, hi, err := a.ParamRange(1)
	if err != nil {
		t.Fatalf("ParamRange(1) error: %v", err)
	}
	if lo != 1 || hi != 1 {
		t.Errorf("ParamRange(1) = (%d, %d), want (1, 1) for an empty Param table", lo, hi)
	}

	asm, err := a.AssemblyRow(1)
	if err != nil {
		t.Fatalf("AssemblyRow(1) error: %v", err)
	}
	if asm.MajorVersion != 1 {
		t.Errorf("AssemblyRow.MajorVersion = %d, want 1", asm.MajorVersion)
	}
}

func TestLoadFilePE64EndToEnd(t *testing.T) {
	root := buildMetadataRoot([]metadataStream{
		{"#Strings", buildStringsHeap()},
		{"#GUID", buildGuidHeap()},
		{"#Blob", []byte{0x00}},
		{"#~", buildTableHeap()},
	})
	header := buildCLIHeader(metadataRootRVA, uint32(len(root)))
	data := buildManagedPE64(t, header, root)
	path := writeTempFile(t, data)

	a, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	defer a.Close()

	name, err := a.Name()
	if err != nil {
		t.Fatalf("Name() error: %v", err)
	}
	if name != "MyAssembly" {
		t.Errorf("Name() = %q, want %q", name, "MyAssembly")
	}

	typeDef, err := a.TypeDef(1)
	if err != nil {
		t.Fatalf("TypeDef(1) error: %v", err)
	}
	typeName, err := a.Heaps.Strings.Get(typeDef.NameIdx)
	if err != nil {
		t.Fatalf("Strings.Get(typeDef.NameIdx) error: %v", err)
	}
	if typeName != "HelloWorld" {
		t.Errorf("TypeDef name = %q, want %q", typeName, "HelloWorld")
	}
}

func TestLoadFileMissingStream(t *testing.T) {
	root := buildMetadataRoot([]metadataStream{
		{"#Strings", buildStringsHeap()},
		{"#GUID", buildGuidHeap()},
		// #Blob intentionally omitted.
		{"#~", buildTableHeap()},
	})
	header := buildCLIHeader(metadataRootRVA, uint32(len(root)))
	data := buildManagedPE(t, header, root)
	path := writeTempFile(t, data)

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("LoadFile succeeded with a missing required stream, want an error")
	}
	var missing *ErrMissingStream
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *ErrMissingStream", err)
	}
	if missing.Name != "#Blob" {
		t.Errorf("ErrMissingStream.Name = %q, want %q", missing.Name, "#Blob")
	}
}

func TestLoadFileUncompressedTablesRejected(t *testing.T) {
	root := buildMetadataRoot([]metadataStream{
		{"#Strings", buildStringsHeap()},
		{"#GUID", buildGuidHeap()},
		{"#Blob", []byte{0x00}},
		{"#~", buildTableHeap()},
		{"#-", []byte{0x00}},
	})
	header := buildCLIHeader(metadataRootRVA, uint32(len(root)))
	data := buildManagedPE(t, header, root)
	path := writeTempFile(t, data)

	_, err := LoadFile(path)
	if err != ErrUnsupportedUncompressedTables {
		t.Fatalf("error = %v, want ErrUnsupportedUncompressedTables", err)
	}
}
