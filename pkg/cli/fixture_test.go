package cli

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"clrmeta/pkg/pe"
)

// metadataStream is one named stream written into a synthetic metadata root.
type metadataStream struct {
	name string
	data []byte
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// buildMetadataRoot assembles a BSJB metadata root with the given
// streams, in order, matching the layout ReadMetadataRoot decodes.
func buildMetadataRoot(streams []metadataStream) []byte {
	version := pad4([]byte("v4.0.30319\x00"))

	header := &bytes.Buffer{}
	put32 := func(v uint32) { _ = binary.Write(header, binary.LittleEndian, v) }
	put16 := func(v uint16) { _ = binary.Write(header, binary.LittleEndian, v) }

	put32(MetadataRootSignature)
	put16(1) // major
	put16(1) // minor
	put32(0) // reserved
	put32(uint32(len(version)))
	header.Write(version)
	put16(0)                      // reserved flags
	put16(uint16(len(streams))) // stream count

	// Stream directory entries, followed by payloads; offsets are
	// relative to the start of the metadata root.
	dirSize := 0
	for _, s := range streams {
		dirSize += 8 + len(pad4([]byte(s.name + "\x00")))
	}
	headerLen := header.Len()
	payloadOffset := headerLen + dirSize

	body := &bytes.Buffer{}
	offset := payloadOffset
	for _, s := range streams {
		put32(uint32(offset))
		put32(uint32(len(s.data)))
		header.Write(pad4([]byte(s.name + "\x00")))
		body.Write(s.data)
		offset += len(s.data)
	}

	out := append([]byte{}, header.Bytes()...)
	out = append(out, body.Bytes()...)
	return out
}

const cliHeaderRVA = 0x2000
const cliHeaderSize = 72
const metadataRootRVA = cliHeaderRVA + cliHeaderSize

// buildCLIHeader assembles the 72-byte CLI header, pointing MetaData at
// metaRVA/metaSize and leaving every other data directory zeroed.
func buildCLIHeader(metaRVA, metaSize uint32) []byte {
	buf := &bytes.Buffer{}
	put32 := func(v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }
	put16 := func(v uint16) { _ = binary.Write(buf, binary.LittleEndian, v) }

	put32(72)          // Cb
	put16(2)           // MajorRuntimeVersion
	put16(5)           // MinorRuntimeVersion
	put32(metaRVA)     // MetaData.VirtualAddress
	put32(metaSize)    // MetaData.Size
	put32(1)           // Flags: COMIMAGE_FLAGS_ILONLY
	put32(0)           // EntryPointToken
	for i := 0; i < 6; i++ {
		put32(0) // Resources, StrongNameSignature, CodeManagerTable,
		put32(0) // VTableFixups, ExportAddressTableJumps, ManagedNativeHeader
	}
	return buf.Bytes()
}

// buildManagedPE assembles a full PE32 image with a single section
// holding the CLI header immediately followed by the metadata root, and
// points data directory #14 at the CLI header.
func buildManagedPE(t *testing.T, cliHeader, metadataRoot []byte) []byte {
	return buildManagedPEDir(t, cliHeader, metadataRoot, true)
}

// buildManagedPEDir is buildManagedPE with control over whether the
// optional header's CLR-header data directory is populated; withCLRDir
// == false reproduces a native (non-managed) image.
func buildManagedPEDir(t *testing.T, cliHeader, metadataRoot []byte, withCLRDir bool) []byte {
	t.Helper()
	const sectionRVA = cliHeaderRVA
	const fileAlignment = 0x200
	const sectionAlignment = 0x1000
	const optionalHeaderSize = 96
	const numDirs = pe.ImageNumberOfDirectoryEntries

	buf := &bytes.Buffer{}
	write := func(v interface{}) {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("binary.Write: %v", err)
		}
	}

	dos := pe.ImageDosHeader{E_magic: pe.ImageDOSSignature, E_lfanew: 0x40}
	write(dos)
	if got := buf.Len(); got != 0x40 {
		t.Fatalf("dos header size = %d, want 0x40", got)
	}
	write(uint32(pe.ImageNTSignature))

	coff := pe.ImageFileHeader{
		Machine:              0x014C,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(optionalHeaderSize) + uint16(numDirs)*8,
		Characteristics:      uint16(pe.ImageCharacteristics["IMAGE_FILE_EXECUTABLE_IMAGE"] | pe.ImageCharacteristics["IMAGE_FILE_32BIT_MACHINE"]),
	}
	write(coff)

	opt := pe.ImageOptionalHeader32{
		Magic:               pe.ImageNTOptionalHdr32Magic,
		AddressOfEntryPoint: sectionRVA,
		ImageBase:           0x400000,
		SectionAlignment:    sectionAlignment,
		FileAlignment:       fileAlignment,
		SizeOfImage:         sectionAlignment * 2,
		SizeOfHeaders:       fileAlignment,
		NumberOfRvaAndSizes: numDirs,
	}
	write(opt)

	cliRVA := sectionRVA
	metaRVA := sectionRVA + uint32(len(cliHeader))
	for i := 0; i < numDirs; i++ {
		if withCLRDir && i == pe.ImageDirectoryEntryCLRHeader {
			write(pe.ImageDataDirectory{VirtualAddress: uint32(cliRVA), Size: uint32(len(cliHeader))})
		} else {
			write(pe.ImageDataDirectory{})
		}
	}

	var name [pe.ImageSizeOfShortName]uint8
	copy(name[:], ".text")
	sectionData := append(append([]byte{}, cliHeader...), metadataRoot...)
	sectionPointer := uint32(fileAlignment)
	section := pe.ImageSectionHeader{
		Name:                             name,
		Misc_VirtualSize_PhysicalAddress: uint32(len(sectionData)),
		VirtualAddress:                   uint32(sectionRVA),
		SizeOfRawData:                    uint32(len(sectionData)),
		PointerToRawData:                 sectionPointer,
		Characteristics:                  pe.SectionCharacteristics["IMAGE_SCN_MEM_READ"] | pe.SectionCharacteristics["IMAGE_SCN_CNT_INITIALIZED_DATA"],
	}
	write(section)

	for uint32(buf.Len()) < sectionPointer {
		buf.WriteByte(0)
	}
	buf.Write(sectionData)
	for buf.Len()%fileAlignment != 0 {
		buf.WriteByte(0)
	}

	_ = metaRVA
	return buf.Bytes()
}

// buildManagedPE64 is buildManagedPE for a PE32+ (64-bit) image: same
// single-section layout (CLI header immediately followed by the
// metadata root), but with a 64-bit optional header and 8-byte image
// base, matching what a native x64 managed build produces.
func buildManagedPE64(t *testing.T, cliHeader, metadataRoot []byte) []byte {
	t.Helper()
	const sectionRVA = cliHeaderRVA
	const fileAlignment = 0x200
	const sectionAlignment = 0x1000
	const numDirs = pe.ImageNumberOfDirectoryEntries

	buf := &bytes.Buffer{}
	write := func(v interface{}) {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			t.Fatalf("binary.Write: %v", err)
		}
	}

	dos := pe.ImageDosHeader{E_magic: pe.ImageDOSSignature, E_lfanew: 0x40}
	write(dos)
	if got := buf.Len(); got != 0x40 {
		t.Fatalf("dos header size = %d, want 0x40", got)
	}
	write(uint32(pe.ImageNTSignature))

	coff := pe.ImageFileHeader{
		Machine:              0x8664, // IMAGE_FILE_MACHINE_AMD64
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(112) + uint16(numDirs)*8,
		Characteristics:      uint16(pe.ImageCharacteristics["IMAGE_FILE_EXECUTABLE_IMAGE"] | pe.ImageCharacteristics["IMAGE_FILE_LARGE_ADDRESS_AWARE"]),
	}
	write(coff)

	opt := pe.ImageOptionalHeader64{
		Magic:               pe.ImageNTOptionalHdr64Magic,
		AddressOfEntryPoint: sectionRVA,
		ImageBase:           0x140000000,
		SectionAlignment:    sectionAlignment,
		FileAlignment:       fileAlignment,
		SizeOfImage:         sectionAlignment * 2,
		SizeOfHeaders:       fileAlignment,
		NumberOfRvaAndSizes: numDirs,
	}
	write(opt)

	cliRVA := sectionRVA
	for i := 0; i < numDirs; i++ {
		if i == pe.ImageDirectoryEntryCLRHeader {
			write(pe.ImageDataDirectory{VirtualAddress: uint32(cliRVA), Size: uint32(len(cliHeader))})
		} else {
			write(pe.ImageDataDirectory{})
		}
	}

	var name [pe.ImageSizeOfShortName]uint8
	copy(name[:], ".text")
	sectionData := append(append([]byte{}, cliHeader...), metadataRoot...)
	sectionPointer := uint32(fileAlignment)
	section := pe.ImageSectionHeader{
		Name:                             name,
		Misc_VirtualSize_PhysicalAddress: uint32(len(sectionData)),
		VirtualAddress:                   uint32(sectionRVA),
		SizeOfRawData:                    uint32(len(sectionData)),
		PointerToRawData:                 sectionPointer,
		Characteristics:                  pe.SectionCharacteristics["IMAGE_SCN_MEM_READ"] | pe.SectionCharacteristics["IMAGE_SCN_CNT_INITIALIZED_DATA"],
	}
	write(section)

	for uint32(buf.Len()) < sectionPointer {
		buf.WriteByte(0)
	}
	buf.Write(sectionData)
	for buf.Len()%fileAlignment != 0 {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.exe")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
