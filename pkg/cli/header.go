package cli

import (
	"fmt"

	"clrmeta/pkg/bin"
	"clrmeta/pkg/pe"
)

// MetadataRootSignature is the "BSJB" magic at the start of the
// metadata root.
const MetadataRootSignature = 0x424A5342

// Header is the 72-byte CLI header located by data directory #14. The
// source's field name carried a typo (`minot_runtime_version`); this
// implementation names it correctly.
type Header struct {
	Cb                      uint32
	MajorRuntimeVersion     uint16
	MinorRuntimeVersion     uint16
	MetaData                pe.ImageDataDirectory
	Flags                   uint32
	EntryPointToken         uint32
	Resources               pe.ImageDataDirectory
	StrongNameSignature     pe.ImageDataDirectory
	CodeManagerTable        pe.ImageDataDirectory
	VTableFixups            pe.ImageDataDirectory
	ExportAddressTableJumps pe.ImageDataDirectory
	ManagedNativeHeader     pe.ImageDataDirectory
}

// HasFlag reports whether the header's Flags field has the named
// COMIMAGE_FLAGS_* bit set (see pe.CLIRuntimeFlags).
func (h *Header) HasFlag(name string) bool {
	bit, ok := pe.CLIRuntimeFlags[name]
	return ok && h.Flags&bit == bit
}

func readDataDirectory(c *bin.Cursor) (pe.ImageDataDirectory, error) {
	va, err := c.U32()
	if err != nil {
		return pe.ImageDataDirectory{}, err
	}
	size, err := c.U32()
	if err != nil {
		return pe.ImageDataDirectory{}, err
	}
	return pe.ImageDataDirectory{VirtualAddress: va, Size: size}, nil
}

// ReadHeader locates the CLI header via the optional header's 15th data
// directory (index 14) and decodes it.
func ReadHeader(f *pe.File) (*Header, error) {
	dir := f.Optional.DataDirectory(pe.ImageDirectoryEntryCLRHeader)
	if dir.VirtualAddress == 0 {
		return nil, fmt.Errorf("%w: CLI header", ErrMissingDataDirectory)
	}
	raw, err := f.DataAt(dir.VirtualAddress, 72)
	if err != nil {
		return nil, err
	}
	c := bin.NewCursor(raw)

	h := &Header{}
	if h.Cb, err = c.U32(); err != nil {
		return nil, err
	}
	if h.MajorRuntimeVersion, err = c.U16(); err != nil {
		return nil, err
	}
	if h.MinorRuntimeVersion, err = c.U16(); err != nil {
		return nil, err
	}
	if h.MetaData, err = readDataDirectory(c); err != nil {
		return nil, err
	}
	if h.Flags, err = c.U32(); err != nil {
		return nil, err
	}
	if h.EntryPointToken, err = c.U32(); err != nil {
		return nil, err
	}
	if h.Resources, err = readDataDirectory(c); err != nil {
		return nil, err
	}
	if h.StrongNameSignature, err = readDataDirectory(c); err != nil {
		return nil, err
	}
	if h.CodeManagerTable, err = readDataDirectory(c); err != nil {
		return nil, err
	}
	if h.VTableFixups, err = readDataDirectory(c); err != nil {
		return nil, err
	}
	if h.ExportAddressTableJumps, err = readDataDirectory(c); err != nil {
		return nil, err
	}
	if h.ManagedNativeHeader, err = readDataDirectory(c); err != nil {
		return nil, err
	}
	return h, nil
}

// StreamHeader names one sub-region of the metadata root.
type StreamHeader struct {
	Offset uint32 // relative to the metadata root
	Size   uint32
	Name   string
}

// MetadataRoot is the decoded metadata root header: signature, version
// string, and the stream directory. The root's own backing bytes
// (rooted at the CLI header's MetaData directory) are kept so stream
// sub-slices can be cut out of it.
type MetadataRoot struct {
	MajorVersion  uint16
	MinorVersion  uint16
	VersionString string
	Flags         uint16
	Streams       []StreamHeader

	data []byte
}

// Stream returns the named stream's sub-slice of the metadata root. It
// returns nil, nil if the stream is absent, and a bin.ErrTruncated-class
// error if the stream directory entry's offset/size run past the end
// of the metadata root (a corrupt or hostile file).
func (m *MetadataRoot) Stream(name string) ([]byte, error) {
	for _, s := range m.Streams {
		if s.Name != name {
			continue
		}
		end := int(s.Offset) + int(s.Size)
		if s.Offset > uint32(len(m.data)) || end < int(s.Offset) || end > len(m.data) {
			return nil, fmt.Errorf("%w: stream %q at offset %d size %d exceeds metadata root of %d bytes",
				bin.ErrTruncated, name, s.Offset, s.Size, len(m.data))
		}
		return m.data[s.Offset:end], nil
	}
	return nil, nil
}

// ReadMetadataRoot decodes the metadata root located by the CLI
// header's MetaData data directory.
func ReadMetadataRoot(f *pe.File, h *Header) (*MetadataRoot, error) {
	data, err := f.DataAt(h.MetaData.VirtualAddress, h.MetaData.Size)
	if err != nil {
		return nil, err
	}

	c := bin.NewCursor(data)
	sig, err := c.U32()
	if err != nil {
		return nil, err
	}
	if sig != MetadataRootSignature {
		return nil, &pe.ErrBadMagic{Where: "metadata root", Expected: MetadataRootSignature, Found: sig}
	}

	root := &MetadataRoot{data: data}
	if root.MajorVersion, err = c.U16(); err != nil {
		return nil, err
	}
	if root.MinorVersion, err = c.U16(); err != nil {
		return nil, err
	}
	if _, err = c.U32(); err != nil { // reserved
		return nil, err
	}
	if root.VersionString, err = c.AlignedString(0); err != nil {
		return nil, err
	}
	if root.Flags, err = c.U16(); err != nil { // reserved flags
		return nil, err
	}
	streamCount, err := c.U16()
	if err != nil {
		return nil, err
	}

	for i := uint16(0); i < streamCount; i++ {
		var s StreamHeader
		if s.Offset, err = c.U32(); err != nil {
			return nil, err
		}
		if s.Size, err = c.U32(); err != nil {
			return nil, err
		}
		if s.Name, err = c.PaddedName(4); err != nil {
			return nil, err
		}
		root.Streams = append(root.Streams, s)
	}

	for _, required := range []string{"#Strings", "#Blob", "#GUID"} {
		streamData, err := root.Stream(required)
		if err != nil {
			return nil, err
		}
		if streamData == nil {
			return nil, &ErrMissingStream{Name: required}
		}
	}
	if uncompressed, err := root.Stream("#-"); err != nil {
		return nil, err
	} else if uncompressed != nil {
		return nil, ErrUnsupportedUncompressedTables
	}
	if tables, err := root.Stream("#~"); err != nil {
		return nil, err
	} else if tables == nil {
		return nil, &ErrMissingStream{Name: "#~"}
	}

	return root, nil
}
