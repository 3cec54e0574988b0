package pe

import (
	"encoding/binary"
	"fmt"
)

// DebugDirectory is one IMAGE_DEBUG_DIRECTORY entry. For Type ==
// CodeView, PdbPath/PdbGUID/PdbAge are populated from the embedded
// RSDS (PDB 7.0) record; other debug types are returned with just
// their raw header fields.
type DebugDirectory struct {
	Type             uint32
	TimeDateStamp    uint32
	PointerToRawData uint32
	SizeOfData       uint32

	PdbPath string
	PdbGUID GUID
	PdbAge  uint32
}

// ParseDebugDirectories walks the debug directory (data directory #6),
// which in a managed assembly usually names the PDB produced alongside
// it.
func (f *File) ParseDebugDirectories() ([]*DebugDirectory, error) {
	dir := f.Optional.DataDirectory(ImageDirectoryEntryDebug)
	if dir.VirtualAddress == 0 || dir.Size == 0 {
		return nil, nil
	}

	const entrySize = 28
	var dirs []*DebugDirectory
	for offset := uint32(0); offset+entrySize <= dir.Size; offset += entrySize {
		raw, err := f.DataAt(dir.VirtualAddress+offset, entrySize)
		if err != nil {
			return dirs, err
		}
		d := &DebugDirectory{
			Type:             binary.LittleEndian.Uint32(raw[12:16]),
			TimeDateStamp:    binary.LittleEndian.Uint32(raw[4:8]),
			SizeOfData:       binary.LittleEndian.Uint32(raw[16:20]),
			PointerToRawData: binary.LittleEndian.Uint32(raw[24:28]),
		}

		if d.Type == ImageDebugTypeCodeView && d.SizeOfData >= 24 {
			cv := f.data[d.PointerToRawData : d.PointerToRawData+d.SizeOfData]
			if len(cv) >= 24 && binary.LittleEndian.Uint32(cv[0:4]) == CvInfoPDB70Signature {
				d.PdbGUID = GuidFromWindowsArray([16]byte(cv[4:20]))
				d.PdbAge = binary.LittleEndian.Uint32(cv[20:24])
				d.PdbPath = nulTerminated(cv[24:])
			} else if len(cv) >= 8 && binary.LittleEndian.Uint32(cv[0:4]) == CvInfoPDB20Signature {
				d.PdbAge = binary.LittleEndian.Uint32(cv[4:8])
				if len(cv) > 16 {
					d.PdbPath = nulTerminated(cv[16:])
				}
			} else {
				return dirs, fmt.Errorf("pe: unrecognized CodeView signature at debug entry %d", len(dirs))
			}
		}

		dirs = append(dirs, d)
	}
	return dirs, nil
}

func nulTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
