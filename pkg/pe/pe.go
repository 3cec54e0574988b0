package pe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
)

// ErrBadMagic reports a magic-number mismatch at one of the fixed
// validation points in the container: the DOS header, the PE signature,
// or (from the cli package) the metadata root.
type ErrBadMagic struct {
	Where    string
	Expected uint32
	Found    uint32
}

func (e *ErrBadMagic) Error() string {
	return fmt.Sprintf("pe: bad magic at %s: expected 0x%X, found 0x%X", e.Where, e.Expected, e.Found)
}

// ErrUnknownOptionalHeaderMagic is returned when the optional header's
// magic field is neither the PE32 nor the PE32+ value.
type ErrUnknownOptionalHeaderMagic struct {
	Magic uint16
}

func (e *ErrUnknownOptionalHeaderMagic) Error() string {
	return fmt.Sprintf("pe: unknown optional header magic 0x%X", e.Magic)
}

// ErrTruncatedSection is returned when a section's declared raw data
// range runs past the end of the backing file.
var ErrTruncatedSection = errors.New("pe: truncated section")

// ErrMissingSection is returned when an RVA does not fall within any
// section and cannot be resolved against the header region either.
var ErrMissingSection = errors.New("pe: rva not covered by any section")

// File is a parsed PE/COFF container: DOS stub, COFF header, optional
// header, and section table, plus the RVA<->file-offset translation the
// rest of the loader needs to reach the CLI header and metadata root.
type File struct {
	Path     string
	Dos      ImageDosHeader
	COFF     ImageFileHeader
	Optional OptionalHeader
	Sections []*Section

	data      mmap.MMap
	dataLen   int
	reader    *bytes.Reader
	headerEnd int
}

// Open memory-maps path read-only and parses its PE/COFF container.
// The returned File keeps the mapping alive; call Close when done.
func Open(path string) (*File, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	data, err := mmap.Map(handle, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	f := &File{
		Path:    path,
		data:    data,
		dataLen: len(data),
		reader:  bytes.NewReader(data),
	}
	if err := f.parse(); err != nil {
		_ = data.Unmap()
		return nil, err
	}
	return f, nil
}

// Close releases the underlying memory mapping. Any byte slices obtained
// from the File (section data, DataAt views) must not be used afterward.
func (f *File) Close() error {
	if f.data == nil {
		return nil
	}
	err := f.data.Unmap()
	f.data = nil
	return err
}

// RawData returns the full mapped file content.
func (f *File) RawData() []byte {
	return f.data
}

func (f *File) readStruct(offset int, v interface{}) error {
	if _, err := f.reader.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	return binary.Read(f.reader, binary.LittleEndian, v)
}

func (f *File) parse() error {
	if err := f.readStruct(0, &f.Dos); err != nil {
		return err
	}
	if uint32(f.Dos.E_magic) != ImageDOSSignature {
		return &ErrBadMagic{Where: "DOS", Expected: ImageDOSSignature, Found: uint32(f.Dos.E_magic)}
	}
	if int(f.Dos.E_lfanew) <= 0 || int(f.Dos.E_lfanew) > f.dataLen {
		return errors.New("pe: invalid e_lfanew value")
	}

	offset := int(f.Dos.E_lfanew)
	var signature uint32
	if err := f.readStruct(offset, &signature); err != nil {
		return err
	}
	if signature != ImageNTSignature {
		return &ErrBadMagic{Where: "PE", Expected: ImageNTSignature, Found: signature}
	}
	offset += 4

	if err := f.readStruct(offset, &f.COFF); err != nil {
		return err
	}
	offset += sizeOf(f.COFF)

	optionalHeaderOffset := offset
	var magic uint16
	if err := f.readStruct(optionalHeaderOffset, &magic); err != nil {
		return err
	}

	switch magic {
	case ImageNTOptionalHdr32Magic:
		var h32 ImageOptionalHeader32
		if err := f.readStruct(optionalHeaderOffset, &h32); err != nil {
			return err
		}
		f.Optional = OptionalHeader{
			Magic:               h32.Magic,
			ImageBase:           uint64(h32.ImageBase),
			SectionAlignment:    h32.SectionAlignment,
			FileAlignment:       h32.FileAlignment,
			AddressOfEntryPoint: h32.AddressOfEntryPoint,
			SizeOfImage:         h32.SizeOfImage,
			SizeOfHeaders:       h32.SizeOfHeaders,
			Header32:            &h32,
		}
		offset += sizeOf(h32)
	case ImageNTOptionalHdr64Magic:
		var h64 ImageOptionalHeader64
		if err := f.readStruct(optionalHeaderOffset, &h64); err != nil {
			return err
		}
		f.Optional = OptionalHeader{
			Magic:               h64.Magic,
			ImageBase:           h64.ImageBase,
			SectionAlignment:    h64.SectionAlignment,
			FileAlignment:       h64.FileAlignment,
			AddressOfEntryPoint: h64.AddressOfEntryPoint,
			SizeOfImage:         h64.SizeOfImage,
			SizeOfHeaders:       h64.SizeOfHeaders,
			Header64:            &h64,
		}
		offset += sizeOf(h64)
	default:
		return &ErrUnknownOptionalHeaderMagic{Magic: magic}
	}

	numRvaAndSizes := f.numberOfRvaAndSizes()
	if numRvaAndSizes > ImageNumberOfDirectoryEntries {
		log.Printf("WARNING: suspicious NumberOfRvaAndSizes in the optional header: 0x%x", numRvaAndSizes)
		numRvaAndSizes = ImageNumberOfDirectoryEntries
	}
	f.Optional.DataDirectories = make([]ImageDataDirectory, numRvaAndSizes)
	for i := uint32(0); i < numRvaAndSizes; i++ {
		if f.dataLen-offset < sizeOf(ImageDataDirectory{}) {
			break
		}
		if err := f.readStruct(offset, &f.Optional.DataDirectories[i]); err != nil {
			return err
		}
		offset += sizeOf(ImageDataDirectory{})
	}

	sectionOffset := optionalHeaderOffset + int(f.COFF.SizeOfOptionalHeader)
	if err := f.parseSections(sectionOffset); err != nil {
		return err
	}
	f.calculateHeaderEnd(sectionOffset + int(f.COFF.NumberOfSections)*sizeOf(ImageSectionHeader{}))

	if f.SectionByRVA(f.Optional.AddressOfEntryPoint) == nil {
		log.Printf("WARNING: AddressOfEntryPoint lies outside the section boundaries: 0x%x", f.Optional.AddressOfEntryPoint)
	}

	return nil
}

func (f *File) numberOfRvaAndSizes() uint32 {
	if f.Optional.Header64 != nil {
		return f.Optional.Header64.NumberOfRvaAndSizes
	}
	return f.Optional.Header32.NumberOfRvaAndSizes
}

type byVAddr []*Section

func (a byVAddr) Len() int           { return len(a) }
func (a byVAddr) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byVAddr) Less(i, j int) bool { return a[i].VirtualAddress < a[j].VirtualAddress }

func (f *File) parseSections(offset int) error {
	n := int(f.COFF.NumberOfSections)
	f.Sections = make([]*Section, 0, n)
	for i := 0; i < n; i++ {
		s := &Section{}
		if err := f.readStruct(offset, &s.ImageSectionHeader); err != nil {
			return err
		}
		offset += sizeOf(s.ImageSectionHeader)

		start := int(s.PointerToRawData)
		end := start + int(s.SizeOfRawData)
		if s.SizeOfRawData > 0 && (start < 0 || end > f.dataLen) {
			return fmt.Errorf("%w: section %q declares [%d,%d), file is %d bytes", ErrTruncatedSection, s.NameString(), start, end, f.dataLen)
		}
		if s.SizeOfRawData > 0 {
			s.RawData = make([]byte, s.SizeOfRawData)
			copy(s.RawData, f.data[start:end])
		}
		f.Sections = append(f.Sections, s)
	}

	sort.Sort(byVAddr(f.Sections))
	for i, s := range f.Sections {
		if i == len(f.Sections)-1 {
			s.nextHeaderRva = 0
		} else {
			s.nextHeaderRva = f.Sections[i+1].VirtualAddress
		}
	}
	return nil
}

func (f *File) fileAlignment() uint32 {
	return f.Optional.FileAlignment
}

func (f *File) sectionAlignment() uint32 {
	return f.Optional.SectionAlignment
}

// adjustFileAlignment mirrors the Windows loader's 512-byte hard floor:
// a FileAlignment below 0x200 is used as-is, otherwise pointers are
// rounded down to the nearest 0x200 boundary.
func (f *File) adjustFileAlignment(pointer uint32) uint32 {
	align := f.fileAlignment()
	if align < ImageFileAlignmentHardcoded {
		return pointer
	}
	return (pointer / ImageFileAlignmentHardcoded) * ImageFileAlignmentHardcoded
}

func (f *File) adjustSectionAlignment(pointer uint32) uint32 {
	fileAlign := f.fileAlignment()
	sectionAlign := f.sectionAlignment()
	if int(sectionAlign) < os.Getpagesize() {
		sectionAlign = fileAlign
	} else if sectionAlign < 0x80 {
		sectionAlign = 0x80
	}
	if sectionAlign != 0 && pointer%sectionAlign != 0 {
		return sectionAlign * (pointer / sectionAlign)
	}
	return pointer
}

// SectionByRVA returns the section containing rva, or nil if none does.
func (f *File) SectionByRVA(rva uint32) *Section {
	for _, s := range f.Sections {
		size := MaxUInt32(s.SizeOfRawData, s.Misc_VirtualSize_PhysicalAddress)
		vaddr := f.adjustSectionAlignment(s.VirtualAddress)
		if s.nextHeaderRva != 0 && s.nextHeaderRva > s.VirtualAddress && vaddr+size > s.nextHeaderRva {
			size = s.nextHeaderRva - vaddr
		}
		if vaddr <= rva && rva < vaddr+size {
			return s
		}
	}
	return nil
}

// SectionByOffset returns the section whose raw data range contains the
// given file offset, or nil if none does.
func (f *File) SectionByOffset(offset int) *Section {
	for _, s := range f.Sections {
		if s.PointerToRawData == 0 {
			continue
		}
		p := f.adjustFileAlignment(s.PointerToRawData)
		if int(p) <= offset && offset < int(p+s.SizeOfRawData) {
			return s
		}
	}
	return nil
}

// RVAToFileOffset translates a virtual address into a file offset using
// the section table, falling back to treating the value as an
// already-a-file-offset when it falls within the header region (some
// tools emit data directories pointing at headers rather than a
// section, which has no RVA of its own to map through).
func (f *File) RVAToFileOffset(rva uint32) (int, error) {
	s := f.SectionByRVA(rva)
	if s == nil {
		if int(rva) < f.headerEnd {
			return int(rva), nil
		}
		return 0, fmt.Errorf("%w: rva 0x%x", ErrMissingSection, rva)
	}
	vaddr := f.adjustSectionAlignment(s.VirtualAddress)
	pointer := f.adjustFileAlignment(s.PointerToRawData)
	return int(rva-vaddr) + int(pointer), nil
}

// DataAt returns a view of length bytes at rva. length == 0 means "to the
// end of the containing section".
func (f *File) DataAt(rva, length uint32) ([]byte, error) {
	offset, err := f.RVAToFileOffset(rva)
	if err != nil {
		return nil, err
	}
	end := offset + int(length)
	if length == 0 {
		if s := f.SectionByRVA(rva); s != nil {
			end = int(f.adjustFileAlignment(s.PointerToRawData)) + int(s.SizeOfRawData)
		} else {
			end = f.dataLen
		}
	}
	if offset < 0 || end > f.dataLen || end < offset {
		return nil, fmt.Errorf("%w: range [%d,%d) outside file of size %d", ErrTruncatedSection, offset, end, f.dataLen)
	}
	return f.data[offset:end], nil
}

// StringAtRVA returns the NUL-terminated ASCII string starting at rva.
func (f *File) StringAtRVA(rva uint32) (string, error) {
	offset, err := f.RVAToFileOffset(rva)
	if err != nil {
		return "", err
	}
	end := offset
	for end < f.dataLen && f.data[end] != 0 {
		end++
	}
	if end >= f.dataLen {
		return "", io.ErrUnexpectedEOF
	}
	return string(f.data[offset:end]), nil
}

// calculateHeaderEnd mirrors the teacher's handling of PE files with no
// raw-data sections at all: the header region extends either to the end
// of the section table or to the lowest section file pointer, whichever
// is larger.
func (f *File) calculateHeaderEnd(afterSectionTable int) {
	min := 0
	for _, s := range f.Sections {
		if s.PointerToRawData == 0 {
			continue
		}
		p := int(f.adjustFileAlignment(s.PointerToRawData))
		if min == 0 || p < min {
			min = p
		}
	}
	if min == 0 || min < afterSectionTable {
		f.headerEnd = afterSectionTable
	} else {
		f.headerEnd = min
	}
}
