package cli

import "clrmeta/pkg/token"

// ModuleRow is table 0x00.
type ModuleRow struct {
	Generation uint16
	NameIdx    uint32
	MvidIdx    uint32
	EncIdIdx   uint32
	EncBaseIdx uint32
}

func newModuleRow(r *Row) *ModuleRow {
	return &ModuleRow{
		Generation: uint16(r.Uint32("Generation")),
		NameIdx:    r.StringIndex("Name"),
		MvidIdx:    r.GuidIndex("Mvid"),
		EncIdIdx:   r.GuidIndex("EncId"),
		EncBaseIdx: r.GuidIndex("EncBaseId"),
	}
}

// TypeDefRow is table 0x02.
type TypeDefRow struct {
	Flags        uint32
	NameIdx      uint32
	NamespaceIdx uint32
	Extends      *Row
	FieldList    uint32
	MethodList   uint32
	row          *Row
}

func newTypeDefRow(r *Row) *TypeDefRow {
	return &TypeDefRow{
		Flags:        r.Uint32("Flags"),
		NameIdx:      r.StringIndex("Name"),
		NamespaceIdx: r.StringIndex("Namespace"),
		FieldList:    r.TableIndex("FieldList"),
		MethodList:   r.TableIndex("MethodList"),
		row:          r,
	}
}

// ExtendsTarget decodes the Extends coded index; a zero row id means
// this type has no base type (the case for System.Object).
func (t *TypeDefRow) ExtendsTarget() (token.Table, uint32, error) {
	return t.row.Coded("Extends")
}

// MethodDefRow is table 0x06.
type MethodDefRow struct {
	RVA         uint32
	ImplFlags   uint16
	Flags       uint16
	NameIdx     uint32
	SignatureIdx uint32
	ParamList   uint32
}

func newMethodDefRow(r *Row) *MethodDefRow {
	return &MethodDefRow{
		RVA:          r.Uint32("RVA"),
		ImplFlags:    uint16(r.Uint32("ImplFlags")),
		Flags:        uint16(r.Uint32("Flags")),
		NameIdx:      r.StringIndex("Name"),
		SignatureIdx: r.BlobIndex("Signature"),
		ParamList:    r.TableIndex("ParamList"),
	}
}

// ParamRow is table 0x08.
type ParamRow struct {
	Flags    uint16
	Sequence uint16
	NameIdx  uint32
}

func newParamRow(r *Row) *ParamRow {
	return &ParamRow{
		Flags:    uint16(r.Uint32("Flags")),
		Sequence: uint16(r.Uint32("Sequence")),
		NameIdx:  r.StringIndex("Name"),
	}
}

// FieldRow is table 0x04.
type FieldRow struct {
	Flags        uint16
	NameIdx      uint32
	SignatureIdx uint32
}

func newFieldRow(r *Row) *FieldRow {
	return &FieldRow{
		Flags:        uint16(r.Uint32("Flags")),
		NameIdx:      r.StringIndex("Name"),
		SignatureIdx: r.BlobIndex("Signature"),
	}
}

// AssemblyRow is table 0x20 — distinct from the loaded Assembly type;
// see spec.md §9's naming-collision note.
type AssemblyRow struct {
	HashAlgId      uint32
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	PublicKeyIdx   uint32
	NameIdx        uint32
	CultureIdx     uint32
}

func newAssemblyRow(r *Row) *AssemblyRow {
	return &AssemblyRow{
		HashAlgId:      r.Uint32("HashAlgId"),
		MajorVersion:   uint16(r.Uint32("MajorVersion")),
		MinorVersion:   uint16(r.Uint32("MinorVersion")),
		BuildNumber:    uint16(r.Uint32("BuildNumber")),
		RevisionNumber: uint16(r.Uint32("RevisionNumber")),
		Flags:          r.Uint32("Flags"),
		PublicKeyIdx:   r.BlobIndex("PublicKey"),
		NameIdx:        r.StringIndex("Name"),
		CultureIdx:     r.StringIndex("Culture"),
	}
}

// AssemblyRefRow is table 0x23.
type AssemblyRefRow struct {
	MajorVersion        uint16
	MinorVersion        uint16
	BuildNumber         uint16
	RevisionNumber      uint16
	Flags               uint32
	PublicKeyOrTokenIdx uint32
	NameIdx             uint32
	CultureIdx          uint32
	HashValueIdx        uint32
}

func newAssemblyRefRow(r *Row) *AssemblyRefRow {
	return &AssemblyRefRow{
		MajorVersion:        uint16(r.Uint32("MajorVersion")),
		MinorVersion:        uint16(r.Uint32("MinorVersion")),
		BuildNumber:         uint16(r.Uint32("BuildNumber")),
		RevisionNumber:      uint16(r.Uint32("RevisionNumber")),
		Flags:               r.Uint32("Flags"),
		PublicKeyOrTokenIdx: r.BlobIndex("PublicKeyOrToken"),
		NameIdx:             r.StringIndex("Name"),
		CultureIdx:          r.StringIndex("Culture"),
		HashValueIdx:        r.BlobIndex("HashValue"),
	}
}

// TypeRefRow is table 0x01.
type TypeRefRow struct {
	NameIdx      uint32
	NamespaceIdx uint32
	row          *Row
}

func newTypeRefRow(r *Row) *TypeRefRow {
	return &TypeRefRow{NameIdx: r.StringIndex("Name"), NamespaceIdx: r.StringIndex("Namespace"), row: r}
}

// ResolutionScope decodes the ResolutionScope coded index.
func (t *TypeRefRow) ResolutionScope() (token.Table, uint32, error) {
	return t.row.Coded("ResolutionScope")
}

// MemberRefRow is table 0x0A.
type MemberRefRow struct {
	NameIdx      uint32
	SignatureIdx uint32
	row          *Row
}

func newMemberRefRow(r *Row) *MemberRefRow {
	return &MemberRefRow{NameIdx: r.StringIndex("Name"), SignatureIdx: r.BlobIndex("Signature"), row: r}
}

// Class decodes the MemberRefParent coded index.
func (m *MemberRefRow) Class() (token.Table, uint32, error) {
	return m.row.Coded("Class")
}

// ConstantRow is table 0x0B.
type ConstantRow struct {
	Type     uint8
	ValueIdx uint32
	row      *Row
}

func newConstantRow(r *Row) *ConstantRow {
	return &ConstantRow{Type: uint8(r.Uint32("Type")), ValueIdx: r.BlobIndex("Value"), row: r}
}

// Parent decodes the HasConstant coded index.
func (c *ConstantRow) Parent() (token.Table, uint32, error) {
	return c.row.Coded("Parent")
}

// CustomAttributeRow is table 0x0C.
type CustomAttributeRow struct {
	ValueIdx uint32
	row      *Row
}

func newCustomAttributeRow(r *Row) *CustomAttributeRow {
	return &CustomAttributeRow{ValueIdx: r.BlobIndex("Value"), row: r}
}

// Parent decodes the HasCustomAttribute coded index.
func (a *CustomAttributeRow) Parent() (token.Table, uint32, error) {
	return a.row.Coded("Parent")
}

// Type decodes the CustomAttributeType coded index.
func (a *CustomAttributeRow) Type() (token.Table, uint32, error) {
	return a.row.Coded("Type")
}
