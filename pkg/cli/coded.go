package cli

import "clrmeta/pkg/token"

// codedScheme describes one of the 13 ECMA-335 coded-index schemes: an
// ordered list of target tables (position = tag value) and the number
// of low bits the tag occupies. CustomAttributeType is the one
// exception to "tag bits = ceil(log2(len(targets)))": ECMA-335 reserves
// a 3-bit tag for a 5-slot list where only tags 2 and 3 are defined
// (MethodDef and MemberRef); tags 0, 1, and 4 are reserved and never
// produced by a compliant compiler.
type codedScheme struct {
	name    string
	targets []token.Table
	tagBits uint
}

// noTable marks a reserved coded-index tag slot with no target table.
// token.Table 0 is Module, a real table, so the sentinel must sit
// outside the valid 0x00-0x2C table range.
const noTable token.Table = 0xFF

var (
	schemeTypeDefOrRef = codedScheme{"TypeDefOrRef", []token.Table{token.TypeDef, token.TypeRef, token.TypeSpec}, 2}
	schemeHasConstant  = codedScheme{"HasConstant", []token.Table{token.Field, token.Param, token.Property}, 2}
	schemeHasCustomAttribute = codedScheme{"HasCustomAttribute", []token.Table{
		token.MethodDef, token.Field, token.TypeRef, token.TypeDef, token.Param, token.InterfaceImpl,
		token.MemberRef, token.Module, token.DeclSecurity, token.Property, token.Event, token.StandAloneSig,
		token.ModuleRef, token.TypeSpec, token.Assembly, token.AssemblyRef, token.File, token.ExportedType,
		token.ManifestResource, token.GenericParam, token.GenericParamConstraint, token.MethodSpec,
	}, 5}
	schemeHasFieldMarshal = codedScheme{"HasFieldMarshal", []token.Table{token.Field, token.Param}, 1}
	schemeHasDeclSecurity = codedScheme{"HasDeclSecurity", []token.Table{token.TypeDef, token.MethodDef, token.Assembly}, 2}
	schemeMemberRefParent = codedScheme{"MemberRefParent", []token.Table{
		token.TypeDef, token.TypeRef, token.ModuleRef, token.MethodDef, token.TypeSpec,
	}, 3}
	schemeHasSemantics    = codedScheme{"HasSemantics", []token.Table{token.Event, token.Property}, 1}
	schemeMethodDefOrRef  = codedScheme{"MethodDefOrRef", []token.Table{token.MethodDef, token.MemberRef}, 1}
	schemeMemberForwarded = codedScheme{"MemberForwarded", []token.Table{token.Field, token.MethodDef}, 1}
	schemeImplementation  = codedScheme{"Implementation", []token.Table{token.File, token.AssemblyRef, token.ExportedType}, 2}
	// schemeCustomAttributeType is special-cased in decodeCoded(): 5
	// declared slots, only indices 2 (MethodDef) and 3 (MemberRef) are
	// valid targets; 0/1/4 are reserved and have no table.
	schemeCustomAttributeType = codedScheme{"CustomAttributeType", []token.Table{noTable, noTable, token.MethodDef, token.MemberRef, noTable}, 3}
	schemeResolutionScope     = codedScheme{"ResolutionScope", []token.Table{token.Module, token.ModuleRef, token.AssemblyRef, token.TypeRef}, 2}
	schemeTypeOrMethodDef     = codedScheme{"TypeOrMethodDef", []token.Table{token.TypeDef, token.MethodDef}, 1}
)

// CodedIndexKind names one of the 13 coded-index column types a row
// decoder may need to read.
type CodedIndexKind int

const (
	TypeDefOrRef CodedIndexKind = iota
	HasConstant
	HasCustomAttribute
	HasFieldMarshal
	HasDeclSecurity
	MemberRefParent
	HasSemantics
	MethodDefOrRef
	MemberForwarded
	Implementation
	CustomAttributeType
	ResolutionScope
	TypeOrMethodDef
)

var allSchemes = map[CodedIndexKind]*codedScheme{
	TypeDefOrRef:         &schemeTypeDefOrRef,
	HasConstant:          &schemeHasConstant,
	HasCustomAttribute:   &schemeHasCustomAttribute,
	HasFieldMarshal:      &schemeHasFieldMarshal,
	HasDeclSecurity:      &schemeHasDeclSecurity,
	MemberRefParent:      &schemeMemberRefParent,
	HasSemantics:         &schemeHasSemantics,
	MethodDefOrRef:       &schemeMethodDefOrRef,
	MemberForwarded:      &schemeMemberForwarded,
	Implementation:       &schemeImplementation,
	CustomAttributeType:  &schemeCustomAttributeType,
	ResolutionScope:      &schemeResolutionScope,
	TypeOrMethodDef:      &schemeTypeOrMethodDef,
}

// codedIndexSize returns 2 or 4: the byte width of this coded-index
// column given the row counts of its target tables. Per spec.md §3: 2
// bytes iff every addressable target table has row_count <= 2^(16-tagBits);
// a table with exactly that many rows still fits in the 2-byte form,
// only exceeding it forces 4.
func codedIndexSize(scheme *codedScheme, rowCounts [64]uint32) int {
	limit := uint32(1) << (16 - scheme.tagBits)
	for _, t := range scheme.targets {
		if t == noTable {
			continue // reserved slot (CustomAttributeType tags 0/1/4)
		}
		if rowCounts[t] > limit {
			return 4
		}
	}
	return 2
}

// decodeCoded splits a raw coded-index value into its target table and
// 1-based row id. A row id of 0 is "null reference", not an error. A
// tag whose slot is reserved (CustomAttributeType's 0/1/4) is only
// tolerated when the row id is itself 0 (null); any other value there
// is a genuine decode error.
func decodeCoded(scheme *codedScheme, raw uint32) (token.Table, uint32, error) {
	tagMask := uint32(1)<<scheme.tagBits - 1
	tag := raw & tagMask
	row := raw >> scheme.tagBits
	if int(tag) >= len(scheme.targets) {
		return 0, 0, &ErrInvalidCodedTag{Scheme: scheme.name, Tag: tag}
	}
	target := scheme.targets[tag]
	if target == noTable {
		if row != 0 {
			return 0, 0, &ErrInvalidCodedTag{Scheme: scheme.name, Tag: tag}
		}
		return 0, 0, nil
	}
	return target, row, nil
}
