// Package token implements the CLI metadata token: a uint32 packing a
// table number and a 1-based row id, the way method bodies and the
// debugger API address a single metadata row directly (as opposed to a
// coded index, which first picks a target table from a short list).
package token

import "fmt"

// Table identifies one of the 45 metadata table kinds by its bit number
// in the Valid/Sorted bitmasks, the same numbering the token's high
// byte uses.
type Table uint8

// The 45 defined table kinds (0x00-0x2C), numbered per ECMA-335 §II.22.
const (
	Module                 Table = 0x00
	TypeRef                Table = 0x01
	TypeDef                Table = 0x02
	FieldPtr               Table = 0x03
	Field                  Table = 0x04
	MethodPtr              Table = 0x05
	MethodDef              Table = 0x06
	ParamPtr                Table = 0x07
	Param                  Table = 0x08
	InterfaceImpl          Table = 0x09
	MemberRef              Table = 0x0A
	Constant               Table = 0x0B
	CustomAttribute        Table = 0x0C
	FieldMarshal           Table = 0x0D
	DeclSecurity           Table = 0x0E
	ClassLayout            Table = 0x0F
	FieldLayout            Table = 0x10
	StandAloneSig          Table = 0x11
	EventMap               Table = 0x12
	EventPtr               Table = 0x13
	Event                  Table = 0x14
	PropertyMap            Table = 0x15
	PropertyPtr            Table = 0x16
	Property               Table = 0x17
	MethodSemantics        Table = 0x18
	MethodImpl             Table = 0x19
	ModuleRef              Table = 0x1A
	TypeSpec               Table = 0x1B
	ImplMap                Table = 0x1C
	FieldRVA               Table = 0x1D
	EncLog                 Table = 0x1E
	EncMap                 Table = 0x1F
	Assembly               Table = 0x20
	AssemblyProcessor      Table = 0x21
	AssemblyOS             Table = 0x22
	AssemblyRef            Table = 0x23
	AssemblyRefProcessor   Table = 0x24
	AssemblyRefOS          Table = 0x25
	File                   Table = 0x26
	ExportedType           Table = 0x27
	ManifestResource       Table = 0x28
	NestedClass            Table = 0x29
	GenericParam           Table = 0x2A
	MethodSpec             Table = 0x2B
	GenericParamConstraint Table = 0x2C
)

var tableNames = map[Table]string{
	Module: "Module", TypeRef: "TypeRef", TypeDef: "TypeDef", FieldPtr: "FieldPtr",
	Field: "Field", MethodPtr: "MethodPtr", MethodDef: "MethodDef", ParamPtr: "ParamPtr",
	Param: "Param", InterfaceImpl: "InterfaceImpl", MemberRef: "MemberRef", Constant: "Constant",
	CustomAttribute: "CustomAttribute", FieldMarshal: "FieldMarshal", DeclSecurity: "DeclSecurity",
	ClassLayout: "ClassLayout", FieldLayout: "FieldLayout", StandAloneSig: "StandAloneSig",
	EventMap: "EventMap", EventPtr: "EventPtr", Event: "Event", PropertyMap: "PropertyMap",
	PropertyPtr: "PropertyPtr", Property: "Property", MethodSemantics: "MethodSemantics",
	MethodImpl: "MethodImpl", ModuleRef: "ModuleRef", TypeSpec: "TypeSpec", ImplMap: "ImplMap",
	FieldRVA: "FieldRVA", EncLog: "EncLog", EncMap: "EncMap", Assembly: "Assembly",
	AssemblyProcessor: "AssemblyProcessor", AssemblyOS: "AssemblyOS", AssemblyRef: "AssemblyRef",
	AssemblyRefProcessor: "AssemblyRefProcessor", AssemblyRefOS: "AssemblyRefOS", File: "File",
	ExportedType: "ExportedType", ManifestResource: "ManifestResource", NestedClass: "NestedClass",
	GenericParam: "GenericParam", MethodSpec: "MethodSpec", GenericParamConstraint: "GenericParamConstraint",
}

func (t Table) String() string {
	if name, ok := tableNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Table(0x%02X)", uint8(t))
}

// Token is a uint32 whose high byte is a Table and whose low 3 bytes
// are a 1-based row id; a row id of 0 means null.
type Token uint32

// For composes a token from a table kind and a 1-based row id.
func For(t Table, row uint32) Token {
	return Token(uint32(t)<<24 | (row & 0x00FFFFFF))
}

// Table returns the token's table kind.
func (t Token) Table() Table { return Table(t >> 24) }

// Row returns the token's 1-based row id; 0 means null.
func (t Token) Row() uint32 { return uint32(t) & 0x00FFFFFF }

// IsNull reports whether the token's row id is 0.
func (t Token) IsNull() bool { return t.Row() == 0 }

func (t Token) String() string {
	return fmt.Sprintf("%s[%d]", t.Table(), t.Row())
}
