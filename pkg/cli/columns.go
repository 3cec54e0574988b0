package cli

import "clrmeta/pkg/token"

type columnKind int

const (
	colU8 columnKind = iota
	colU16
	colU32
	colStr
	colGuid
	colBlob
	colTableIdx
	colCoded
)

type column struct {
	name   string
	kind   columnKind
	target token.Table    // only for colTableIdx
	coded  CodedIndexKind // only for colCoded
}

func (c column) width(sizes *IndexSizes) int {
	switch c.kind {
	case colU8:
		return 1
	case colU16:
		return 2
	case colU32:
		return 4
	case colStr:
		return sizes.StringSize
	case colGuid:
		return sizes.GuidSize
	case colBlob:
		return sizes.BlobSize
	case colTableIdx:
		return sizes.TableSize(c.target)
	case colCoded:
		return sizes.CodedSize(c.coded)
	}
	return 0
}

func u8(name string) column  { return column{name: name, kind: colU8} }
func u16(name string) column { return column{name: name, kind: colU16} }
func u32(name string) column { return column{name: name, kind: colU32} }
func str(name string) column { return column{name: name, kind: colStr} }
func guid(name string) column { return column{name: name, kind: colGuid} }
func blob(name string) column { return column{name: name, kind: colBlob} }
func idx(name string, t token.Table) column {
	return column{name: name, kind: colTableIdx, target: t}
}
func coded(name string, k CodedIndexKind) column {
	return column{name: name, kind: colCoded, coded: k}
}

// tableSchemas holds the fixed ECMA-335 §II.22 column list for every
// defined table kind, in declaration order.
var tableSchemas = map[token.Table][]column{
	token.Module: {u16("Generation"), str("Name"), guid("Mvid"), guid("EncId"), guid("EncBaseId")},
	token.TypeRef: {coded("ResolutionScope", ResolutionScope), str("Name"), str("Namespace")},
	token.TypeDef: {
		u32("Flags"), str("Name"), str("Namespace"),
		coded("Extends", TypeDefOrRef), idx("FieldList", token.Field), idx("MethodList", token.MethodDef),
	},
	token.FieldPtr: {idx("Field", token.Field)},
	token.Field:    {u16("Flags"), str("Name"), blob("Signature")},
	token.MethodPtr: {idx("Method", token.MethodDef)},
	token.MethodDef: {
		u32("RVA"), u16("ImplFlags"), u16("Flags"), str("Name"), blob("Signature"), idx("ParamList", token.Param),
	},
	token.ParamPtr: {idx("Param", token.Param)},
	token.Param:    {u16("Flags"), u16("Sequence"), str("Name")},
	token.InterfaceImpl: {idx("Class", token.TypeDef), coded("Interface", TypeDefOrRef)},
	token.MemberRef:     {coded("Class", MemberRefParent), str("Name"), blob("Signature")},
	token.Constant:      {u8("Type"), u8("Padding"), coded("Parent", HasConstant), blob("Value")},
	token.CustomAttribute: {
		coded("Parent", HasCustomAttribute), coded("Type", CustomAttributeType), blob("Value"),
	},
	token.FieldMarshal: {coded("Parent", HasFieldMarshal), blob("NativeType")},
	token.DeclSecurity:  {u16("Action"), coded("Parent", HasDeclSecurity), blob("PermissionSet")},
	token.ClassLayout:   {u16("PackingSize"), u32("ClassSize"), idx("Parent", token.TypeDef)},
	token.FieldLayout:   {u32("Offset"), idx("Field", token.Field)},
	token.StandAloneSig: {blob("Signature")},
	token.EventMap:      {idx("Parent", token.TypeDef), idx("EventList", token.Event)},
	token.EventPtr:      {idx("Event", token.Event)},
	token.Event:         {u16("EventFlags"), str("Name"), coded("EventType", TypeDefOrRef)},
	token.PropertyMap:   {idx("Parent", token.TypeDef), idx("PropertyList", token.Property)},
	token.PropertyPtr:   {idx("Property", token.Property)},
	token.Property:      {u16("Flags"), str("Name"), blob("Type")},
	token.MethodSemantics: {
		u16("Semantics"), idx("Method", token.MethodDef), coded("Association", HasSemantics),
	},
	token.MethodImpl: {
		idx("Class", token.TypeDef), coded("MethodBody", MethodDefOrRef), coded("MethodDeclaration", MethodDefOrRef),
	},
	token.ModuleRef: {str("Name")},
	token.TypeSpec:  {blob("Signature")},
	token.ImplMap: {
		u16("MappingFlags"), coded("MemberForwarded", MemberForwarded), str("ImportName"), idx("ImportScope", token.ModuleRef),
	},
	token.FieldRVA: {u32("RVA"), idx("Field", token.Field)},
	token.EncLog:   {u32("Token"), u32("FuncCode")},
	token.EncMap:   {u32("Token")},
	token.Assembly: {
		u32("HashAlgId"), u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"),
		u32("Flags"), blob("PublicKey"), str("Name"), str("Culture"),
	},
	token.AssemblyProcessor: {u32("Processor")},
	token.AssemblyOS:        {u32("OSPlatformId"), u32("OSMajorVersion"), u32("OSMinorVersion")},
	token.AssemblyRef: {
		u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"),
		u32("Flags"), blob("PublicKeyOrToken"), str("Name"), str("Culture"), blob("HashValue"),
	},
	token.AssemblyRefProcessor: {u32("Processor"), idx("AssemblyRef", token.AssemblyRef)},
	token.AssemblyRefOS: {
		u32("OSPlatformId"), u32("OSMajorVersion"), u32("OSMinorVersion"), idx("AssemblyRef", token.AssemblyRef),
	},
	token.File: {u32("Flags"), str("Name"), blob("HashValue")},
	token.ExportedType: {
		u32("Flags"), idx("TypeDefId", token.TypeDef), str("TypeName"), str("TypeNamespace"), coded("Implementation", Implementation),
	},
	token.ManifestResource: {
		u32("Offset"), u32("Flags"), str("Name"), coded("Implementation", Implementation),
	},
	token.NestedClass: {idx("NestedClass", token.TypeDef), idx("EnclosingClass", token.TypeDef)},
	token.GenericParam: {
		u16("Number"), u16("Flags"), coded("Owner", TypeOrMethodDef), str("Name"),
	},
	token.MethodSpec: {coded("Method", MethodDefOrRef), blob("Instantiation")},
	token.GenericParamConstraint: {
		idx("Owner", token.GenericParam), coded("Constraint", TypeDefOrRef),
	},
}

func tableColumnWidth(t token.Table, sizes *IndexSizes) (int, bool) {
	cols, ok := tableSchemas[t]
	if !ok {
		return 0, false
	}
	width := 0
	for _, c := range cols {
		width += c.width(sizes)
	}
	return width, true
}
