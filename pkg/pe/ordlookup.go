package pe

import (
	"fmt"
	"strings"
)

// ws2OrdNames covers the handful of winsock ordinal exports commonly
// seen forwarded from CLR bootstrap imports; it is not an exhaustive
// ordinal table for ws2_32.dll.
var ws2OrdNames = map[uint64]string{
	1:  "accept",
	2:  "bind",
	3:  "closesocket",
	4:  "connect",
	9:  "htons",
	16: "recv",
	19: "send",
	23: "socket",
	111: "WSAStartup",
}

// oleaut32OrdNames covers the handful of OLE automation ordinal exports
// seen in native interop thunks; not exhaustive.
var oleaut32OrdNames = map[uint64]string{
	2:   "SysAllocString",
	6:   "SysFreeString",
	150: "VariantInit",
	158: "VariantClear",
}

var ordNames = map[string]map[uint64]string{
	"ws2_32.dll":   ws2OrdNames,
	"wsock32.dll":  ws2OrdNames,
	"oleaut32.dll": oleaut32OrdNames,
}

// OrdLookup resolves a well-known ordinal export to its function name.
// makeName controls the fallback for unknown ordinals: synthesize
// "ord<N>" if true, otherwise return "".
func OrdLookup(libname string, ord uint64, makeName bool) string {
	if names, ok := ordNames[strings.ToLower(libname)]; ok {
		if name, ok := names[ord]; ok {
			return name
		}
	}
	if makeName {
		return fmt.Sprintf("ord%d", ord)
	}
	return ""
}
