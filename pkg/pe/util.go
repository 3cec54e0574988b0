package pe

import (
	"regexp"
)

// invalidImportName is substituted for an import/export name that
// fails its charset check, so a corrupt or hostile name never reaches
// a caller that prints it or uses it as a lookup key.
var invalidImportName = []byte("<invalid>")

// MaxUInt32 returns the larger of x and y. Used when resolving a
// section's real size: some linkers leave SizeOfRawData short of the
// section's actual virtual footprint.
func MaxUInt32(x, y uint32) uint32 {
	if x > y {
		return x
	}
	return y
}

// validFuncNameRegex matches the accepted character set for a mangled
// import/export function name (imported name table entries, and
// export-by-name table entries). Anything outside this set is
// replaced with invalidImportName rather than trusted.
var validFuncNameRegex = regexp.MustCompile(`^[\pL\pN_\?@$\(\)]+$`)

func validFuncName(name []byte) bool {
	return validFuncNameRegex.Match(name)
}

// validDOSNameRegex matches the accepted character set for an
// imported DLL's module name (FAT32 8.3 short filename charset,
// http://en.wikipedia.org/wiki/8.3_filename, length unchecked since
// long module names are common and still valid). A native import
// descriptor naming a module outside this set is almost certainly
// parsing garbage rather than a real dependency.
var validDOSNameRegex = regexp.MustCompile("^[\\pL\\pN!//$%&'\\(\\)`\\-@^_\\{\\}~+,.;=\\[\\]]+$")

func validDosFilename(name []byte) bool {
	return validDOSNameRegex.Match(name)
}
