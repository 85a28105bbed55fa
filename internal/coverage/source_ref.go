package coverage

import (
	"path"
	"strings"
)

// SourceRef identifies a source file the way a coverage report does: by
// package and bare file name. It becomes a path only once resolved against a
// source tree.
type SourceRef struct {
	// Package is dot-separated, e.g. "firstPackage.secondPackage". Empty for
	// the default package.
	Package string
	// FileName is the bare file name, e.g. "ClassWithPackage.java".
	FileName string
}

// NewSourceRef builds a SourceRef from a package name that may use either
// "/" or "." as separator.
func NewSourceRef(pkg, fileName string) SourceRef {
	return SourceRef{
		Package:  strings.Trim(strings.ReplaceAll(pkg, "/", "."), "."),
		FileName: fileName,
	}
}

// Segments returns the package segments followed by the file name.
func (r SourceRef) Segments() []string {
	var segs []string
	if r.Package != "" {
		segs = strings.Split(r.Package, ".")
	}
	return append(segs, r.FileName)
}

// RelativePath returns the package directories joined with the file name
// using forward slashes, e.g. "firstPackage/secondPackage/Foo.java".
func (r SourceRef) RelativePath() string {
	return path.Join(r.Segments()...)
}

// String returns the dotted form, e.g. "firstPackage.secondPackage.Foo.java".
func (r SourceRef) String() string {
	if r.Package == "" {
		return r.FileName
	}
	return r.Package + "." + r.FileName
}
