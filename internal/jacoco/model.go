package jacoco

import "encoding/xml"

// Report is the root element of a JaCoCo XML report. Only the elements needed
// for line coverage are modeled.
type Report struct {
	XMLName  xml.Name  `xml:"report"`
	Name     string    `xml:"name,attr"`
	Groups   []Group   `xml:"group"`
	Packages []Package `xml:"package"`
}

// Group is a JaCoCo report group, usually one module of a multi-module build.
// Groups nested inside groups are not traversed.
type Group struct {
	Name     string    `xml:"name,attr"`
	Packages []Package `xml:"package"`
}

// Package holds the source files of one package. Name uses "/" separators.
type Package struct {
	Name        string       `xml:"name,attr"`
	SourceFiles []SourceFile `xml:"sourcefile"`
}

// SourceFile holds the line counters of one source file.
type SourceFile struct {
	Name  string `xml:"name,attr"`
	Lines []Line `xml:"line"`
}

// Line holds the counters of one source line.
type Line struct {
	Nr int `xml:"nr,attr"` // line number
	Mi int `xml:"mi,attr"` // missed instructions
	Ci int `xml:"ci,attr"` // covered instructions
	Mb int `xml:"mb,attr"` // missed branches
	Cb int `xml:"cb,attr"` // covered branches
}

// AllPackages returns the top-level packages followed by the packages of
// every group.
func (r *Report) AllPackages() []Package {
	packages := make([]Package, 0, len(r.Packages))
	packages = append(packages, r.Packages...)
	for _, g := range r.Groups {
		packages = append(packages, g.Packages...)
	}
	return packages
}
