// Package jacoco converts JaCoCo XML reports into per-file line coverage.
package jacoco

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjy-dev/covpub/internal/coverage"
	"github.com/zjy-dev/covpub/internal/logger"
)

// ErrMalformedReport marks a report that cannot be parsed.
var ErrMalformedReport = errors.New("malformed JaCoCo XML report")

// ReportError is returned when a single report file cannot be converted.
type ReportError struct {
	Path string
	Err  error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("failed to convert report %s: %v", e.Path, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// Entry pairs the coverage of one source file with the unresolved reference
// the report uses for it.
type Entry struct {
	Builder *coverage.Builder
	Source  coverage.SourceRef
}

// IsConvertible reports whether path is a regular file with an .xml extension.
func IsConvertible(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".xml") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ConvertFile converts the report at path.
func ConvertFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReportError{Path: path, Err: err}
	}
	defer f.Close()

	entries, err := Convert(f)
	if err != nil {
		return nil, &ReportError{Path: path, Err: err}
	}

	logger.Debug("Converted report %s: %d source files", path, len(entries))
	return entries, nil
}

// Convert parses a report and returns one Entry per source file element.
// Entries are never merged, even if two of them share a SourceRef.
//
// The DOCTYPE of JaCoCo reports is read as a plain directive; no DTD is
// loaded.
func Convert(r io.Reader) ([]Entry, error) {
	var report Report
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	var entries []Entry
	for _, pkg := range report.AllPackages() {
		for _, sf := range pkg.SourceFiles {
			entry, err := convertSourceFile(pkg.Name, sf)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func convertSourceFile(pkgName string, sf SourceFile) (Entry, error) {
	if sf.Name == "" {
		return Entry{}, fmt.Errorf("%w: sourcefile without name in package %q", ErrMalformedReport, pkgName)
	}

	b := coverage.NewBuilder()
	for _, line := range sf.Lines {
		if line.Nr < 1 {
			return Entry{}, fmt.Errorf("%w: invalid line number %d in %s", ErrMalformedReport, line.Nr, sf.Name)
		}
		if line.Mi < 0 || line.Mb < 0 || line.Cb < 0 {
			return Entry{}, fmt.Errorf("%w: negative counter on line %d in %s", ErrMalformedReport, line.Nr, sf.Name)
		}
		b.Add(line.Nr, Classify(line.Mi, line.Mb, line.Cb))
	}

	return Entry{
		Builder: b,
		Source:  coverage.NewSourceRef(pkgName, sf.Name),
	}, nil
}

// Classify maps the counters of one line to its coverage state.
//
// A line without branches is judged by its instructions alone. Once a line has
// any branch, only the branch counters decide.
func Classify(missedInstructions, missedBranches, coveredBranches int) coverage.LineState {
	if missedBranches == 0 && coveredBranches == 0 {
		if missedInstructions == 0 {
			return coverage.FullyCovered
		}
		return coverage.Uncovered
	}

	switch {
	case missedBranches == 0:
		return coverage.FullyCovered
	case coveredBranches == 0:
		return coverage.Uncovered
	default:
		return coverage.PartiallyCovered
	}
}
