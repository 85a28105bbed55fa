// Package coverage holds per-file line coverage and its textual encoding.
//
// Coverage is accumulated in a mutable Builder while a report is converted and
// frozen into a FileCoverage once the project-relative path of the source file
// is known.
package coverage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// LineState classifies a single reported source line.
type LineState int

const (
	FullyCovered LineState = iota + 1
	PartiallyCovered
	Uncovered
)

var lineStateNames = map[LineState]string{
	FullyCovered:     "fully-covered",
	PartiallyCovered: "partially-covered",
	Uncovered:        "uncovered",
}

// String returns the lower-case name of the state.
func (s LineState) String() string {
	if name, ok := lineStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LineState(%d)", int(s))
}

// ErrAbsolutePath is returned when a FileCoverage would be built for an absolute path.
var ErrAbsolutePath = errors.New("source file path must be relative to the project root")

// Builder accumulates line states for one source file before its path is known.
// A line has at most one state; adding it again replaces the previous state.
type Builder struct {
	lines map[int]LineState
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{lines: make(map[int]LineState)}
}

// Add records the state of a line.
func (b *Builder) Add(line int, state LineState) {
	if b.lines == nil {
		b.lines = make(map[int]LineState)
	}
	b.lines[line] = state
}

// AddFullyCovered records a line whose instructions or branches were all executed.
func (b *Builder) AddFullyCovered(line int) {
	b.Add(line, FullyCovered)
}

// AddPartiallyCovered records a line where only some branches were taken.
func (b *Builder) AddPartiallyCovered(line int) {
	b.Add(line, PartiallyCovered)
}

// AddUncovered records a line that was never executed.
func (b *Builder) AddUncovered(line int) {
	b.Add(line, Uncovered)
}

// HasCoverageInfo reports whether at least one line has been recorded.
func (b *Builder) HasCoverageInfo() bool {
	return len(b.lines) > 0
}

// Encode returns the encoding of the lines accumulated so far.
func (b *Builder) Encode() string {
	fully, partial, uncovered := b.split()
	return encode(fully, partial, uncovered)
}

// Build freezes the accumulated lines into a FileCoverage for sourceFile,
// which must be relative to the project root.
func (b *Builder) Build(sourceFile string) (*FileCoverage, error) {
	if sourceFile == "" {
		return nil, fmt.Errorf("source file path must not be empty")
	}
	if filepath.IsAbs(sourceFile) || strings.HasPrefix(filepath.ToSlash(sourceFile), "/") {
		return nil, fmt.Errorf("%w: %s", ErrAbsolutePath, sourceFile)
	}

	fully, partial, uncovered := b.split()
	return &FileCoverage{
		path:      filepath.Clean(sourceFile),
		fully:     fully,
		partial:   partial,
		uncovered: uncovered,
	}, nil
}

func (b *Builder) split() (fully, partial, uncovered []int) {
	for line, state := range b.lines {
		switch state {
		case FullyCovered:
			fully = append(fully, line)
		case PartiallyCovered:
			partial = append(partial, line)
		case Uncovered:
			uncovered = append(uncovered, line)
		}
	}
	sort.Ints(fully)
	sort.Ints(partial)
	sort.Ints(uncovered)
	return fully, partial, uncovered
}

// FileCoverage is the immutable coverage of one source file.
type FileCoverage struct {
	path      string
	fully     []int
	partial   []int
	uncovered []int
}

// Path returns the project-root-relative path of the source file.
func (f *FileCoverage) Path() string {
	return f.path
}

// SlashPath returns Path with forward slashes.
func (f *FileCoverage) SlashPath() string {
	return filepath.ToSlash(f.path)
}

// FullyCovered returns the fully covered lines in ascending order.
func (f *FileCoverage) FullyCovered() []int {
	return append([]int(nil), f.fully...)
}

// PartiallyCovered returns the partially covered lines in ascending order.
func (f *FileCoverage) PartiallyCovered() []int {
	return append([]int(nil), f.partial...)
}

// Uncovered returns the uncovered lines in ascending order.
func (f *FileCoverage) Uncovered() []int {
	return append([]int(nil), f.uncovered...)
}

// HasCoverageInfo reports whether any line of the file was reported.
func (f *FileCoverage) HasCoverageInfo() bool {
	return len(f.fully) > 0 || len(f.partial) > 0 || len(f.uncovered) > 0
}

// Encode returns the "C:<lines>;P:<lines>;U:<lines>" form consumed by the ingestion API.
func (f *FileCoverage) Encode() string {
	return encode(f.fully, f.partial, f.uncovered)
}
