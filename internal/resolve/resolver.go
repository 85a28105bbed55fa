// Package resolve finds the project-relative path of source files that a
// coverage report only names by package and file name.
package resolve

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/zjy-dev/covpub/internal/coverage"
	"github.com/zjy-dev/covpub/internal/logger"
)

// Result is the outcome of one resolution run.
type Result struct {
	// Resolved maps each found reference to its path relative to the project root.
	Resolved map[coverage.SourceRef]string
	// Unresolved holds the references not found in any search directory, sorted.
	Unresolved []coverage.SourceRef
	// Walked lists the search directories that were traversed, in order.
	Walked []string
	// OutsideRoot lists the search directories skipped because they are not
	// inside the project root.
	OutsideRoot []string
	// Visited counts the files tested against the pending patterns.
	Visited int
}

// Resolver searches source trees below a project root.
type Resolver struct {
	projectRoot string
}

// NewResolver creates a Resolver anchored at projectRoot. A relative root is
// made absolute against the working directory.
func NewResolver(projectRoot string) (*Resolver, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("project root must not be empty")
	}
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root %s: %w", projectRoot, err)
	}
	return &Resolver{projectRoot: abs}, nil
}

// ProjectRoot returns the absolute project root.
func (r *Resolver) ProjectRoot() string {
	return r.projectRoot
}

type pendingRef struct {
	ref     coverage.SourceRef
	pattern string
}

// worklist holds the patterns still to be found, indexed by file name so a
// visited file is only tested against patterns that can match it.
type worklist struct {
	byName map[string][]pendingRef
	size   int
}

func newWorklist(refs []coverage.SourceRef) *worklist {
	w := &worklist{byName: make(map[string][]pendingRef)}
	seen := make(map[coverage.SourceRef]bool)
	for _, ref := range refs {
		if seen[ref] || ref.FileName == "" {
			continue
		}
		seen[ref] = true
		w.byName[ref.FileName] = append(w.byName[ref.FileName], pendingRef{
			ref:     ref,
			pattern: Pattern(ref),
		})
		w.size++
	}
	return w
}

func (w *worklist) empty() bool {
	return w.size == 0
}

// match returns every pending reference whose pattern matches relPath and
// removes them from the worklist.
func (w *worklist) match(relPath string) []coverage.SourceRef {
	candidates := w.byName[path.Base(relPath)]
	if len(candidates) == 0 {
		return nil
	}

	var matched []coverage.SourceRef
	remaining := candidates[:0]
	for _, c := range candidates {
		if ok, err := doublestar.Match(c.pattern, relPath); err == nil && ok {
			matched = append(matched, c.ref)
			continue
		}
		remaining = append(remaining, c)
	}

	if len(remaining) == 0 {
		delete(w.byName, path.Base(relPath))
	} else {
		w.byName[path.Base(relPath)] = remaining
	}
	w.size -= len(matched)
	return matched
}

func (w *worklist) refs() []coverage.SourceRef {
	var refs []coverage.SourceRef
	for _, pending := range w.byName {
		for _, p := range pending {
			refs = append(refs, p.ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].String() < refs[j].String()
	})
	return refs
}

// Pattern returns the doublestar pattern matching any path that ends with the
// package directories followed by the file name.
func Pattern(ref coverage.SourceRef) string {
	segs := ref.Segments()
	escaped := make([]string, len(segs))
	for i, s := range segs {
		escaped[i] = escapeMeta(s)
	}
	return "**/" + strings.Join(escaped, "/")
}

func escapeMeta(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]{}\`, r) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Resolve searches searchDirs in order for the given references. The first
// matching file wins. Walking stops as soon as every reference is resolved.
//
// Relative search directories are taken relative to the project root.
// Directories outside the project root are skipped and reported in
// Result.OutsideRoot; directories that do not exist are skipped silently.
func (r *Resolver) Resolve(searchDirs []string, refs []coverage.SourceRef) *Result {
	result := &Result{Resolved: make(map[coverage.SourceRef]string)}
	pending := newWorklist(refs)

	for _, dir := range searchDirs {
		if pending.empty() {
			break
		}

		absDir := dir
		if !filepath.IsAbs(absDir) {
			absDir = filepath.Join(r.projectRoot, absDir)
		}
		absDir = filepath.Clean(absDir)

		if !r.contains(absDir) {
			result.OutsideRoot = append(result.OutsideRoot, dir)
			continue
		}

		info, err := os.Stat(absDir)
		if err != nil || !info.IsDir() {
			logger.Debug("Source files search directory %s does not exist, skipping", absDir)
			continue
		}

		logger.Debug("Searching for source files in directory: %s", absDir)
		result.Walked = append(result.Walked, dir)
		r.walk(absDir, pending, result)
	}

	result.Unresolved = pending.refs()
	return result
}

func (r *Resolver) walk(dir string, pending *worklist, result *Result) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("Skipping unreadable path %s: %v", p, err)
			if d != nil && d.IsDir() && p != dir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		result.Visited++
		rel, err := filepath.Rel(r.projectRoot, p)
		if err != nil {
			return nil
		}

		for _, ref := range pending.match(filepath.ToSlash(rel)) {
			logger.Debug("Resolved source file %s to %s", ref, rel)
			result.Resolved[ref] = rel
		}

		if pending.empty() {
			return fs.SkipAll
		}
		return nil
	})
}

func (r *Resolver) contains(absDir string) bool {
	rel, err := filepath.Rel(r.projectRoot, absDir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
