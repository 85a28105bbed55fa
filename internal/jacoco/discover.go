package jacoco

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/zjy-dev/covpub/internal/logger"
)

// FindReports expands the configured report locations into convertible report
// files. A location is a file, a directory searched recursively for .xml files,
// or a doublestar glob such as "build/reports/jacoco/**/*.xml". Relative
// locations are taken relative to baseDir. Locations that do not exist are
// skipped. The result has no duplicates and keeps the configured order.
func FindReports(baseDir string, locations []string) ([]string, error) {
	seen := make(map[string]bool)
	var reports []string
	add := func(p string) {
		p = filepath.Clean(p)
		if seen[p] || !IsConvertible(p) {
			return
		}
		seen[p] = true
		reports = append(reports, p)
	}

	for _, loc := range locations {
		if loc == "" {
			continue
		}
		if !filepath.IsAbs(loc) {
			loc = filepath.Join(baseDir, loc)
		}

		if isGlob(loc) {
			matches, err := doublestar.Glob(loc)
			if err != nil {
				return nil, fmt.Errorf("invalid report pattern %q: %w", loc, err)
			}
			for _, m := range matches {
				add(m)
			}
			continue
		}

		info, err := os.Stat(loc)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Debug("Report location %s does not exist, skipping", loc)
				continue
			}
			return nil, fmt.Errorf("failed to stat report location %s: %w", loc, err)
		}

		if !info.IsDir() {
			add(loc)
			continue
		}

		err = filepath.WalkDir(loc, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search report directory %s: %w", loc, err)
		}
	}

	return reports, nil
}

func isGlob(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}
