// Package pipeline runs one conversion: JaCoCo reports are converted, their
// source files resolved below the project root and the result handed to a
// publisher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zjy-dev/covpub/internal/coverage"
	"github.com/zjy-dev/covpub/internal/jacoco"
	"github.com/zjy-dev/covpub/internal/logger"
	"github.com/zjy-dev/covpub/internal/publish"
	"github.com/zjy-dev/covpub/internal/resolve"
)

// ErrNoReports is returned when no convertible report was found and skipping
// was not requested.
var ErrNoReports = errors.New(`there are no JaCoCo XML reports available which can be converted

Reason: the JaCoCo plugin was not applied to the project, or the generation of
XML reports was not activated (it is deactivated by default).

Possible solutions:
  - Activate the XML report of the 'jacocoTestReport' task:
      tasks.jacocoTestReport { reports.xml.required.set(true) }
  - Point 'reports' at the generated XML files or their directory.
  - Ignore missing reports with 'skip_on_missing_reports: true'
    (or --skip-on-missing-reports).`)

// Options configures one run.
type Options struct {
	// ProjectRoot anchors all published paths.
	ProjectRoot string
	// Reports are report files, directories or glob patterns.
	Reports []string
	// SearchDirs are searched in order for the reported source files.
	SearchDirs []string
	// SkipOnMissingReports turns a missing report into an empty result.
	SkipOnMissingReports bool
}

// WarningKind classifies a non-fatal finding.
type WarningKind string

const (
	WarningUnresolvedSources    WarningKind = "unresolved-source-files"
	WarningSearchDirOutsideRoot WarningKind = "search-dir-outside-root"
)

// Warning is a non-fatal finding of a run.
type Warning struct {
	Kind        WarningKind
	Message     string
	Sources     []coverage.SourceRef
	Directories []string
}

// Result is the outcome of Collect.
type Result struct {
	// Reports are the converted report files.
	Reports []string
	// Files are the resolved coverages in report order.
	Files    []*coverage.FileCoverage
	Warnings []Warning
}

// Payload returns the payload for the resolved files.
func (r *Result) Payload() publish.Payload {
	return publish.BuildPayload(r.Files)
}

// Publisher sends a payload to the ingestion API.
type Publisher interface {
	Publish(ctx context.Context, payload publish.Payload) error
}

// Collect converts the configured reports and resolves their source files.
// Malformed reports abort the run; unresolved files and search directories
// outside the project root become warnings.
func Collect(opts Options) (*Result, error) {
	resolver, err := resolve.NewResolver(opts.ProjectRoot)
	if err != nil {
		return nil, err
	}

	reports, err := jacoco.FindReports(resolver.ProjectRoot(), opts.Reports)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		if opts.SkipOnMissingReports {
			logger.Info("No JaCoCo XML reports found, skipping")
			return &Result{}, nil
		}
		return nil, ErrNoReports
	}

	var entries []jacoco.Entry
	for _, report := range reports {
		converted, err := jacoco.ConvertFile(report)
		if err != nil {
			return nil, err
		}
		entries = append(entries, converted...)
	}

	refs := make([]coverage.SourceRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, e.Source)
	}
	resolved := resolver.Resolve(opts.SearchDirs, refs)
	logger.Debug("Resolved %d of %d source files after visiting %d files", len(resolved.Resolved), len(resolved.Resolved)+len(resolved.Unresolved), resolved.Visited)

	result := &Result{Reports: reports}
	for _, dir := range resolved.OutsideRoot {
		result.addWarning(Warning{
			Kind:        WarningSearchDirOutsideRoot,
			Message:     fmt.Sprintf("Source files search directory '%s' is outside of the project root directory and will be ignored.", dir),
			Directories: []string{dir},
		})
	}

	for _, e := range entries {
		path, ok := resolved.Resolved[e.Source]
		if !ok {
			continue
		}
		fc, err := e.Builder.Build(path)
		if err != nil {
			return nil, fmt.Errorf("failed to build coverage for %s: %w", e.Source, err)
		}
		result.Files = append(result.Files, fc)
	}

	if len(resolved.Unresolved) > 0 {
		result.addWarning(Warning{
			Kind:        WarningUnresolvedSources,
			Message:     unresolvedMessage(resolved.Unresolved, opts.SearchDirs),
			Sources:     resolved.Unresolved,
			Directories: opts.SearchDirs,
		})
	}

	return result, nil
}

// Run collects the coverage and publishes it. Nothing is sent when no file is
// left to publish.
func Run(ctx context.Context, opts Options, publisher Publisher) (*Result, error) {
	result, err := Collect(opts)
	if err != nil {
		return nil, err
	}

	if len(result.Files) == 0 {
		logger.Info("No resolved source files to publish")
		return result, nil
	}

	if err := publisher.Publish(ctx, result.Payload()); err != nil {
		return result, fmt.Errorf("failed to publish code coverage: %w", err)
	}

	logger.Info("Published code coverage of %d files from %d reports", len(result.Files), len(result.Reports))
	return result, nil
}

func (r *Result) addWarning(w Warning) {
	logger.Warn("%s", w.Message)
	r.Warnings = append(r.Warnings, w)
}

func unresolvedMessage(refs []coverage.SourceRef, searchDirs []string) string {
	var sb strings.Builder
	sb.WriteString("Can't find the following source files:")
	for _, ref := range refs {
		sb.WriteString("\n - " + ref.RelativePath())
	}
	if len(searchDirs) == 0 {
		sb.WriteString("\nThere are no search directories configured.")
		return sb.String()
	}
	sb.WriteString("\nSearched in the following directories:")
	for _, dir := range searchDirs {
		sb.WriteString("\n - " + dir)
	}
	return sb.String()
}
