package publish

import (
	"encoding/json"
	"fmt"

	"github.com/zjy-dev/covpub/internal/coverage"
)

// Payload is the body sent to the code coverage ingestion API.
type Payload struct {
	Files []FilePayload `json:"files" yaml:"files"`
}

// FilePayload is the coverage of one file inside a Payload.
type FilePayload struct {
	Path     string `json:"path" yaml:"path"`
	Coverage string `json:"coverage" yaml:"coverage"`
}

// BuildPayload creates the payload for the given files. Files without a path
// are left out; files without coverage info are kept with an empty encoding.
func BuildPayload(files []*coverage.FileCoverage) Payload {
	payload := Payload{Files: make([]FilePayload, 0, len(files))}
	for _, f := range files {
		if f == nil || f.Path() == "" {
			continue
		}
		payload.Files = append(payload.Files, FilePayload{
			Path:     f.SlashPath(),
			Coverage: f.Encode(),
		})
	}
	return payload
}

// JSON returns the indented JSON form of the payload.
func (p Payload) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}
