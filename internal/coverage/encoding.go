package coverage

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	fullyPrefix     = "C:"
	partialPrefix   = "P:"
	uncoveredPrefix = "U:"
	segmentSep      = ";"
	lineSep         = ","
)

func encode(fully, partial, uncovered []int) string {
	var sb strings.Builder
	sb.WriteString(fullyPrefix)
	writeLines(&sb, fully)
	sb.WriteString(segmentSep + partialPrefix)
	writeLines(&sb, partial)
	sb.WriteString(segmentSep + uncoveredPrefix)
	writeLines(&sb, uncovered)
	return sb.String()
}

func writeLines(sb *strings.Builder, lines []int) {
	for i, line := range lines {
		if i > 0 {
			sb.WriteString(lineSep)
		}
		sb.WriteString(strconv.Itoa(line))
	}
}

// ParseEncoding decodes an encoded coverage string back into a Builder.
// The three segments must appear in C, P, U order.
func ParseEncoding(s string) (*Builder, error) {
	segments := strings.Split(s, segmentSep)
	if len(segments) != 3 {
		return nil, fmt.Errorf("invalid coverage encoding %q: expected 3 segments, got %d", s, len(segments))
	}

	b := NewBuilder()
	expected := []struct {
		prefix string
		state  LineState
	}{
		{fullyPrefix, FullyCovered},
		{partialPrefix, PartiallyCovered},
		{uncoveredPrefix, Uncovered},
	}

	for i, seg := range segments {
		want := expected[i]
		if !strings.HasPrefix(seg, want.prefix) {
			return nil, fmt.Errorf("invalid coverage encoding %q: segment %d must start with %q", s, i+1, want.prefix)
		}
		body := strings.TrimPrefix(seg, want.prefix)
		if body == "" {
			continue
		}
		for _, field := range strings.Split(body, lineSep) {
			line, err := strconv.Atoi(field)
			if err != nil || line < 1 {
				return nil, fmt.Errorf("invalid line number %q in coverage encoding", field)
			}
			if prev, seen := b.lines[line]; seen && prev != want.state {
				return nil, fmt.Errorf("line %d appears as both %s and %s", line, prev, want.state)
			}
			b.Add(line, want.state)
		}
	}

	return b, nil
}
