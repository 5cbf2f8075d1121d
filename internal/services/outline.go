// internal/services/outline.go
package services

import (
	"regexp"
	"strings"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
)

// Headings that mark the detailed section of an outline document
var outlineMarkers = []string{
	"### Dàn Ý Chi Tiết",
	"### Detailed Outline",
}

const outlineSeparator = "---"

var partHeading = regexp.MustCompile(`^#{2,}(\s|$)`)

// IsOutline reports whether text carries a detailed-outline marker
func IsOutline(text string) bool {
	_, ok := findMarker(text)
	return ok
}

func findMarker(text string) (int, bool) {
	for _, m := range outlineMarkers {
		if idx := strings.Index(text, m); idx >= 0 {
			return idx, true
		}
	}
	return -1, false
}

// ParseOutline splits an outline document into ordered part descriptors.
//
// The detailed section is the text between the first and second "---"
// separators. Documents without a separator fall back to everything after the
// marker line. The section is cut before every line that starts a heading of
// depth two or more; blank parts are dropped.
func ParseOutline(doc string) ([]string, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, apperrors.NewValidationError("there is no outline to process", nil)
	}
	markerAt, ok := findMarker(doc)
	if !ok {
		return nil, apperrors.NewValidationError("there is no outline to process", nil)
	}

	var section string
	if segments := strings.Split(doc, outlineSeparator); len(segments) > 1 {
		section = segments[1]
	} else {
		rest := doc[markerAt:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			section = rest[nl+1:]
		}
	}
	section = strings.TrimSpace(section)
	if section == "" {
		return nil, apperrors.NewValidationError("outline is invalid: detailed section is empty", nil)
	}

	var (
		parts   []string
		current []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		part := strings.Join(current, "\n")
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
		current = nil
	}

	for _, line := range strings.Split(section, "\n") {
		if partHeading.MatchString(line) && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()

	if len(parts) == 0 {
		return nil, apperrors.NewValidationError("outline is invalid: no parts found", nil)
	}
	return parts, nil
}
