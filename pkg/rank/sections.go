package rank

import (
	"regexp"
	"strings"
)

// Section boundaries: a blank line, a newline followed by a markdown heading
// (1-3 '#' then whitespace), or a newline followed by a numbered list item.
// The heading/number itself belongs to the following section, so only the
// leading newline is consumed for those alternatives.
var sectionBoundaryRe = regexp.MustCompile(`(\n\s*\n)|(\n#{1,3}\s)|(\n\d+[.\)]\s)`)

// splitSections splits cleaned text into semantic sections, trimmed, with
// empties dropped, indexed from 0.
func splitSections(text string) []string {
	matches := sectionBoundaryRe.FindAllStringSubmatchIndex(text, -1)

	var sections []string
	prev := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		// Group 1 (blank line) consumes the whole separator; the heading and
		// numbered-item alternatives consume only the newline.
		if m[2] < 0 {
			end = start + 1
		}
		sections = append(sections, text[prev:start])
		prev = end
	}
	sections = append(sections, text[prev:])

	out := sections[:0]
	for _, s := range sections {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
