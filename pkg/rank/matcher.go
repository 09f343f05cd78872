package rank

import (
	"regexp"
)

// matcher finds brand occurrences in cleaned text. Matching is
// case-insensitive on the literal brand name with word boundaries on both
// sides, so "Coway" matches "coway" but not "Cowayne".
type matcher struct {
	patterns map[string]*regexp.Regexp
}

func newMatcher(brands []string) *matcher {
	m := &matcher{patterns: make(map[string]*regexp.Regexp, len(brands))}
	for _, b := range brands {
		m.patterns[b] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(b) + `\b`)
	}
	return m
}

// firstPosition returns the byte offset of the first occurrence of brand in
// text, or -1 if absent.
func (m *matcher) firstPosition(text, brand string) int {
	re, ok := m.patterns[brand]
	if !ok {
		return -1
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// firstSection returns the index of the first section containing brand,
// or -1.
func (m *matcher) firstSection(sections []string, brand string) int {
	re, ok := m.patterns[brand]
	if !ok {
		return -1
	}
	for i, s := range sections {
		if re.MatchString(s) {
			return i
		}
	}
	return -1
}
