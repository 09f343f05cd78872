package rank

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// defaultSnippetRadius is the number of characters kept on each side of a
// brand mention.
const defaultSnippetRadius = 200

// snippetAround extracts a window of +-radius characters around the byte
// offset pos, snapped to word boundaries so the snippet never begins or ends
// mid-word. "..." is added only where the snippet does not touch the text
// boundary.
func snippetAround(text string, pos, radius int) string {
	runes := []rune(text)
	center := utf8.RuneCountInString(text[:pos])

	rawStart := center - radius
	if rawStart < 0 {
		rawStart = 0
	}
	rawEnd := center + radius
	if rawEnd > len(runes) {
		rawEnd = len(runes)
	}

	start := rawStart
	if start > 0 {
		start = snapForward(runes, start)
	}
	end := rawEnd
	if end < len(runes) {
		end = snapBackward(runes, end)
	}

	snippet := strings.TrimSpace(string(runes[start:end]))

	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet
}

// snapForward moves pos forward past the current word, then past whitespace.
func snapForward(runes []rune, pos int) int {
	for pos < len(runes) && !unicode.IsSpace(runes[pos]) {
		pos++
	}
	for pos < len(runes) && unicode.IsSpace(runes[pos]) {
		pos++
	}
	return pos
}

// snapBackward moves pos backward past the current word, then past
// whitespace.
func snapBackward(runes []rune, pos int) int {
	for pos > 0 && !unicode.IsSpace(runes[pos-1]) {
		pos--
	}
	for pos > 0 && unicode.IsSpace(runes[pos-1]) {
		pos--
	}
	return pos
}
