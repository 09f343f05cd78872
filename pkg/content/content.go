// Package content cleans and validates raw platform output before rank
// extraction. Processing is pure: the same raw input always yields the same
// clean text and content hash.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// MaxContentChars bounds clean text length. Content beyond this adds
	// nothing to rank extraction and only inflates storage.
	MaxContentChars = 10_000

	// MinContentChars is the minimum clean length considered meaningful.
	MinContentChars = 50

	// quarantineRawPrefixChars bounds the raw content kept on a quarantined
	// scrape.
	quarantineRawPrefixChars = 2000
)

// RawScrape is the unprocessed result of one scrape-service call.
type RawScrape struct {
	URL              string
	Content          string
	StatusCode       int
	ContentLength    int
	ScrapeDurationMS int64
	ScrapedAt        time.Time
}

// Processed is cleaned, validated content ready for rank extraction.
type Processed struct {
	CleanText        string
	ContentHash      string
	CharCount        int
	URL              string
	StatusCode       int
	ScrapedAt        time.Time
	ScrapeDurationMS int64
	SnapshotID       string
}

var (
	scriptStyleRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
	}
	htmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	htmlEntityRe   = regexp.MustCompile(`&[a-zA-Z]+;|&#\d+;`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]{2,}`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
	copyrightRe    = regexp.MustCompile(`©\s*\d{4}`)
)

// Lines containing any of these are navigation or consent boilerplate, not
// answer text.
var boilerplateKeywords = []string{
	"skip to content", "skip to main",
	"cookie policy", "cookie consent", "cookie settings",
	"accept all cookies", "accept cookies",
	"privacy policy",
	"terms of service", "terms of use",
	"sign in", "sign up", "log in", "log out",
	"subscribe to", "newsletter",
	"advertisement", "sponsored",
	"all rights reserved",
}

// Pages that scraped "successfully" but are really block or error pages.
var errorPageSignatures = []string{
	"access denied",
	"403 forbidden",
	"page not found",
	"404 not found",
	"captcha",
	"please verify you are a human",
	"rate limit exceeded",
	"too many requests",
}

// Process cleans and validates a raw scrape. It returns a *QuarantineError
// when the content is unusable; such errors must not be retried.
func Process(raw RawScrape) (Processed, error) {
	if strings.TrimSpace(raw.Content) == "" {
		return Processed{}, &QuarantineError{
			Kind:      KindEmptyContent,
			Detail:    "scrape returned empty content",
			RawPrefix: raw.Content,
		}
	}

	if raw.StatusCode >= 400 {
		return Processed{}, &QuarantineError{
			Kind:      KindHTTPError,
			Detail:    fmt.Sprintf("HTTP %d", raw.StatusCode),
			RawPrefix: truncateRunes(raw.Content, quarantineRawPrefixChars),
		}
	}

	clean := stripHTML(raw.Content)
	clean = removeBoilerplate(clean)
	clean = collapseWhitespace(clean)

	// Error-page detection runs before the length check so short blocked
	// pages are attributed as error_page rather than insufficient_content.
	if sig := errorPageSignature(clean); sig != "" {
		return Processed{}, &QuarantineError{
			Kind:      KindErrorPage,
			Detail:    fmt.Sprintf("detected error page signature: %q", sig),
			RawPrefix: truncateRunes(raw.Content, quarantineRawPrefixChars),
		}
	}

	cleanLen := len([]rune(clean))
	if cleanLen < MinContentChars {
		return Processed{}, &QuarantineError{
			Kind:      KindInsufficientContent,
			Detail:    fmt.Sprintf("content too short after cleaning: %d chars (min %d)", cleanLen, MinContentChars),
			RawPrefix: truncateRunes(raw.Content, quarantineRawPrefixChars),
		}
	}

	clean = truncateRunes(clean, MaxContentChars)

	sum := sha256.Sum256([]byte(clean))

	return Processed{
		CleanText:        clean,
		ContentHash:      hex.EncodeToString(sum[:]),
		CharCount:        len([]rune(clean)),
		URL:              raw.URL,
		StatusCode:       raw.StatusCode,
		ScrapedAt:        raw.ScrapedAt,
		ScrapeDurationMS: raw.ScrapeDurationMS,
	}, nil
}

// Hash returns the SHA-256 hex digest of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func stripHTML(text string) string {
	for _, re := range scriptStyleRes {
		text = re.ReplaceAllString(text, "")
	}
	text = htmlTagRe.ReplaceAllString(text, " ")
	text = htmlEntityRe.ReplaceAllString(text, " ")
	return text
}

func removeBoilerplate(text string) string {
	lines := strings.Split(text, "\n")
	filtered := lines[:0]
	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		if containsAny(lower, boilerplateKeywords) {
			continue
		}
		if copyrightRe.MatchString(line) {
			continue
		}
		filtered = append(filtered, line)
	}
	return strings.Join(filtered, "\n")
}

func collapseWhitespace(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	nonEmpty := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			nonEmpty = append(nonEmpty, line)
		}
	}
	text = strings.Join(nonEmpty, "\n")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func errorPageSignature(clean string) string {
	if len([]rune(clean)) >= 500 {
		return ""
	}
	lower := strings.ToLower(clean)
	for _, sig := range errorPageSignatures {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
