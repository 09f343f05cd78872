// Package rank deterministically derives brand rank positions from cleaned
// AI-answer text.
//
// Brands found in a recommendation context are ranked 1..5 in section order,
// brands that are merely mentioned all rank 5, and absent brands rank 0.
package rank

import (
	"fmt"
	"regexp"
	"sort"
)

// MaxRank is the worst assignable rank; 0 means not found.
const MaxRank = 5

// Result is the extraction outcome for one brand within one scraped
// response.
type Result struct {
	Brand         string
	RankPosition  int
	Snippet       string
	SectionIndex  int
	IsRecommended bool
}

// Templates that indicate a brand is being recommended rather than merely
// mentioned. %s is the regexp-escaped brand name.
var recommendationTemplates = []string{
	`(?:recommend|recommends|recommended)\s+(?:the\s+)?%s`,
	`%s\s+is\s+(?:the\s+)?(?:best|top|leading|number[- ]?one|#1|great|excellent|ideal)`,
	`(?:top\s+pick|best\s+(?:choice|option|pick)|our\s+(?:pick|choice|recommendation))[\s:]*%s`,
	`(?:^|\n)\s*\d+[.\):\s]+%s`,
	`(?:first|top)\s+(?:on\s+(?:the|our)\s+list|recommendation|choice).*?%s`,
	`%s.*?(?:stands?\s+out|leads?\s+the\s+pack|comes?\s+out\s+on\s+top)`,
	`(?:we|i)\s+(?:suggest|pick|choose|prefer)\s+(?:the\s+)?%s`,
}

// Extractor assigns rank positions to brands in cleaned text.
type Extractor struct {
	snippetRadius int
}

// NewExtractor returns an Extractor with the given snippet radius; radius
// <= 0 uses the default of 200 characters per side.
func NewExtractor(snippetRadius int) *Extractor {
	if snippetRadius <= 0 {
		snippetRadius = defaultSnippetRadius
	}
	return &Extractor{snippetRadius: snippetRadius}
}

// Extract returns one Result per brand, sorted by rank position ascending
// with unranked brands last (ties alphabetical). An empty brand list yields
// an empty slice; empty text yields a rank-0 result per brand.
func (e *Extractor) Extract(text string, brands []string) []Result {
	if len(brands) == 0 {
		return nil
	}
	if text == "" {
		results := make([]Result, 0, len(brands))
		for _, b := range brands {
			results = append(results, Result{Brand: b, SectionIndex: -1})
		}
		return results
	}

	m := newMatcher(brands)
	sections := splitSections(text)

	type brandInfo struct {
		brand         string
		sectionIndex  int
		firstCharPos  int
		isRecommended bool
	}

	infos := make([]brandInfo, 0, len(brands))
	for _, b := range brands {
		infos = append(infos, brandInfo{
			brand:         b,
			sectionIndex:  m.firstSection(sections, b),
			firstCharPos:  m.firstPosition(text, b),
			isRecommended: isRecommendation(text, b),
		})
	}

	var recommended, mentioned, absent []*brandInfo
	for i := range infos {
		info := &infos[i]
		switch {
		case info.sectionIndex < 0:
			absent = append(absent, info)
		case info.isRecommended:
			recommended = append(recommended, info)
		default:
			mentioned = append(mentioned, info)
		}
	}
	sort.SliceStable(recommended, func(i, j int) bool {
		return recommended[i].sectionIndex < recommended[j].sectionIndex
	})

	rankOf := make(map[string]int, len(brands))
	next := 1
	for _, info := range recommended {
		r := next
		if r > MaxRank {
			r = MaxRank
		}
		rankOf[info.brand] = r
		next++
	}
	for _, info := range mentioned {
		rankOf[info.brand] = MaxRank
	}
	for _, info := range absent {
		rankOf[info.brand] = 0
	}

	results := make([]Result, 0, len(brands))
	for _, info := range infos {
		snippet := ""
		if info.firstCharPos >= 0 {
			snippet = snippetAround(text, info.firstCharPos, e.snippetRadius)
		}
		results = append(results, Result{
			Brand:         info.brand,
			RankPosition:  rankOf[info.brand],
			Snippet:       snippet,
			SectionIndex:  info.sectionIndex,
			IsRecommended: info.isRecommended,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := sortRank(results[i].RankPosition), sortRank(results[j].RankPosition)
		if ri != rj {
			return ri < rj
		}
		return results[i].Brand < results[j].Brand
	})
	return results
}

// sortRank orders unranked brands after every ranked one.
func sortRank(r int) int {
	if r == 0 {
		return 999
	}
	return r
}

func isRecommendation(text, brand string) bool {
	escaped := regexp.QuoteMeta(brand)
	for _, tmpl := range recommendationTemplates {
		re := regexp.MustCompile(`(?im)` + fmt.Sprintf(tmpl, escaped))
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
