package rank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultFor(t *testing.T, results []Result, brand string) Result {
	t.Helper()
	for _, r := range results {
		if r.Brand == brand {
			return r
		}
	}
	t.Fatalf("no result for brand %q", brand)
	return Result{}
}

func TestExtractNumberedList(t *testing.T) {
	text := "1. Levoit Core 300S - best budget pick with True HEPA filtration.\n" +
		"2. Dyson Purifier Cool - premium option with app control.\n" +
		"3. Coway AP-1512HH - best value for medium rooms.\n" +
		"Honeywell is not typically mentioned in recent roundups."
	brands := []string{"Levoit", "Dyson", "Coway", "Honeywell"}

	results := NewExtractor(0).Extract(text, brands)
	require.Len(t, results, 4)

	assert.Equal(t, 1, resultFor(t, results, "Levoit").RankPosition)
	assert.Equal(t, 2, resultFor(t, results, "Dyson").RankPosition)
	assert.Equal(t, 3, resultFor(t, results, "Coway").RankPosition)
	assert.Equal(t, 5, resultFor(t, results, "Honeywell").RankPosition)

	for _, r := range results {
		assert.Contains(t, r.Snippet, r.Brand, "snippet must contain its brand")
		if r.Brand == "Honeywell" {
			assert.False(t, r.IsRecommended)
		} else {
			assert.True(t, r.IsRecommended, "brand %s", r.Brand)
		}
	}

	// Sorted by rank ascending.
	assert.Equal(t, "Levoit", results[0].Brand)
	assert.Equal(t, "Dyson", results[1].Brand)
	assert.Equal(t, "Coway", results[2].Brand)
	assert.Equal(t, "Honeywell", results[3].Brand)
}

func TestExtractEmptyBrandList(t *testing.T) {
	results := NewExtractor(0).Extract("some perfectly fine text", nil)
	assert.Empty(t, results)
}

func TestExtractEmptyText(t *testing.T) {
	results := NewExtractor(0).Extract("", []string{"Levoit", "Dyson"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 0, r.RankPosition)
		assert.Equal(t, -1, r.SectionIndex)
		assert.Empty(t, r.Snippet)
		assert.False(t, r.IsRecommended)
	}
}

func TestExtractAbsentBrandRanksZero(t *testing.T) {
	text := "We recommend the Levoit Core 300S for most bedrooms thanks to its quiet sleep mode."
	results := NewExtractor(0).Extract(text, []string{"Levoit", "Coway"})

	levoit := resultFor(t, results, "Levoit")
	assert.Equal(t, 1, levoit.RankPosition)
	assert.True(t, levoit.IsRecommended)

	coway := resultFor(t, results, "Coway")
	assert.Equal(t, 0, coway.RankPosition)
	assert.Equal(t, -1, coway.SectionIndex)
	assert.Empty(t, coway.Snippet)

	// Unranked brands sort last.
	assert.Equal(t, "Coway", results[len(results)-1].Brand)
}

func TestExtractWholeWordMatching(t *testing.T) {
	text := "The Cowayne brand is unrelated. Nothing here names the real companies we track in any roundup."
	results := NewExtractor(0).Extract(text, []string{"Coway"})
	assert.Equal(t, 0, resultFor(t, results, "Coway").RankPosition)
}

func TestExtractCaseInsensitive(t *testing.T) {
	text := "Many reviewers recommend the LEVOIT line for small apartments because filters are cheap."
	results := NewExtractor(0).Extract(text, []string{"Levoit"})
	r := resultFor(t, results, "Levoit")
	assert.Equal(t, 1, r.RankPosition)
	assert.True(t, r.IsRecommended)
}

func TestExtractRecommendationPhrasings(t *testing.T) {
	cases := []string{
		"Overall we recommend the Levoit for most shoppers.",
		"Levoit is the best budget purifier you can buy.",
		"Our top pick: Levoit.",
		"Levoit stands out for filter availability.",
		"I prefer Levoit over pricier rivals.",
	}
	for _, text := range cases {
		results := NewExtractor(0).Extract(text, []string{"Levoit"})
		assert.True(t, resultFor(t, results, "Levoit").IsRecommended, "text: %s", text)
	}
}

func TestExtractMentionedOnlyCapsAtFive(t *testing.T) {
	text := "Levoit, Dyson, Coway and Honeywell all appear in stores, but this piece ranks none of them."
	results := NewExtractor(0).Extract(text, []string{"Levoit", "Dyson", "Coway", "Honeywell"})
	for _, r := range results {
		assert.Equal(t, 5, r.RankPosition, "brand %s", r.Brand)
	}
}

func TestExtractRecommendedRankCapsAtFive(t *testing.T) {
	var b strings.Builder
	brands := []string{"Alpha", "Bravo", "Carter", "Delta", "Echo", "Fulton", "Golf"}
	for i, brand := range brands {
		b.WriteString("\n")
		b.WriteString(string(rune('1' + i)))
		b.WriteString(". ")
		b.WriteString(brand)
		b.WriteString(" works well in its price bracket.\n")
	}

	results := NewExtractor(0).Extract(b.String(), brands)
	assert.Equal(t, 1, resultFor(t, results, "Alpha").RankPosition)
	assert.Equal(t, 5, resultFor(t, results, "Echo").RankPosition)
	assert.Equal(t, 5, resultFor(t, results, "Fulton").RankPosition)
	assert.Equal(t, 5, resultFor(t, results, "Golf").RankPosition)
}

func TestSplitSections(t *testing.T) {
	text := "intro paragraph\n\n# Heading\nbody under heading\n1. first item\n2. second item"
	sections := splitSections(text)
	require.Equal(t, []string{
		"intro paragraph",
		"# Heading\nbody under heading",
		"1. first item",
		"2. second item",
	}, sections)
}

func TestSplitSectionsDropsEmpties(t *testing.T) {
	assert.Empty(t, splitSections("   \n\n   "))
}

func TestSnippetSnapsWordBoundaries(t *testing.T) {
	prefix := strings.Repeat("alphabetagamma ", 30) // well past the radius
	text := prefix + "Levoit sits here" + strings.Repeat(" deltaepsilon", 30)
	pos := strings.Index(text, "Levoit")

	snippet := snippetAround(text, pos, 50)
	require.True(t, strings.HasPrefix(snippet, "..."))
	require.True(t, strings.HasSuffix(snippet, "..."))

	core := strings.TrimSuffix(strings.TrimPrefix(snippet, "..."), "...")
	assert.Contains(t, core, "Levoit sits here")
	for _, word := range strings.Fields(core) {
		assert.Contains(t, []string{"alphabetagamma", "Levoit", "sits", "here", "deltaepsilon"}, word)
	}
}

func TestSnippetNoEllipsisAtTextBoundary(t *testing.T) {
	text := "Levoit leads this short note."
	snippet := snippetAround(text, 0, 200)
	assert.Equal(t, text, snippet)
}
