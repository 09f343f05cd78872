package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validQuery(text string) Query {
	return Query{
		QueryText: text,
		Category:  CategoryGeneral,
		Priority:  PriorityMedium,
		Brands:    []string{"Levoit", "Dyson"},
		IsActive:  true,
	}
}

func TestQueryValidateTextLengthBoundary(t *testing.T) {
	assert.NoError(t, validQuery(strings.Repeat("q", MaxQueryTextLen)).Validate())
	assert.Error(t, validQuery(strings.Repeat("q", MaxQueryTextLen+1)).Validate())
}

func TestQueryValidateRejectsEmptyText(t *testing.T) {
	assert.Error(t, validQuery("").Validate())
	assert.Error(t, validQuery("   ").Validate())
}

func TestQueryValidateRejectsDuplicateBrands(t *testing.T) {
	q := validQuery("best air purifier 2025")
	q.Brands = []string{"Levoit", "Dyson", "levoit"}
	assert.Error(t, q.Validate(), "brand uniqueness is case-insensitive")
}
