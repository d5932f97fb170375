package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shenanigigs/services/search/internal/models"
)

func TestEvaluate(t *testing.T) {
	posting := models.JobPosting{
		Title:           "Senior Software Engineer",
		Company:         "Acme Corp",
		Location:        "Austin, TX",
		ExperienceLevel: "Senior",
		Description:     "Go and Postgres",
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"nil", nil, true},
		{"true", True{}, true},
		{"empty and", And{}, true},
		{"empty or", Or{}, false},
		{"all tokens", Match{Field: FieldTitle, Tokens: []string{"software", "engineer"}}, true},
		{"token order ignored", Match{Field: FieldTitle, Tokens: []string{"engineer", "senior"}}, true},
		{"missing token", Match{Field: FieldTitle, Tokens: []string{"software", "developer"}}, false},
		{"tokens not substrings", Match{Field: FieldTitle, Tokens: []string{"soft"}}, false},
		{"location", Match{Field: FieldLocation, Tokens: []string{"tx"}}, true},
		{"description", Match{Field: FieldDescription, Tokens: []string{"postgres"}}, true},
		{"equal fold", EqualFold{Field: FieldCompany, Value: "ACME CORP"}, true},
		{"equal fold is exact", EqualFold{Field: FieldCompany, Value: "Acme"}, false},
		{"or", Or{
			Match{Field: FieldTitle, Tokens: []string{"developer"}},
			Match{Field: FieldTitle, Tokens: []string{"engineer"}},
		}, true},
		{"and", And{
			Match{Field: FieldTitle, Tokens: []string{"engineer"}},
			EqualFold{Field: FieldExperienceLevel, Value: "junior"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.pred, posting))
		})
	}
}

func TestEvaluate_AgreesWithBuilder(t *testing.T) {
	b := newTestBuilder(t)
	posting := models.JobPosting{Title: "Software Developer", Location: "Dallas, TX"}

	assert.True(t, Evaluate(b.Build(models.SearchQuery{Title: "software engineer"}), posting))
	assert.True(t, Evaluate(b.Build(models.SearchQuery{Location: "Texas"}), posting))
	assert.False(t, Evaluate(b.Build(models.SearchQuery{Location: "Oregon"}), posting))
	assert.True(t, Evaluate(b.Build(models.SearchQuery{Location: "TX"}), posting))
	assert.True(t, Evaluate(b.Build(models.SearchQuery{Location: "Oklahoma City, OK"}), models.JobPosting{Location: "Oklahoma City, TX"}))
	assert.False(t, Evaluate(b.Build(models.SearchQuery{Location: "Austin, TX"}), models.JobPosting{Location: "Portland, OR"}))
}
