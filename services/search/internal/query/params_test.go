package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 20, 0},
		{"valid", "limit=50&offset=10", 50, 10},
		{"non-numeric limit", "limit=abc", 20, 0},
		{"zero limit", "limit=0", 20, 0},
		{"negative limit", "limit=-5", 20, 0},
		{"limit clamped", "limit=5000", 100, 0},
		{"non-numeric offset", "offset=ten", 20, 0},
		{"negative offset", "offset=-3", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.raw)
			assert.NoError(t, err)

			q := ParseParams(values, Limits{})
			assert.Equal(t, tt.wantLimit, q.Limit)
			assert.Equal(t, tt.wantOffset, q.Offset)
		})
	}
}

func TestParseParams_Fields(t *testing.T) {
	values := url.Values{
		"title":           {" Software Engineer "},
		"location":        {"Austin, TX"},
		"experienceLevel": {"Senior"},
		"company":         {"Acme"},
		"preferredTitle":  {"backend", " ", "platform"},
		"industry":        {"fintech"},
	}

	q := ParseParams(values, Limits{Default: 10, Max: 25})

	assert.Equal(t, "Software Engineer", q.Title)
	assert.Equal(t, "Austin, TX", q.Location)
	assert.Equal(t, "Senior", q.ExperienceLevel)
	assert.Equal(t, "Acme", q.Company)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, []string{"backend", "platform"}, q.Preferences.Titles)
	assert.Equal(t, []string{"fintech"}, q.Preferences.Industries)
}

func TestParseParams_CustomMax(t *testing.T) {
	q := ParseParams(url.Values{"limit": {"40"}}, Limits{Default: 10, Max: 25})
	assert.Equal(t, 25, q.Limit)
}
