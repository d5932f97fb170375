package query

import (
	"net/url"
	"strconv"
	"strings"

	"shenanigigs/services/search/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Limits bound request pagination. Zero values fall back to DefaultLimit
// and MaxLimit.
type Limits struct {
	Default int
	Max     int
}

// ParseParams reads a search request. Malformed or out-of-range values are
// corrected, never rejected: a bad limit becomes the default, a limit above
// the maximum is clamped and a bad offset becomes zero.
func ParseParams(values url.Values, limits Limits) models.SearchQuery {
	if limits.Default <= 0 {
		limits.Default = DefaultLimit
	}
	if limits.Max <= 0 {
		limits.Max = MaxLimit
	}

	q := models.SearchQuery{
		Title:           strings.TrimSpace(values.Get("title")),
		Location:        strings.TrimSpace(values.Get("location")),
		ExperienceLevel: strings.TrimSpace(values.Get("experienceLevel")),
		Company:         strings.TrimSpace(values.Get("company")),
		Limit:           limits.Default,
		Preferences: models.Preferences{
			Titles:     nonEmpty(values["preferredTitle"]),
			Industries: nonEmpty(values["industry"]),
		},
	}

	if n, err := strconv.Atoi(values.Get("limit")); err == nil && n > 0 {
		q.Limit = min(n, limits.Max)
	}
	if n, err := strconv.Atoi(values.Get("offset")); err == nil && n > 0 {
		q.Offset = n
	}
	return q
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
