package query

import (
	"sort"
	"strings"

	"shenanigigs/services/search/internal/models"
)

const (
	scoreTitle       = 3
	scoreIndustry    = 2
	scoreDescription = 1
)

// Rank scores matches against prefs and sorts them by score, highest first.
// The sort is stable, so equal scores keep the newest-first store order.
func Rank(matches []models.Match, prefs models.Preferences) {
	titles := lowered(prefs.Titles)
	industries := lowered(prefs.Industries)

	for i := range matches {
		score, tag := relevance(matches[i].JobPosting, titles, industries)
		matches[i].Relevance = score
		if tag != "" {
			matches[i].Tags = append(matches[i].Tags, tag)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Relevance > matches[j].Relevance
	})
}

// relevance returns the highest tier the posting reaches and a tag naming
// the preference that put it there.
func relevance(p models.JobPosting, titles, industries []string) (int, string) {
	title := strings.ToLower(p.Title)
	desc := strings.ToLower(p.Description)

	for _, t := range titles {
		if strings.Contains(title, t) {
			return scoreTitle, "title:" + t
		}
	}
	for _, k := range industries {
		if strings.Contains(title, k) || strings.Contains(desc, k) {
			return scoreIndustry, "industry:" + k
		}
	}
	for _, t := range titles {
		if strings.Contains(desc, t) {
			return scoreDescription, "description:" + t
		}
	}
	return 0, ""
}

func lowered(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
