// Package alerts matches newly ingested postings against users' saved
// searches and notifies the owners.
package alerts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"shenanigigs/services/search/internal/models"
	"shenanigigs/services/search/internal/query"
)

type SavedSearch struct {
	ID     string             `yaml:"id" json:"id"`
	UserID string             `yaml:"user_id" json:"user_id"`
	Query  models.SearchQuery `yaml:"query" json:"query"`
}

type savedSearchFile struct {
	SavedSearches []SavedSearch `yaml:"saved_searches"`
}

// LoadSavedSearches reads saved searches from a YAML file. An empty path
// yields none.
func LoadSavedSearches(path string) ([]SavedSearch, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read saved searches: %w", err)
	}
	return ParseSavedSearches(data)
}

func ParseSavedSearches(data []byte) ([]SavedSearch, error) {
	var f savedSearchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode saved searches: %w", err)
	}

	seen := make(map[string]bool, len(f.SavedSearches))
	for i, s := range f.SavedSearches {
		if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.UserID) == "" {
			return nil, fmt.Errorf("saved search %d: id and user_id are required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("saved search %q is defined twice", s.ID)
		}
		seen[s.ID] = true
	}
	return f.SavedSearches, nil
}

// Hit is a posting that matched a saved search.
type Hit struct {
	SavedSearchID string       `json:"saved_search_id"`
	UserID        string       `json:"user_id"`
	Match         models.Match `json:"match"`
}

type compiled struct {
	search SavedSearch
	where  query.Predicate
}

// Matcher holds the saved searches with their predicates built once, by the
// same builder the search engine uses.
type Matcher struct {
	searches []compiled
}

func NewMatcher(builder *query.Builder, searches []SavedSearch) *Matcher {
	m := &Matcher{searches: make([]compiled, 0, len(searches))}
	for _, s := range searches {
		m.searches = append(m.searches, compiled{search: s, where: builder.Build(s.Query)})
	}
	return m
}

func (m *Matcher) Len() int {
	return len(m.searches)
}

// Match returns one hit per saved search the posting satisfies, tagged with
// the saved search id.
func (m *Matcher) Match(posting models.JobPosting) []Hit {
	var hits []Hit
	var annotated *models.Match
	for _, c := range m.searches {
		if !query.Evaluate(c.where, posting) {
			continue
		}
		if annotated == nil {
			a := query.AnnotateOne(posting)
			annotated = &a
		}
		match := *annotated
		match.Tags = []string{"saved-search:" + c.search.ID}
		hits = append(hits, Hit{
			SavedSearchID: c.search.ID,
			UserID:        c.search.UserID,
			Match:         match,
		})
	}
	return hits
}
