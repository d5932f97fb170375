package models

// SearchQuery is built per request. Every field is optional. Limit <= 0
// means unlimited; request parsing applies the configured default instead.
type SearchQuery struct {
	Title           string      `json:"title,omitempty" yaml:"title"`
	Location        string      `json:"location,omitempty" yaml:"location"`
	ExperienceLevel string      `json:"experience_level,omitempty" yaml:"experience_level"`
	Company         string      `json:"company,omitempty" yaml:"company"`
	Limit           int         `json:"limit,omitempty" yaml:"limit"`
	Offset          int         `json:"offset,omitempty" yaml:"offset"`
	Preferences     Preferences `json:"preferences,omitempty" yaml:"preferences"`
}

// Preferences switch a search to relevance ordering.
type Preferences struct {
	Titles     []string `json:"titles,omitempty" yaml:"titles"`
	Industries []string `json:"industries,omitempty" yaml:"industries"`
}

func (p Preferences) Empty() bool {
	return len(p.Titles) == 0 && len(p.Industries) == 0
}

// Unpaged returns a copy without limit or offset.
func (q SearchQuery) Unpaged() SearchQuery {
	q.Limit = 0
	q.Offset = 0
	return q
}
