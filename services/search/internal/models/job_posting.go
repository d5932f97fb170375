package models

import (
	"encoding/json"
	"time"
)

// JobPosting is a stored posting as the engine sees it. The engine reads
// postings and annotates copies; it never writes them back.
type JobPosting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	ExperienceLevel string    `json:"experience_level"`
	CreatedAt       time.Time `json:"created_at"`
	Salary          *int      `json:"salary,omitempty"`
	SalaryMax       *int      `json:"salary_max,omitempty"`
}

// ExtractedSignals are derived from the description on every read.
type ExtractedSignals struct {
	SalaryText string   `json:"salary_text"`
	Keywords   []string `json:"keywords"`
}

// Match is a posting returned by a search, with its derived signals and,
// for preference-ranked searches, its relevance score and tags.
type Match struct {
	JobPosting
	Signals   ExtractedSignals `json:"signals"`
	Relevance int              `json:"relevance"`
	Tags      []string         `json:"tags,omitempty"`
}

type Matches []Match

func (m Matches) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

func (m *Matches) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, m)
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type KeywordCounts []KeywordCount

func (k KeywordCounts) MarshalBinary() ([]byte, error) {
	return json.Marshal(k)
}

func (k *KeywordCounts) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, k)
}

type Strings []string

func (s Strings) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *Strings) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}
