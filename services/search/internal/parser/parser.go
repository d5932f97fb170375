// Package parser turns raw postings from the ingest subject into stored
// JobPostings. Raw postings either carry structured fields or a single
// "Company | Location | Level Title | ..." header line, with labelled
// fields in the description as the last resort.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"shenanigigs/services/search/internal/errors"
	"shenanigigs/services/search/internal/extract"
	"shenanigigs/services/search/internal/models"
)

// postingNamespace scopes the SHA1 ids so a source id always maps to the
// same posting id.
var postingNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

type RawPosting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	ExperienceLevel string    `json:"experience_level"`
	PostedAt        time.Time `json:"posted_at"`
	RawText         string    `json:"raw_text"`
	Salary          *int      `json:"salary"`
	SalaryMax       *int      `json:"salary_max"`
}

const (
	LevelSenior       = "Senior"
	LevelMid          = "Mid-Level"
	LevelJunior       = "Junior"
	LevelNotSpecified = "Not Specified"
)

var (
	companyPattern    = regexp.MustCompile(`(?i)\b(?:company|at):\s*([^,|]+)`)
	locationPattern   = regexp.MustCompile(`\b(?:[Ll]ocation|LOCATION):\s*([^,|]+(?:,\s*[A-Z]{2}\b)?)`)
	titlePattern      = regexp.MustCompile(`(?i)\b(?:position|role|title):\s*([^,|]+)`)
	experiencePattern = regexp.MustCompile(`(?i)\b(?:experience|yoe|level):\s*([^,|]+)`)
	levelPrefix       = regexp.MustCompile(`(?i)^(senior|sr\.?|staff|principal|lead|junior|jr\.?|entry[- ]level|mid[- ]level|mid)\s+`)
)

type Parser struct {
	now func() time.Time
}

func New() *Parser {
	return &Parser{now: time.Now}
}

// Parse decodes a raw posting and fills what it can infer. A posting
// without a title is rejected.
func (p *Parser) Parse(data []byte) (models.JobPosting, error) {
	var raw RawPosting
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.JobPosting{}, errors.InvalidInput("malformed raw posting", err)
	}
	return p.FromRaw(raw)
}

func (p *Parser) FromRaw(raw RawPosting) (models.JobPosting, error) {
	posting := models.JobPosting{
		Title:           extract.CleanText(raw.Title),
		Company:         extract.CleanText(raw.Company),
		Location:        extract.CleanText(raw.Location),
		Description:     raw.Description,
		ExperienceLevel: strings.TrimSpace(raw.ExperienceLevel),
		CreatedAt:       raw.PostedAt.UTC(),
		Salary:          raw.Salary,
		SalaryMax:       raw.SalaryMax,
	}

	if header := extract.CleanText(raw.RawText); header != "" {
		applyHeader(&posting, header)
	}

	lines := extract.CleanLines(raw.Description)
	fillFromLabel(&posting.Title, titlePattern, lines)
	fillFromLabel(&posting.Company, companyPattern, lines)
	fillFromLabel(&posting.Location, locationPattern, lines)

	if posting.Title == "" {
		return models.JobPosting{}, errors.InvalidInput("raw posting has no title", nil)
	}

	if posting.ExperienceLevel == "" {
		posting.ExperienceLevel = InferLevel(posting.Title, lines)
	}

	if posting.Salary == nil {
		if lo, hi, ok := extract.SalaryRange(raw.Description); ok {
			posting.Salary = &lo
			posting.SalaryMax = &hi
		}
	}

	if posting.CreatedAt.IsZero() {
		posting.CreatedAt = p.now().UTC()
	}

	posting.ID = postingID(raw, posting)
	return posting, nil
}

// applyHeader reads "Company | Location | Level Title | ..." and fills the
// fields that are still empty.
func applyHeader(posting *models.JobPosting, header string) {
	parts := strings.Split(header, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if posting.Company == "" {
		posting.Company = parts[0]
	}
	if len(parts) > 1 && posting.Location == "" {
		posting.Location = parts[1]
	}
	if len(parts) > 2 && posting.Title == "" {
		title := parts[2]
		if m := levelPrefix.FindStringSubmatch(title); m != nil {
			if posting.ExperienceLevel == "" {
				posting.ExperienceLevel = normalizeLevel(m[1])
			}
		}
		posting.Title = title
	}
}

// fillFromLabel sets an empty field from the first "Label: value" line.
func fillFromLabel(field *string, pattern *regexp.Regexp, lines []string) {
	if *field != "" {
		return
	}
	for _, line := range lines {
		if m := pattern.FindStringSubmatch(line); m != nil {
			*field = strings.TrimSpace(m[1])
			return
		}
	}
}

// InferLevel guesses the experience level, preferring an explicit
// "Experience:" line, then the title, then the whole description.
func InferLevel(title string, lines []string) string {
	for _, line := range lines {
		if m := experiencePattern.FindStringSubmatch(line); m != nil {
			if level := levelFromText(m[1]); level != "" {
				return level
			}
		}
	}
	if level := levelFromText(title); level != "" {
		return level
	}
	if level := levelFromText(strings.Join(lines, " ")); level != "" {
		return level
	}
	return LevelNotSpecified
}

var levelWords = []struct {
	level   string
	pattern *regexp.Regexp
}{
	{LevelSenior, regexp.MustCompile(`(?i)\b(?:senior|sr|staff|principal|lead)\b|\b(?:[5-9]|1\d)\+?\s*(?:years|yrs|yoe)`)},
	{LevelJunior, regexp.MustCompile(`(?i)\b(?:junior|jr|entry[- ]level|new grad|intern)\b|\b[0-2]\+?\s*(?:years|yrs|yoe)`)},
	{LevelMid, regexp.MustCompile(`(?i)\b(?:mid|mid[- ]level|intermediate)\b|\b[3-4]\+?\s*(?:years|yrs|yoe)`)},
}

func levelFromText(text string) string {
	for _, w := range levelWords {
		if w.pattern.MatchString(text) {
			return w.level
		}
	}
	return ""
}

func normalizeLevel(word string) string {
	if level := levelFromText(word); level != "" {
		return level
	}
	return LevelNotSpecified
}

// postingID is a SHA1 UUID of the source id, or of the identifying fields
// when the source has none.
func postingID(raw RawPosting, posting models.JobPosting) string {
	key := strings.TrimSpace(raw.ID)
	if key == "" {
		key = strings.Join([]string{
			strings.ToLower(posting.Title),
			strings.ToLower(posting.Company),
			strings.ToLower(posting.Location),
			posting.CreatedAt.Format(time.RFC3339),
		}, "\x1f")
	}
	return uuid.NewSHA1(postingNamespace, []byte(key)).String()
}
