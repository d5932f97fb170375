package extract

import (
	"regexp"
	"strconv"
	"strings"

	"shenanigigs/services/search/internal/models"
)

type salaryPattern struct {
	name string
	re   *regexp.Regexp
}

// salaryPatterns is evaluated top to bottom and the first pattern that
// matches anywhere wins. Hourly beats annual beats a bare amount.
var salaryPatterns = []salaryPattern{
	{"decimal_range", regexp.MustCompile(`\$\d+(?:,\d{3})*\.\d{2}\s*-\s*\$\d+(?:,\d{3})*\.\d{2}`)},
	{"hourly_rate", regexp.MustCompile(`(?i)\$\d+(?:\.\d{1,2})?\s*(?:/\s*(?:hrs?|hours?)\b|per\s+hour|an\s+hour|hourly)`)},
	{"hourly_range", regexp.MustCompile(`(?i)\$\d+(?:\.\d{1,2})?\s*-\s*\$?\d+(?:\.\d{1,2})?\s*/\s*(?:hrs?|hours?)\b`)},
	{"thousands_dash_range", regexp.MustCompile(`\$\d{1,3}(?:,\d{3})+(?:\.\d{2})?\s*-\s*\$?\d{1,3}(?:,\d{3})+(?:\.\d{2})?`)},
	{"thousands_to_range", regexp.MustCompile(`(?i)\$\d{1,3}(?:,\d{3})+(?:\.\d{2})?\s+(?:up\s+to|to|through)\s+\$?\d{1,3}(?:,\d{3})+(?:\.\d{2})?`)},
	{"k_range", regexp.MustCompile(`(?i)\$\d+(?:\.\d+)?\s*k\s*(?:-|to)\s*\$?\d+(?:\.\d+)?\s*k\b`)},
	{"monthly", regexp.MustCompile(`(?i)\$\d+(?:,\d{3})*(?:\.\d{2})?\s*(?:/\s*(?:mo|month)\b|per\s+month|a\s+month|monthly)`)},
	{"single_amount", regexp.MustCompile(`(?i)\$\d+(?:,\d{3})*(?:\.\d{2})?(?:k\b)?`)},
}

// salaryRangePattern reads a numeric range from the raw description.
var salaryRangePattern = regexp.MustCompile(`\$([\d,]+)\s*(?:to|-)\s*\$([\d,]+)`)

// ExtractSalary returns the salary mention in text as display text, exactly
// as written after cleaning, or "" when there is none.
func ExtractSalary(text string) string {
	s, _ := extractSalary(text)
	return s
}

func extractSalary(text string) (string, string) {
	clean := CleanText(text)
	if !strings.Contains(clean, "$") {
		return "", ""
	}
	for _, p := range salaryPatterns {
		if m := p.re.FindString(clean); m != "" {
			return strings.TrimSpace(m), p.name
		}
	}
	return "", ""
}

// SalaryRange reads a "$min - $max" or "$min to $max" range from an
// unnormalised description. Amounts are whole dollars; cents are dropped.
func SalaryRange(description string) (min, max int, ok bool) {
	m := salaryRangePattern.FindStringSubmatch(description)
	if m == nil {
		return 0, 0, false
	}
	lo, okLo := parseAmount(m[1])
	hi, okHi := parseAmount(m[2])
	if !okLo || !okHi {
		return 0, 0, false
	}
	return lo, hi, true
}

// parseAmount drops thousands separators and keeps the leading integer.
func parseAmount(s string) (int, bool) {
	s = strings.ReplaceAll(s, ",", "")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Signals derives the transient extraction fields for a description.
func Signals(description string) models.ExtractedSignals {
	return models.ExtractedSignals{
		SalaryText: ExtractSalary(description),
		Keywords:   ScanKeywords(CleanText(description)),
	}
}
