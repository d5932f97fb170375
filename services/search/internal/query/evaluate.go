package query

import (
	"strings"

	"shenanigigs/services/search/internal/models"
)

// Evaluate reports whether p matches posting, with the same token semantics
// the stores apply. A nil predicate matches.
func Evaluate(p Predicate, posting models.JobPosting) bool {
	switch p := p.(type) {
	case nil, True:
		return true
	case And:
		for _, c := range p {
			if !Evaluate(c, posting) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range p {
			if Evaluate(c, posting) {
				return true
			}
		}
		return false
	case Match:
		have := make(map[string]bool)
		for _, tok := range Tokenize(fieldValue(posting, p.Field)) {
			have[tok] = true
		}
		for _, tok := range p.Tokens {
			if !have[tok] {
				return false
			}
		}
		return true
	case EqualFold:
		return strings.EqualFold(fieldValue(posting, p.Field), p.Value)
	}
	return false
}

func fieldValue(posting models.JobPosting, f Field) string {
	switch f {
	case FieldTitle:
		return posting.Title
	case FieldCompany:
		return posting.Company
	case FieldLocation:
		return posting.Location
	case FieldDescription:
		return posting.Description
	case FieldExperienceLevel:
		return posting.ExperienceLevel
	}
	return ""
}
