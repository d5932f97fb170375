package query

import (
	"strings"

	"shenanigigs/services/search/internal/models"
	"shenanigigs/services/search/internal/taxonomy"
)

type Builder struct {
	tax *taxonomy.Taxonomy
}

func NewBuilder(tax *taxonomy.Taxonomy) *Builder {
	return &Builder{tax: tax}
}

// Build composes the filter for q. The title widens to its synonym group and
// the location to its nearby terms, each as an OR of full-text matches.
// Experience level and company are exact, case-insensitive filters. All
// present groups are ANDed; with none present the result is True.
func (b *Builder) Build(q models.SearchQuery) Predicate {
	var clauses And

	if title := strings.TrimSpace(q.Title); title != "" {
		if p := anyOf(FieldTitle, b.tax.GroupFor(title)); p != nil {
			clauses = append(clauses, p)
		}
	}
	if loc := strings.TrimSpace(q.Location); loc != "" {
		if p := anyOf(FieldLocation, b.tax.ExpandLocation(loc)); p != nil {
			clauses = append(clauses, p)
		}
	}
	if level := strings.TrimSpace(q.ExperienceLevel); level != "" {
		clauses = append(clauses, EqualFold{Field: FieldExperienceLevel, Value: level})
	}
	if company := strings.TrimSpace(q.Company); company != "" {
		clauses = append(clauses, EqualFold{Field: FieldCompany, Value: company})
	}

	switch len(clauses) {
	case 0:
		return True{}
	case 1:
		return clauses[0]
	}
	return clauses
}

// anyOf ORs a full-text match per term. Terms without tokens and terms that
// tokenise identically to an earlier one are dropped.
func anyOf(field Field, terms []string) Predicate {
	var or Or
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		tokens := Tokenize(term)
		if len(tokens) == 0 {
			continue
		}
		key := strings.Join(tokens, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		or = append(or, Match{Field: field, Tokens: tokens})
	}

	switch len(or) {
	case 0:
		return nil
	case 1:
		return or[0]
	}
	return or
}
