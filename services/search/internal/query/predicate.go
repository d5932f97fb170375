// Package query turns a SearchQuery into a store predicate, runs it, and
// ranks and annotates the results.
package query

import (
	"strings"
	"unicode"
)

type Field string

const (
	FieldTitle           Field = "title"
	FieldCompany         Field = "company"
	FieldLocation        Field = "location"
	FieldDescription     Field = "description"
	FieldExperienceLevel Field = "experience_level"
)

// Predicate is a dialect-free filter tree. Stores render it to SQL and
// Evaluate applies it to a single posting.
type Predicate interface {
	isPredicate()
}

// True matches every posting.
type True struct{}

// And matches when every child matches. An empty And matches everything.
type And []Predicate

// Or matches when any child matches. An empty Or matches nothing.
type Or []Predicate

// Match is a full-text test: every token must occur in the field.
type Match struct {
	Field  Field
	Tokens []string
}

// EqualFold is a case-insensitive exact comparison.
type EqualFold struct {
	Field Field
	Value string
}

func (True) isPredicate()      {}
func (And) isPredicate()       {}
func (Or) isPredicate()        {}
func (Match) isPredicate()     {}
func (EqualFold) isPredicate() {}

// Tokenize splits s into lower-cased runs of letters and digits, the same
// boundaries the store tokenisers use.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
