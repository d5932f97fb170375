package sqlstore

import (
	"fmt"
	"strings"

	"shenanigigs/common/database"
	"shenanigigs/services/search/internal/query"
)

var columns = map[query.Field]string{
	query.FieldTitle:           "j.title",
	query.FieldCompany:         "j.company",
	query.FieldLocation:        "j.location",
	query.FieldDescription:     "j.description",
	query.FieldExperienceLevel: "j.experience_level",
}

// dialect holds what differs between the supported stores: placeholders,
// full-text matching, counting and unbounded offsets.
type dialect struct {
	driver database.Driver
	from   string
	count  string
	// format for an OFFSET without a LIMIT
	offsetOnly string
	insert     string
	// set when insert cannot report a conflicting id itself
	exists   string
	numbered bool
	match      func(r *renderer, m query.Match) (string, error)
}

var dialects = map[database.Driver]*dialect{
	database.DriverClickHouse: {
		driver:     database.DriverClickHouse,
		from:       "jobs AS j FINAL",
		count:      "toInt64(uniqExact(j.id))",
		offsetOnly: "OFFSET %s ROWS",
		insert:     "INSERT INTO jobs (" + insertColumns + ")",
		exists:     "SELECT count() FROM jobs FINAL WHERE id = ?",
		match:      matchClickHouse,
	},
	database.DriverPostgres: {
		driver:     database.DriverPostgres,
		from:       "jobs AS j",
		count:      "COUNT(DISTINCT j.id)",
		offsetOnly: "OFFSET %s",
		insert: "INSERT INTO jobs (" + insertColumns + ") " +
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (id) DO NOTHING",
		numbered: true,
		match:    matchPostgres,
	},
	database.DriverSQLite: {
		driver:     database.DriverSQLite,
		from:       "jobs AS j",
		count:      "COUNT(DISTINCT j.id)",
		offsetOnly: "LIMIT -1 OFFSET %s",
		insert: "INSERT INTO jobs (" + insertColumns + ") " +
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING",
		match: matchSQLite,
	},
}

const insertColumns = "id, title, company, location, description, experience_level, salary, salary_max, created_at"

const selectColumns = "j.id, j.title, j.company, j.location, j.description, j.experience_level, j.salary, j.salary_max, j.created_at"

const orderBy = "ORDER BY j.created_at DESC, j.id DESC"

// renderer accumulates bind arguments while a predicate is rendered.
type renderer struct {
	d    *dialect
	args []any
}

func (r *renderer) bind(v any) string {
	r.args = append(r.args, v)
	if r.d.numbered {
		return fmt.Sprintf("$%d", len(r.args))
	}
	return "?"
}

func (r *renderer) render(p query.Predicate) (string, error) {
	switch p := p.(type) {
	case nil, query.True:
		return "1 = 1", nil
	case query.And:
		return r.join(p, " AND ", "1 = 1")
	case query.Or:
		return r.join(p, " OR ", "1 = 0")
	case query.Match:
		if len(p.Tokens) == 0 {
			return "1 = 1", nil
		}
		return r.d.match(r, p)
	case query.EqualFold:
		col, err := column(p.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("lower(%s) = lower(%s)", col, r.bind(p.Value)), nil
	}
	return "", fmt.Errorf("unsupported predicate %T", p)
}

func (r *renderer) join(children []query.Predicate, sep, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(children))
	for _, c := range children {
		s, err := r.render(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func column(f query.Field) (string, error) {
	col, ok := columns[f]
	if !ok {
		return "", fmt.Errorf("unknown field %q", f)
	}
	return col, nil
}

func matchClickHouse(r *renderer, m query.Match) (string, error) {
	col, err := column(m.Field)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(m.Tokens))
	for _, tok := range m.Tokens {
		parts = append(parts, fmt.Sprintf("hasTokenCaseInsensitive(%s, %s)", col, r.bind(tok)))
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func matchPostgres(r *renderer, m query.Match) (string, error) {
	col, err := column(m.Field)
	if err != nil {
		return "", err
	}
	q := strings.Join(m.Tokens, " & ")
	return fmt.Sprintf("to_tsvector('simple', %s) @@ to_tsquery('simple', %s)", col, r.bind(q)), nil
}

// only title and location are in the FTS5 index
var ftsColumns = map[query.Field]bool{
	query.FieldTitle:    true,
	query.FieldLocation: true,
}

func matchSQLite(r *renderer, m query.Match) (string, error) {
	if !ftsColumns[m.Field] {
		return "", fmt.Errorf("field %q is not full-text indexed", m.Field)
	}
	terms := make([]string, 0, len(m.Tokens))
	for _, tok := range m.Tokens {
		terms = append(terms, fmt.Sprintf(`%s : "%s"`, m.Field, tok))
	}
	q := strings.Join(terms, " AND ")
	return fmt.Sprintf("j.seq IN (SELECT rowid FROM jobs_fts WHERE jobs_fts MATCH %s)", r.bind(q)), nil
}
