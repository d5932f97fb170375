// Package sqlstore is the job-posting store behind the search engine. One
// implementation serves ClickHouse, Postgres and SQLite through database/sql;
// only predicate rendering differs per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shenanigigs/common/database"
	"shenanigigs/services/search/internal/models"
	"shenanigigs/services/search/internal/query"
)

type Store struct {
	db     *sql.DB
	d      *dialect
	logger *zap.Logger
}

func New(db *sql.DB, driver database.Driver, logger *zap.Logger) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	return &Store{db: db, d: d, logger: logger}, nil
}

// Find returns the postings matching f.Where, newest first.
func (s *Store) Find(ctx context.Context, f query.Filter) ([]models.JobPosting, error) {
	stmt, args, err := s.selectSQL(f)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	return scanPostings(rows)
}

func (s *Store) selectSQL(f query.Filter) (string, []any, error) {
	r := &renderer{d: s.d}
	where, err := r.render(f.Where)
	if err != nil {
		return "", nil, fmt.Errorf("render filter: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s %s", selectColumns, s.d.from, where, orderBy)
	switch {
	case f.Limit > 0:
		fmt.Fprintf(&b, " LIMIT %s", r.bind(f.Limit))
		if f.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %s", r.bind(f.Offset))
		}
	case f.Offset > 0:
		b.WriteByte(' ')
		fmt.Fprintf(&b, s.d.offsetOnly, r.bind(f.Offset))
	}
	return b.String(), r.args, nil
}

// Count returns the number of distinct postings matching where.
func (s *Store) Count(ctx context.Context, where query.Predicate) (int, error) {
	stmt, args, err := s.countSQL(where)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return int(n), nil
}

func (s *Store) countSQL(where query.Predicate) (string, []any, error) {
	r := &renderer{d: s.d}
	cond, err := r.render(where)
	if err != nil {
		return "", nil, fmt.Errorf("render filter: %w", err)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", s.d.count, s.d.from, cond), r.args, nil
}

// Companies lists the distinct non-empty company names, sorted.
func (s *Store) Companies(ctx context.Context) ([]string, error) {
	stmt := fmt.Sprintf("SELECT DISTINCT j.company FROM %s WHERE j.company <> '' ORDER BY j.company", s.d.from)
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	companies := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// Recent returns the postings created at or after since, newest first.
func (s *Store) Recent(ctx context.Context, since time.Time) ([]models.JobPosting, error) {
	r := &renderer{d: s.d}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE j.created_at >= %s %s",
		selectColumns, s.d.from, r.bind(since.UTC()), orderBy)

	rows, err := s.db.QueryContext(ctx, stmt, r.args...)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer rows.Close()

	return scanPostings(rows)
}

// Insert stores p. It reports false when a posting with the same id exists.
func (s *Store) Insert(ctx context.Context, p models.JobPosting) (bool, error) {
	if s.d.exists != "" {
		found, err := s.exists(ctx, p.ID)
		if err != nil {
			return false, err
		}
		if found {
			s.logger.Debug("Skipped existing job posting", zap.String("id", p.ID))
			return false, nil
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.d.insert)
	if err != nil {
		return false, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx,
		p.ID, p.Title, p.Company, p.Location, p.Description, p.ExperienceLevel,
		nullInt(p.Salary), nullInt(p.SalaryMax), p.CreatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert job %s: %w", p.ID, err)
	}

	inserted := true
	if s.d.exists == "" {
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("insert job %s: %w", p.ID, err)
		}
		inserted = n > 0
	}

	if inserted && s.d.driver == database.DriverSQLite {
		seq, err := res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("insert job %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO jobs_fts (rowid, title, location) VALUES (?, ?, ?)",
			seq, p.Title, p.Location,
		); err != nil {
			return false, fmt.Errorf("index job %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit job %s: %w", p.ID, err)
	}

	s.logger.Debug("Stored job posting",
		zap.String("id", p.ID),
		zap.Bool("inserted", inserted),
	)
	return inserted, nil
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, s.d.exists, id).Scan(&n); err != nil {
		return false, fmt.Errorf("check job %s: %w", id, err)
	}
	return n > 0, nil
}

func scanPostings(rows *sql.Rows) ([]models.JobPosting, error) {
	var postings []models.JobPosting
	for rows.Next() {
		var (
			p                 models.JobPosting
			salary, salaryMax sql.NullInt64
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Company, &p.Location, &p.Description,
			&p.ExperienceLevel, &salary, &salaryMax, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		p.Salary = intPtr(salary)
		p.SalaryMax = intPtr(salaryMax)
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return postings, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
