package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/errors"
	"shenanigigs/services/search/internal/extract"
	"shenanigigs/services/search/internal/models"
)

// Filter selects postings ordered newest first (created_at DESC, id DESC).
// Limit <= 0 means no limit.
type Filter struct {
	Where  Predicate
	Limit  int
	Offset int
}

// Store is the full-text capable posting store.
type Store interface {
	Find(ctx context.Context, f Filter) ([]models.JobPosting, error)
	Count(ctx context.Context, where Predicate) (int, error)
}

type Engine struct {
	store   Store
	builder *Builder
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewEngine(store Store, builder *Builder, logger *zap.Logger, tracer trace.Tracer) *Engine {
	return &Engine{
		store:   store,
		builder: builder,
		logger:  logger,
		tracer:  tracer,
	}
}

// Search returns the postings matching q, newest first or, when q carries
// preferences, by relevance then recency. Each result is an annotated copy.
func (e *Engine) Search(ctx context.Context, q models.SearchQuery) (models.Matches, error) {
	ctx, span := e.tracer.Start(ctx, "query.Search")
	defer span.End()

	ranked := !q.Preferences.Empty()
	span.SetAttributes(
		telemetry.String("query.title", q.Title),
		telemetry.String("query.location", q.Location),
		telemetry.Int("query.limit", q.Limit),
		telemetry.Int("query.offset", q.Offset),
		telemetry.Bool("query.ranked", ranked),
	)

	if err := ctx.Err(); err != nil {
		err = errors.Aborted("search aborted", err)
		telemetry.Fail(span, err)
		return nil, err
	}

	filter := Filter{Where: e.builder.Build(q), Limit: q.Limit, Offset: q.Offset}
	if ranked {
		// relevance is computed here, so the store returns every candidate
		filter.Limit, filter.Offset = 0, 0
	}

	start := time.Now()
	postings, err := e.store.Find(ctx, filter)
	if err != nil {
		err = e.storeError(ctx, "search", q, err)
		telemetry.Fail(span, err)
		return nil, err
	}

	matches := Annotate(dedupe(postings))
	if ranked {
		Rank(matches, q.Preferences)
		matches = paginate(matches, q.Limit, q.Offset)
	}

	span.SetAttributes(telemetry.Int("query.results", len(matches)))
	e.logger.Debug("Search completed",
		zap.Int("results", len(matches)),
		zap.Bool("ranked", ranked),
		zap.Duration("duration", time.Since(start)),
	)
	return matches, nil
}

// Count returns how many postings match q, ignoring pagination. It uses the
// same predicate as Search, so the two always agree.
func (e *Engine) Count(ctx context.Context, q models.SearchQuery) (int, error) {
	ctx, span := e.tracer.Start(ctx, "query.Count")
	defer span.End()

	if err := ctx.Err(); err != nil {
		err = errors.Aborted("count aborted", err)
		telemetry.Fail(span, err)
		return 0, err
	}

	n, err := e.store.Count(ctx, e.builder.Build(q))
	if err != nil {
		err = e.storeError(ctx, "count", q, err)
		telemetry.Fail(span, err)
		return 0, err
	}

	span.SetAttributes(telemetry.Int("query.total", n))
	return n, nil
}

// storeError maps a store failure to an aborted error when the caller's
// context is done, and to an unavailable error otherwise.
func (e *Engine) storeError(ctx context.Context, op string, q models.SearchQuery, err error) error {
	de := errors.FromContext(ctx, "job store "+op+" failed", err)
	if de.Type == errors.ErrTypeAborted {
		return de
	}

	e.logger.Error("Job store query failed",
		zap.String("op", op),
		zap.Bool("title", q.Title != ""),
		zap.Bool("location", q.Location != ""),
		zap.Bool("experience_level", q.ExperienceLevel != ""),
		zap.Bool("company", q.Company != ""),
		zap.Error(err),
	)
	return de
}

// Annotate copies each posting into a Match with its extracted signals and,
// where the stored salary is missing, a salary parsed from the description.
func Annotate(postings []models.JobPosting) models.Matches {
	out := make(models.Matches, 0, len(postings))
	for _, p := range postings {
		out = append(out, AnnotateOne(p))
	}
	return out
}

func AnnotateOne(p models.JobPosting) models.Match {
	m := models.Match{
		JobPosting: p,
		Signals:    extract.Signals(p.Description),
	}
	if m.Salary == nil {
		if lo, hi, ok := extract.SalaryRange(p.Description); ok {
			m.Salary = &lo
			m.SalaryMax = &hi
		}
	}
	return m
}

// dedupe drops repeated postings, keeping the first occurrence.
func dedupe(postings []models.JobPosting) []models.JobPosting {
	seen := make(map[string]bool, len(postings))
	out := make([]models.JobPosting, 0, len(postings))
	for _, p := range postings {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func paginate(matches models.Matches, limit, offset int) models.Matches {
	offset = max(offset, 0)
	if offset >= len(matches) {
		return models.Matches{}
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}
