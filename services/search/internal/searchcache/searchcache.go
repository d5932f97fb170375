// Package searchcache puts the cache in front of the search engine and the
// reference-data queries. Cache failures degrade to a direct query and are
// only logged; a failed or cancelled query is never cached.
package searchcache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shenanigigs/common/cache"
	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/errors"
	"shenanigigs/services/search/internal/extract"
	"shenanigigs/services/search/internal/models"
)

const (
	companiesKey = "ref:companies:v1"
	anonymous    = "anon"
)

type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (models.Matches, error)
	Count(ctx context.Context, q models.SearchQuery) (int, error)
}

// Reference serves the inputs of the cached aggregates.
type Reference interface {
	Companies(ctx context.Context) ([]string, error)
	Recent(ctx context.Context, since time.Time) ([]models.JobPosting, error)
}

type TTLs struct {
	Search    time.Duration
	Count     time.Duration
	Reference time.Duration
	Trending  time.Duration
}

// Page is one page of results with the total number of matches.
type Page struct {
	Results models.Matches `json:"results"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

type Service struct {
	searcher Searcher
	ref      Reference
	cache    cache.Cache
	ttl      TTLs
	logger   *zap.Logger
	tracer   trace.Tracer

	mu          sync.Mutex
	trendingKey map[string]struct{}
}

func New(searcher Searcher, ref Reference, c cache.Cache, ttl TTLs, logger *zap.Logger, tracer trace.Tracer) *Service {
	return &Service{
		searcher:    searcher,
		ref:         ref,
		cache:       c,
		ttl:         ttl,
		logger:      logger,
		tracer:      tracer,
		trendingKey: make(map[string]struct{}),
	}
}

// SearchKey is the cache key of a search. Results are cached per user.
func SearchKey(user string, q models.SearchQuery) string {
	if user == "" {
		user = anonymous
	}
	return fmt.Sprintf("search:v1:%s:%016x", user, hashQuery(q))
}

// CountKey is the cache key of a count. Pagination does not change a count.
func CountKey(q models.SearchQuery) string {
	q = q.Unpaged()
	q.Preferences = models.Preferences{}
	return fmt.Sprintf("count:v1:%016x", hashQuery(q))
}

func TrendingKey(since time.Time, n int) string {
	return fmt.Sprintf("agg:trending:v1:%d:%d", since.Unix(), n)
}

func hashQuery(q models.SearchQuery) uint64 {
	// a struct of strings and ints always marshals
	b, _ := json.Marshal(q)
	return xxhash.Sum64(b)
}

func (s *Service) Search(ctx context.Context, user string, q models.SearchQuery) (models.Matches, error) {
	return remember(ctx, s, "Search", SearchKey(user, q), s.ttl.Search, func(ctx context.Context) (models.Matches, error) {
		return s.searcher.Search(ctx, q)
	})
}

func (s *Service) Count(ctx context.Context, q models.SearchQuery) (int, error) {
	return remember(ctx, s, "Count", CountKey(q), s.ttl.Count, func(ctx context.Context) (int, error) {
		return s.searcher.Count(ctx, q)
	})
}

// Page runs the search and the count concurrently. Either failing cancels
// the other.
func (s *Service) Page(ctx context.Context, user string, q models.SearchQuery) (Page, error) {
	page := Page{Limit: q.Limit, Offset: q.Offset}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := s.Search(gctx, user, q)
		page.Results = results
		return err
	})
	g.Go(func() error {
		total, err := s.Count(gctx, q)
		page.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Companies lists the distinct company names.
func (s *Service) Companies(ctx context.Context) ([]string, error) {
	companies, err := remember(ctx, s, "Companies", companiesKey, s.ttl.Reference, func(ctx context.Context) (models.Strings, error) {
		companies, err := s.ref.Companies(ctx)
		if err != nil {
			return nil, errors.FromContext(ctx, "list companies", err)
		}
		return companies, nil
	})
	return companies, err
}

// TrendingKeywords counts vocabulary keywords over postings created since
// since and returns the n most frequent, ties in vocabulary order. n <= 0
// returns every keyword seen.
func (s *Service) TrendingKeywords(ctx context.Context, since time.Time, n int) (models.KeywordCounts, error) {
	key := TrendingKey(since, n)

	s.mu.Lock()
	s.trendingKey[key] = struct{}{}
	s.mu.Unlock()

	return remember(ctx, s, "TrendingKeywords", key, s.ttl.Trending, func(ctx context.Context) (models.KeywordCounts, error) {
		postings, err := s.ref.Recent(ctx, since)
		if err != nil {
			return nil, errors.FromContext(ctx, "load recent postings", err)
		}
		return countKeywords(postings, n), nil
	})
}

func countKeywords(postings []models.JobPosting, n int) models.KeywordCounts {
	counts := make(map[string]int)
	for _, p := range postings {
		for _, kw := range extract.ScanKeywords(p.Title + " " + extract.CleanText(p.Description)) {
			counts[kw]++
		}
	}

	out := make(models.KeywordCounts, 0, len(counts))
	for _, kw := range extract.Vocabulary {
		if c := counts[kw]; c > 0 {
			out = append(out, models.KeywordCount{Keyword: kw, Count: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Invalidate drops the aggregates a new posting can change. Cached searches
// and counts are left to expire.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.trendingKey)+1)
	keys = append(keys, companiesKey)
	for k := range s.trendingKey {
		keys = append(keys, k)
	}
	s.trendingKey = make(map[string]struct{})
	s.mu.Unlock()

	for _, k := range keys {
		if err := s.cache.Delete(ctx, k); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// remember is cache-aside around load. T must round-trip through the cache
// codec: int, string or a BinaryMarshaler whose pointer is a
// BinaryUnmarshaler.
func remember[T any](ctx context.Context, s *Service, op, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "searchcache."+op)
	defer span.End()
	span.SetAttributes(telemetry.String("cache.key", key))

	var cached T
	err := s.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		s.logger.Debug("cache hit", zap.String("key", key))
		return cached, nil
	case stderrors.Is(err, cache.ErrNotFound):
		span.SetAttributes(telemetry.String("cache.result", "miss"))
	default:
		span.SetAttributes(telemetry.String("cache.result", "error"))
		s.logger.Warn("cache error", zap.String("key", key), zap.Error(err))
	}

	value, err := load(ctx)
	if err != nil {
		telemetry.Fail(span, err)
		var zero T
		return zero, err
	}
	// the caller left while the query finished; its result is not cached
	if err := ctx.Err(); err != nil {
		err = errors.Aborted(op+" aborted", err)
		telemetry.Fail(span, err)
		var zero T
		return zero, err
	}

	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("failed to cache result", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}
