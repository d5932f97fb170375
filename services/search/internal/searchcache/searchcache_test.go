package searchcache

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"shenanigigs/common/cache"
	"shenanigigs/common/cache/memory"
	"shenanigigs/common/cache/redis"
	"shenanigigs/common/cache/tiered"
	"shenanigigs/services/search/internal/errors"
	"shenanigigs/services/search/internal/models"
)

type fakeSearcher struct {
	searches atomic.Int32
	counts   atomic.Int32
	results  models.Matches
	err      error
	// when set, Search waits for the caller's context
	block chan struct{}
}

func (f *fakeSearcher) Search(ctx context.Context, _ models.SearchQuery) (models.Matches, error) {
	f.searches.Add(1)
	if f.block != nil {
		close(f.block)
		<-ctx.Done()
		return nil, errors.Aborted("search aborted", ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearcher) Count(ctx context.Context, _ models.SearchQuery) (int, error) {
	f.counts.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return len(f.results), nil
}

type fakeReference struct {
	companies atomic.Int32
	recent    []models.JobPosting
}

func (f *fakeReference) Companies(context.Context) ([]string, error) {
	f.companies.Add(1)
	return []string{"Acme", "Globex"}, nil
}

func (f *fakeReference) Recent(_ context.Context, since time.Time) ([]models.JobPosting, error) {
	var out []models.JobPosting
	for _, p := range f.recent {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// brokenCache fails every operation.
type brokenCache struct{}

var errBroken = stderrors.New("cache backend down")

func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error { return errBroken }
func (brokenCache) Get(context.Context, string, interface{}) error                { return errBroken }
func (brokenCache) Delete(context.Context, string) error                          { return errBroken }
func (brokenCache) Clear(context.Context) error                                   { return errBroken }
func (brokenCache) Close() error                                                  { return nil }

var ttls = TTLs{Search: time.Minute, Count: time.Minute, Reference: time.Hour, Trending: time.Minute}

func sampleMatches() models.Matches {
	return models.Matches{
		{JobPosting: models.JobPosting{ID: "1", Title: "Software Engineer"}, Signals: models.ExtractedSignals{Keywords: []string{"Docker"}}},
		{JobPosting: models.JobPosting{ID: "2", Title: "Software Developer"}, Signals: models.ExtractedSignals{Keywords: []string{}}},
	}
}

func newService(t *testing.T, s Searcher, c cache.Cache) *Service {
	t.Helper()
	return New(s, &fakeReference{}, c, ttls, zaptest.NewLogger(t), noop.NewTracerProvider().Tracer("test"))
}

func TestKeys(t *testing.T) {
	q := models.SearchQuery{Title: "engineer", Limit: 20}

	assert.Regexp(t, `^search:v1:anon:[0-9a-f]{16}$`, SearchKey("", q))
	assert.Regexp(t, `^search:v1:u1:[0-9a-f]{16}$`, SearchKey("u1", q))
	assert.NotEqual(t, SearchKey("u1", q), SearchKey("u2", q))
	assert.Equal(t, SearchKey("u1", q), SearchKey("u1", q))

	paged := q
	paged.Offset = 40
	assert.NotEqual(t, SearchKey("u1", q), SearchKey("u1", paged))
	assert.Equal(t, CountKey(q), CountKey(paged))
	assert.Regexp(t, `^count:v1:[0-9a-f]{16}$`, CountKey(q))

	assert.Equal(t, "agg:trending:v1:0:5", TrendingKey(time.Unix(0, 0), 5))
}

func TestSearch_CachesResults(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()
	f := &fakeSearcher{results: sampleMatches()}
	s := newService(t, f, mem)
	ctx := context.Background()
	q := models.SearchQuery{Title: "software engineer"}

	first, err := s.Search(ctx, "u1", q)
	require.NoError(t, err)
	second, err := s.Search(ctx, "u1", q)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.searches.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, "Software Engineer", second[0].Title)

	_, err = s.Search(ctx, "u2", q)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.searches.Load())
}

func TestCount_Caches(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()
	f := &fakeSearcher{results: sampleMatches()}
	s := newService(t, f, mem)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		n, err := s.Count(ctx, models.SearchQuery{Title: "x", Offset: i})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	assert.Equal(t, int32(1), f.counts.Load())
}

func TestSearch_ErrorsAreNotCached(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()
	f := &fakeSearcher{err: errors.Unavailable("store down", stderrors.New("refused"))}
	s := newService(t, f, mem)
	ctx := context.Background()

	_, err := s.Search(ctx, "", models.SearchQuery{})
	assert.Equal(t, errors.ErrTypeUnavailable, errors.TypeOf(err))
	_, err = s.Search(ctx, "", models.SearchQuery{})
	require.Error(t, err)

	assert.Equal(t, int32(2), f.searches.Load())
	assert.Zero(t, mem.Len())
}

func TestSearch_CancelledLeavesNoEntry(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()
	f := &fakeSearcher{block: make(chan struct{})}
	s := newService(t, f, mem)
	q := models.SearchQuery{Title: "software engineer"}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-f.block
		cancel()
	}()

	_, err := s.Search(ctx, "u1", q)
	require.Error(t, err)
	assert.True(t, errors.IsAborted(err))

	var out models.Matches
	assert.ErrorIs(t, mem.Get(context.Background(), SearchKey("u1", q), &out), cache.ErrNotFound)
	assert.Zero(t, mem.Len())
}

// lateSearcher finishes its query after the caller has gone away.
type lateSearcher struct {
	cancel context.CancelFunc
}

func (l lateSearcher) Search(context.Context, models.SearchQuery) (models.Matches, error) {
	l.cancel()
	return sampleMatches(), nil
}

func (l lateSearcher) Count(context.Context, models.SearchQuery) (int, error) {
	l.cancel()
	return 2, nil
}

func TestSearch_ResultAfterCancelIsNotCached(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()

	ctx, cancel := context.WithCancel(context.Background())
	s := newService(t, lateSearcher{cancel: cancel}, mem)

	_, err := s.Search(ctx, "", models.SearchQuery{})
	assert.True(t, errors.IsAborted(err))
	assert.Zero(t, mem.Len())
}

func TestSearch_RemoteUnreachableFallsBack(t *testing.T) {
	opts := cache.Options{
		RedisURL:        "127.0.0.1:1",
		DefaultTTL:      time.Minute,
		OpTimeout:       100 * time.Millisecond,
		FailureCooldown: time.Minute,
	}
	c := tiered.New(redis.New(opts), memory.New(opts), opts, zaptest.NewLogger(t))
	defer c.Close()

	f := &fakeSearcher{results: sampleMatches()}
	s := newService(t, f, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := s.Search(ctx, "", models.SearchQuery{Title: "engineer"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.Equal(t, int32(1), f.searches.Load())
	assert.False(t, c.RemoteAvailable())
}

func TestSearch_SharedThroughRemote(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := cache.Options{RedisURL: mr.Addr(), DefaultTTL: time.Minute}

	f := &fakeSearcher{results: sampleMatches()}
	// two replicas with their own mirrors share the remote tier
	a := newService(t, f, tiered.New(redis.New(opts), memory.New(opts), opts, zaptest.NewLogger(t)))
	b := newService(t, f, tiered.New(redis.New(opts), memory.New(opts), opts, zaptest.NewLogger(t)))
	ctx := context.Background()
	q := models.SearchQuery{Location: "Austin, TX"}

	_, err := a.Search(ctx, "u1", q)
	require.NoError(t, err)
	got, err := b.Search(ctx, "u1", q)
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Equal(t, int32(1), f.searches.Load())
	assert.True(t, mr.Exists(SearchKey("u1", q)))
}

func TestSearch_BrokenCacheStillServes(t *testing.T) {
	f := &fakeSearcher{results: sampleMatches()}
	s := newService(t, f, brokenCache{})

	got, err := s.Search(context.Background(), "", models.SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	s.Invalidate(context.Background())
}

func TestPage(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()
	f := &fakeSearcher{results: sampleMatches()}
	s := newService(t, f, mem)

	page, err := s.Page(context.Background(), "u1", models.SearchQuery{Title: "engineer", Limit: 20})
	require.NoError(t, err)
	assert.Len(t, page.Results, 2)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 20, page.Limit)

	f.err = errors.Unavailable("down", nil)
	_, err = s.Page(context.Background(), "u1", models.SearchQuery{Title: "other"})
	assert.Error(t, err)
}

func TestCompanies_CachedUntilInvalidated(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()
	ref := &fakeReference{}
	s := New(&fakeSearcher{}, ref, mem, ttls, zaptest.NewLogger(t), noop.NewTracerProvider().Tracer("test"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := s.Companies(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Acme", "Globex"}, got)
	}
	assert.Equal(t, int32(1), ref.companies.Load())

	s.Invalidate(ctx)
	_, err := s.Companies(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ref.companies.Load())
}

func TestTrendingKeywords(t *testing.T) {
	mem := memory.New(cache.Options{})
	defer mem.Close()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ref := &fakeReference{recent: []models.JobPosting{
		{Title: "Go Engineer", Description: "Docker and Kubernetes", CreatedAt: now},
		{Title: "Python Developer", Description: "&lt;li&gt;Docker&lt;/li&gt;", CreatedAt: now},
		{Title: "Rust Engineer", Description: "Kubernetes", CreatedAt: now},
		{Title: "Old", Description: "Python Python", CreatedAt: now.Add(-48 * time.Hour)},
	}}
	s := New(&fakeSearcher{}, ref, mem, ttls, zaptest.NewLogger(t), noop.NewTracerProvider().Tracer("test"))
	ctx := context.Background()
	since := now.Add(-24 * time.Hour)

	got, err := s.TrendingKeywords(ctx, since, 2)
	require.NoError(t, err)
	assert.Equal(t, models.KeywordCounts{
		{Keyword: "Docker", Count: 2},
		{Keyword: "Kubernetes", Count: 2},
	}, got)

	all, err := s.TrendingKeywords(ctx, since, 0)
	require.NoError(t, err)
	assert.Equal(t, models.KeywordCounts{
		{Keyword: "Docker", Count: 2},
		{Keyword: "Kubernetes", Count: 2},
		{Keyword: "Python", Count: 1},
		{Keyword: "Rust", Count: 1},
	}, all)

	var cached models.KeywordCounts
	require.NoError(t, mem.Get(ctx, TrendingKey(since, 2), &cached))

	s.Invalidate(ctx)
	assert.ErrorIs(t, mem.Get(ctx, TrendingKey(since, 2), &cached), cache.ErrNotFound)
}
