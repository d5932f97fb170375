package events

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/config"
	"shenanigigs/services/search/internal/errors"
	"shenanigigs/services/search/internal/models"
	"shenanigigs/services/search/internal/query"
	"shenanigigs/services/search/internal/searchcache"
)

const (
	OpSearch    = "search"
	OpCompanies = "companies"
	OpTrending  = "trending"

	defaultTrendingWindow = 7 * 24 * time.Hour
	defaultTrendingCount  = 10
)

type Searcher interface {
	Page(ctx context.Context, user string, q models.SearchQuery) (searchcache.Page, error)
	Companies(ctx context.Context) ([]string, error)
	TrendingKeywords(ctx context.Context, since time.Time, n int) (models.KeywordCounts, error)
}

// Request is a search request. Params is URL-encoded: the search filters
// for OpSearch, "window" (a duration) and "n" for OpTrending.
type Request struct {
	Op     string `json:"op"`
	UserID string `json:"user_id"`
	Params string `json:"params"`
}

type Reply struct {
	Page      *searchcache.Page    `json:"page,omitempty"`
	Companies []string             `json:"companies,omitempty"`
	Trending  models.KeywordCounts `json:"trending,omitempty"`
	Error     *ReplyError          `json:"error,omitempty"`
}

type ReplyError struct {
	Type    errors.ErrorType `json:"type"`
	Message string           `json:"message"`
}

// Responder answers search requests over NATS request/reply.
type Responder struct {
	logger   *zap.Logger
	nc       *nats.Conn
	tracer   trace.Tracer
	searcher Searcher
	subject  string
	timeout  time.Duration
	limits   query.Limits
	now      func() time.Time
	sub      *nats.Subscription
}

func NewResponder(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, cfg *config.Config, searcher Searcher) *Responder {
	return &Responder{
		logger:   logger,
		nc:       nc,
		tracer:   tracer,
		searcher: searcher,
		subject:  cfg.SearchSubject,
		timeout:  cfg.SearchTimeout,
		limits:   query.Limits{Default: cfg.DefaultLimit, Max: cfg.MaxLimit},
		now:      time.Now,
	}
}

func (r *Responder) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := r.nc.QueueSubscribe(r.subject, queueGroup, r.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.subject, err)
	}

	r.sub = sub
	r.logger.Info("Registered NATS subscriptions", zap.String("subject", r.subject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.sub.Drain()
		},
	})

	return nil
}

func (r *Responder) handleRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := json.Marshal(r.answer(ctx, msg.Data))
	if err != nil {
		r.logger.Error("Failed to encode search reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		r.logger.Warn("Failed to send search reply", zap.Error(err))
	}
}

func (r *Responder) answer(ctx context.Context, data []byte) Reply {
	ctx, span := r.tracer.Start(ctx, "handleSearchRequest")
	defer span.End()

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply(errors.InvalidInput("malformed search request", err))
	}
	params, err := url.ParseQuery(req.Params)
	if err != nil {
		return errorReply(errors.InvalidInput("malformed search params", err))
	}
	if req.Op == "" {
		req.Op = OpSearch
	}
	span.SetAttributes(telemetry.String("search.op", req.Op))

	var reply Reply
	switch req.Op {
	case OpSearch:
		page, err := r.searcher.Page(ctx, req.UserID, query.ParseParams(params, r.limits))
		if err != nil {
			return r.failed(span, req, err)
		}
		reply.Page = &page
	case OpCompanies:
		companies, err := r.searcher.Companies(ctx)
		if err != nil {
			return r.failed(span, req, err)
		}
		reply.Companies = companies
	case OpTrending:
		since, n := r.trendingParams(params)
		trending, err := r.searcher.TrendingKeywords(ctx, since, n)
		if err != nil {
			return r.failed(span, req, err)
		}
		reply.Trending = trending
	default:
		return errorReply(errors.InvalidInput(fmt.Sprintf("unknown op %q", req.Op), nil))
	}
	return reply
}

// trendingParams reads the window and count. The window start is truncated
// to the hour so repeated requests share a cache entry.
func (r *Responder) trendingParams(params url.Values) (time.Time, int) {
	window := defaultTrendingWindow
	if d, err := time.ParseDuration(params.Get("window")); err == nil && d > 0 {
		window = d
	}
	n := defaultTrendingCount
	if v, err := strconv.Atoi(params.Get("n")); err == nil && v > 0 {
		n = v
	}
	return r.now().UTC().Truncate(time.Hour).Add(-window), n
}

func (r *Responder) failed(span trace.Span, req Request, err error) Reply {
	telemetry.Fail(span, err)
	if errors.IsAborted(err) {
		r.logger.Info("Search request aborted", zap.String("op", req.Op), zap.Error(err))
	} else {
		r.logger.Error("Search request failed", zap.String("op", req.Op), zap.Error(err))
	}
	return errorReply(err)
}

func errorReply(err error) Reply {
	t := errors.TypeOf(err)
	if t == "" {
		t = errors.ErrTypeInternal
	}
	msg := err.Error()
	var de *errors.DomainError
	if stderrors.As(err, &de) {
		msg = de.Message
	}
	return Reply{Error: &ReplyError{Type: t, Message: msg}}
}
