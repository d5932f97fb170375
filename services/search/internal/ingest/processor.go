// Package ingest stores newly posted jobs and fans them out to the cache
// and to saved-search alerts.
package ingest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/alerts"
	"shenanigigs/services/search/internal/errors"
	"shenanigigs/services/search/internal/models"
)

type Parser interface {
	Parse(data []byte) (models.JobPosting, error)
}

type Inserter interface {
	Insert(ctx context.Context, p models.JobPosting) (bool, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Notifier interface {
	Notify(ctx context.Context, hits []alerts.Hit) (int, error)
}

type Processor struct {
	parser      Parser
	store       Inserter
	invalidator Invalidator
	matcher     *alerts.Matcher
	notifier    Notifier
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewProcessor(
	parser Parser,
	store Inserter,
	invalidator Invalidator,
	matcher *alerts.Matcher,
	notifier Notifier,
	logger *zap.Logger,
	tracer trace.Tracer,
) *Processor {
	return &Processor{
		parser:      parser,
		store:       store,
		invalidator: invalidator,
		matcher:     matcher,
		notifier:    notifier,
		logger:      logger,
		tracer:      tracer,
	}
}

// Process parses and stores one raw posting. A posting seen before is not
// stored again and raises no alerts. Alert delivery failures are logged and
// do not fail the posting.
func (p *Processor) Process(ctx context.Context, raw []byte) (models.JobPosting, error) {
	ctx, span := p.tracer.Start(ctx, "ingest.Process")
	defer span.End()

	posting, err := p.parser.Parse(raw)
	if err != nil {
		telemetry.Fail(span, err)
		return models.JobPosting{}, fmt.Errorf("parse job posting: %w", err)
	}
	span.SetAttributes(telemetry.String("job.id", posting.ID))

	inserted, err := p.store.Insert(ctx, posting)
	if err != nil {
		err = errors.FromContext(ctx, "store job posting", err)
		telemetry.Fail(span, err)
		return posting, err
	}
	span.SetAttributes(telemetry.Bool("job.inserted", inserted))
	if !inserted {
		p.logger.Debug("Job posting already stored", zap.String("id", posting.ID))
		return posting, nil
	}

	p.invalidator.Invalidate(ctx)

	hits := p.matcher.Match(posting)
	if len(hits) == 0 {
		return posting, nil
	}

	sent, err := p.notifier.Notify(ctx, hits)
	if err != nil {
		p.logger.Warn("Some alerts were not delivered",
			zap.String("id", posting.ID),
			zap.Int("hits", len(hits)),
			zap.Int("sent", sent),
			zap.Error(err),
		)
	}
	return posting, nil
}
