package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/config"
	"shenanigigs/services/search/internal/errors"
	"shenanigigs/services/search/internal/ingest"
)

const queueGroup = "search-service"

type Handler struct {
	logger    *zap.Logger
	nc        *nats.Conn
	tracer    trace.Tracer
	subject   string
	processor *ingest.Processor
	sub       *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, cfg *config.Config, processor *ingest.Processor) *Handler {
	return &Handler{
		logger:    logger,
		nc:        nc,
		tracer:    tracer,
		subject:   cfg.IngestSubject,
		processor: processor,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.QueueSubscribe(h.subject, queueGroup, h.handleJobPosting)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", h.subject, err)
	}

	h.sub = sub
	h.logger.Info("Registered NATS subscriptions", zap.String("subject", h.subject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.sub.Drain()
		},
	})

	return nil
}

func (h *Handler) handleJobPosting(msg *nats.Msg) {
	ctx, span := h.tracer.Start(context.Background(), "handleJobPosting")
	defer span.End()
	span.SetAttributes(telemetry.String("nats.subject", msg.Subject))

	posting, err := h.processor.Process(ctx, msg.Data)
	if err != nil {
		level := h.logger.Error
		if errors.TypeOf(err) == errors.ErrTypeInvalidInput {
			level = h.logger.Warn
		}
		level("Failed to process job posting",
			zap.Error(err),
			zap.String("subject", msg.Subject),
		)
		return
	}

	h.logger.Info("Processed job posting",
		zap.String("id", posting.ID),
		zap.String("subject", msg.Subject),
	)
}
