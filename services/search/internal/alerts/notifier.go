package alerts

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/errors"
)

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Alert is the message published for a hit.
type Alert struct {
	Hit
	MatchedAt time.Time `json:"matched_at"`
}

// Notifier publishes hits, at most rate per second per user with the given
// burst. Hits over a user's budget are dropped, not queued.
type Notifier struct {
	pub     Publisher
	subject string
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func NewNotifier(pub Publisher, subject string, perSecond float64, burst int, logger *zap.Logger, tracer trace.Tracer) *Notifier {
	return &Notifier{
		pub:      pub,
		subject:  subject,
		logger:   logger,
		tracer:   tracer,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(perSecond),
		b:        burst,
	}
}

func (n *Notifier) limiterFor(user string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()

	if lim, ok := n.limiters[user]; ok {
		return lim
	}
	lim := rate.NewLimiter(n.r, n.b)
	n.limiters[user] = lim
	return lim
}

// Notify publishes each hit the user's budget allows and reports how many
// went out. Publish failures are returned together.
func (n *Notifier) Notify(ctx context.Context, hits []Hit) (int, error) {
	_, span := n.tracer.Start(ctx, "alerts.Notify")
	defer span.End()
	span.SetAttributes(
		telemetry.String("nats.subject", n.subject),
		telemetry.Int("alerts.hits", len(hits)),
	)

	var (
		sent int
		errs []error
	)
	for _, hit := range hits {
		if !n.limiterFor(hit.UserID).AllowN(n.now(), 1) {
			n.logger.Warn("alert dropped, user over rate limit",
				zap.String("user_id", hit.UserID),
				zap.String("saved_search_id", hit.SavedSearchID),
				zap.String("job_id", hit.Match.ID),
			)
			continue
		}

		data, err := json.Marshal(Alert{Hit: hit, MatchedAt: n.now().UTC()})
		if err != nil {
			errs = append(errs, errors.Internal("marshaling alert", err))
			continue
		}

		if err := n.pub.Publish(n.subject, data); err != nil {
			n.logger.Error("failed to publish alert",
				zap.String("user_id", hit.UserID),
				zap.String("saved_search_id", hit.SavedSearchID),
				zap.Error(err),
			)
			errs = append(errs, errors.Unavailable("publishing alert", err))
			continue
		}
		sent++
	}

	span.SetAttributes(telemetry.Int("alerts.sent", sent))
	if err := stderrors.Join(errs...); err != nil {
		telemetry.Fail(span, err)
		return sent, err
	}
	return sent, nil
}
