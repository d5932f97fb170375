// Package feed replays raw job postings from a JSON-lines file onto the
// ingest subject.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"shenanigigs/common/telemetry"
	"shenanigigs/services/search/internal/errors"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultWorkers = 10
	maxLineSize    = 1 << 20
)

type Publisher interface {
	Publish(subject string, data []byte) error
}

type Stats struct {
	Read      int32
	Published int32
	Skipped   int32
	Failed    int32
}

type line struct {
	number int
	data   []byte
}

type Loader struct {
	pub     Publisher
	subject string
	workers int
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewLoader(pub Publisher, subject string, workers int, logger *zap.Logger, tracer trace.Tracer) *Loader {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Loader{
		pub:     pub,
		subject: subject,
		workers: workers,
		logger:  logger,
		tracer:  tracer,
	}
}

// Load publishes every non-blank line of r. Lines that are not JSON objects
// are skipped. Publishing stops early when ctx is cancelled.
func (l *Loader) Load(ctx context.Context, r io.Reader) (Stats, error) {
	ctx, span := l.tracer.Start(ctx, "Loader.Load")
	defer span.End()

	var stats Stats
	lines := make(chan line)

	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ln := range lines {
				l.publish(ln, &stats)
			}
		}()
	}

	err := l.scan(ctx, r, lines, &stats)
	close(lines)
	wg.Wait()

	span.SetAttributes(
		telemetry.Int("feed.read", int(stats.Read)),
		telemetry.Int("feed.published", int(stats.Published)),
		telemetry.Int("feed.skipped", int(stats.Skipped)),
		telemetry.Int("feed.failed", int(stats.Failed)),
	)
	if err != nil {
		telemetry.Fail(span, err)
		return stats, err
	}

	l.logger.Info("Feed loaded",
		zap.Int32("read", stats.Read),
		zap.Int32("published", stats.Published),
		zap.Int32("skipped", stats.Skipped),
		zap.Int32("failed", stats.Failed))
	return stats, nil
}

func (l *Loader) scan(ctx context.Context, r io.Reader, out chan<- line, stats *Stats) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	n := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return errors.Aborted("feed load cancelled", ctx.Err())
		}
		n++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		atomic.AddInt32(&stats.Read, 1)

		var obj map[string]json.RawMessage
		err := json.Unmarshal(raw, &obj)
		if err == nil && obj == nil {
			err = errors.InvalidInput("posting is not a JSON object", nil)
		}
		if err != nil {
			atomic.AddInt32(&stats.Skipped, 1)
			l.logger.Warn("Skipping malformed line", zap.Int("line", n), zap.Error(err))
			continue
		}

		data := append([]byte(nil), raw...)
		select {
		case <-ctx.Done():
			return errors.Aborted("feed load cancelled", ctx.Err())
		case out <- line{number: n, data: data}:
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.InvalidInput("reading feed", err)
	}
	return nil
}

func (l *Loader) publish(ln line, stats *Stats) {
	if err := l.pub.Publish(l.subject, ln.data); err != nil {
		atomic.AddInt32(&stats.Failed, 1)
		l.logger.Error("Failed to publish posting",
			zap.Int("line", ln.number),
			zap.String("subject", l.subject),
			zap.Error(err))
		return
	}
	atomic.AddInt32(&stats.Published, 1)
}
