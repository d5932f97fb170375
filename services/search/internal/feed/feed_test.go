package feed

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"shenanigigs/services/search/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	messages []string
	failOn   string
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != "" && strings.Contains(string(data), p.failOn) {
		return stderrors.New("nats: connection closed")
	}
	p.subjects = append(p.subjects, subject)
	p.messages = append(p.messages, string(data))
	return nil
}

func newLoader(t *testing.T, pub Publisher) *Loader {
	return NewLoader(pub, "jobs.new", 3, zaptest.NewLogger(t), noop.NewTracerProvider().Tracer("test"))
}

func TestLoader_PublishesEachPosting(t *testing.T) {
	pub := &recordingPublisher{}
	input := strings.Join([]string{
		`{"title":"Software Engineer","company":"Acme","location":"Austin, TX"}`,
		``,
		`{"title":"Data Scientist","company":"Globex","location":"Denver, CO"}`,
	}, "\n")

	stats, err := newLoader(t, pub).Load(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, Stats{Read: 2, Published: 2}, stats)
	assert.ElementsMatch(t, []string{"jobs.new", "jobs.new"}, pub.subjects)
	assert.ElementsMatch(t, []string{
		`{"title":"Software Engineer","company":"Acme","location":"Austin, TX"}`,
		`{"title":"Data Scientist","company":"Globex","location":"Denver, CO"}`,
	}, pub.messages)
}

func TestLoader_SkipsMalformedLines(t *testing.T) {
	pub := &recordingPublisher{}
	input := "not json\n   \n[1,2]\n\t\nnull\n  {\"title\":\"Nurse\"}  \n"

	stats, err := newLoader(t, pub).Load(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, Stats{Read: 4, Published: 1, Skipped: 3}, stats)
	assert.Equal(t, []string{`{"title":"Nurse"}`}, pub.messages)
}

func TestLoader_CountsPublishFailures(t *testing.T) {
	pub := &recordingPublisher{failOn: "Globex"}
	input := "{\"company\":\"Acme\"}\n{\"company\":\"Globex\"}\n"

	stats, err := newLoader(t, pub).Load(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, Stats{Read: 2, Published: 1, Failed: 1}, stats)
}

func TestLoader_Cancelled(t *testing.T) {
	pub := &recordingPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newLoader(t, pub).Load(ctx, strings.NewReader("{\"title\":\"Nurse\"}\n"))
	require.Error(t, err)
	assert.True(t, errors.IsAborted(err))
}
