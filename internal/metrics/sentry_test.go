package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cbegin/tunes-go/internal/tune"
)

type recordingTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *recordingTransport) Configure(sentry.ClientOptions) {}
func (t *recordingTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}
func (t *recordingTransport) Flush(time.Duration) bool              { return true }
func (t *recordingTransport) FlushWithContext(context.Context) bool { return true }
func (t *recordingTransport) Close()                                {}

func newHub(t *testing.T) (*sentry.Hub, *recordingTransport) {
	t.Helper()
	transport := &recordingTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:       "https://public@sentry.example.com/1",
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return sentry.NewHub(client, sentry.NewScope()), transport
}

func TestRecordCompileCapturesSyntaxErrors(t *testing.T) {
	hub, transport := newHub(t)
	ctx := sentry.SetHubOnContext(context.Background(), hub)
	m := NewSentryMetrics(true)

	err := &tune.SyntaxError{Source: "alerts", Line: 2, Token: "zz", Message: "invalid note"}
	m.RecordCompile(ctx, "alerts", nil, time.Millisecond, err)

	if len(transport.events) != 1 {
		t.Fatalf("expected 1 captured event, got %d", len(transport.events))
	}
	ev := transport.events[0]
	if ev.Tags["tune.error"] != "syntax" || ev.Tags["tune.source"] != "alerts" {
		t.Fatalf("unexpected tags %v", ev.Tags)
	}
}

func TestRecordCompileSuccessCapturesNothing(t *testing.T) {
	hub, transport := newHub(t)
	ctx := sentry.SetHubOnContext(context.Background(), hub)
	m := NewSentryMetrics(true)

	seq, err := tune.CompileString(tune.DefaultBuilderConfig(), "ok", "c")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m.RecordCompile(ctx, "ok", seq, time.Millisecond, nil)
	m.RecordPlayback(ctx, "ok", seq.Duration())
	if len(transport.events) != 0 {
		t.Fatalf("expected no captured exceptions, got %d", len(transport.events))
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	hub, transport := newHub(t)
	ctx := sentry.SetHubOnContext(context.Background(), hub)
	var nilMetrics *SentryMetrics
	for _, m := range []*SentryMetrics{NewSentryMetrics(false), nilMetrics} {
		m.RecordCompile(ctx, "x", nil, 0, tune.ErrFatal)
		m.RecordPlayback(ctx, "x", 0)
	}
	if len(transport.events) != 0 {
		t.Fatalf("expected nothing captured, got %d", len(transport.events))
	}
}
