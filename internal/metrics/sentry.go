package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cbegin/tunes-go/internal/tune"
)

// SentryMetrics reports tune builds to Sentry. It is a no-op when disabled.
type SentryMetrics struct {
	enabled bool
}

func NewSentryMetrics(enabled bool) *SentryMetrics {
	return &SentryMetrics{enabled: enabled}
}

func (m *SentryMetrics) Enabled() bool { return m != nil && m.enabled }

// RecordCompile records one tune build. A failed build is also captured as
// an exception tagged with its error kind and source position.
func (m *SentryMetrics) RecordCompile(ctx context.Context, source string, seq *tune.Sequence, duration time.Duration, err error) {
	if !m.Enabled() {
		return
	}

	span := sentry.StartSpan(ctx, "tune.compile")
	defer span.Finish()

	span.SetTag("source", source)
	span.SetTag("success", fmt.Sprintf("%t", err == nil))
	span.SetData("duration_ms", duration.Milliseconds())
	if seq != nil {
		span.SetData("tones", len(seq.Tones))
		span.SetData("audible", seq.Audible())
		span.SetData("length_ms", seq.Duration().Milliseconds())
	}
	span.Description = fmt.Sprintf("Compile tune: %s", source)

	if err == nil {
		span.Status = sentry.SpanStatusOK
		return
	}
	span.Status = sentry.SpanStatusInvalidArgument
	kind := "syntax"
	if errors.Is(err, tune.ErrFatal) {
		span.Status = sentry.SpanStatusResourceExhausted
		kind = "fatal"
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("tune.error", kind)
		scope.SetTag("tune.source", source)
		var se *tune.SyntaxError
		if errors.As(err, &se) {
			scope.SetContext("tune", sentry.Context{
				"line":    se.Line,
				"token":   se.Token,
				"message": se.Message,
			})
		}
		hub.CaptureException(err)
	})
}

// RecordPlayback records how long a tune took to play.
func (m *SentryMetrics) RecordPlayback(ctx context.Context, name string, duration time.Duration) {
	if !m.Enabled() {
		return
	}

	span := sentry.StartSpan(ctx, "tune.play")
	defer span.Finish()

	span.SetTag("tune", name)
	span.SetData("duration_ms", duration.Milliseconds())
	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Play tune: %s", name)
}
