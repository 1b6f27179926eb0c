// Package stopwatch times named sections of work. Each running label is also
// an OpenTelemetry span, so a traced run shows the same sections.
package stopwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Timer is the start/stop-by-label service used by the dispatch pipeline.
type Timer interface {
	Start(ctx context.Context, label string) context.Context
	Stop(label string, err error) time.Duration
}

type entry struct {
	started time.Time
	span    trace.Span
}

// Stopwatch is a Timer safe for concurrent use. Labels must be unique among
// the sections currently running.
type Stopwatch struct {
	tracer trace.Tracer
	now    func() time.Time

	mu      sync.Mutex
	running map[string]entry
}

// New returns a stopwatch reporting spans through the global tracer provider.
func New() *Stopwatch {
	return &Stopwatch{
		tracer:  otel.Tracer("github.com/cwbudde/clinventory/stopwatch"),
		now:     time.Now,
		running: make(map[string]entry),
	}
}

// Start begins timing label and returns ctx carrying its span.
func (s *Stopwatch) Start(ctx context.Context, label string) context.Context {
	ctx, span := s.tracer.Start(ctx, label, trace.WithAttributes(attribute.String("stopwatch.label", label)))

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.running[label]; ok {
		prev.span.End()
	}
	s.running[label] = entry{started: s.now(), span: span}
	return ctx
}

// Stop ends label and returns the elapsed time. Stopping a label that is not
// running returns zero. A non-nil err marks the span as failed.
func (s *Stopwatch) Stop(label string, err error) time.Duration {
	s.mu.Lock()
	e, ok := s.running[label]
	delete(s.running, label)
	s.mu.Unlock()
	if !ok {
		return 0
	}

	elapsed := s.now().Sub(e.started)
	if err != nil {
		e.span.RecordError(err)
		e.span.SetStatus(codes.Error, err.Error())
	}
	e.span.SetAttributes(attribute.Float64("stopwatch.elapsed_ms", float64(elapsed)/float64(time.Millisecond)))
	e.span.End()
	return elapsed
}

// Format renders d the way pass summaries print it.
func Format(d time.Duration) string {
	return fmt.Sprintf("%.3f ms", float64(d)/float64(time.Millisecond))
}
