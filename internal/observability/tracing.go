package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an otel tracer the way QuantaraX's relay and daemon wrap
// otel.Tracer(...) around top-level operations. Against the default
// (no-op) global TracerProvider this costs nothing; callers that wire up
// a real SDK get real spans for free.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer named for the rdpe engine.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer("rdpe")}
}

// StartSpan starts a span named name, returning the derived context and a
// func to end it (use with defer).
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}
