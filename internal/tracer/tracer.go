// Package tracer provides the tracing abstraction used by the query executor.
// OpenTelemetry is supported through OtelTracer; NoopTracer is the default.
package tracer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around query executions.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of an OpenTelemetry span the executor writes to.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer discards every span. A DB uses it unless WithTracer is given.
type NoopTracer struct{}

// StartSpan returns ctx and a NoopSpan.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan ignores all calls.
type NoopSpan struct{}

func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}
func (n *NoopSpan) RecordError(_ error)                   {}
func (n *NoopSpan) SetStatus(_ codes.Code, _ string)      {}
func (n *NoopSpan) End()                                  {}

// OtelTracer adapts a trace.Tracer, usually otel.Tracer("eager").
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer returns an adapter over tracer, which must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a span named after the query kind.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan forwards to a trace.Span.
type OtelSpan struct {
	span trace.Span
}

func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }
func (s *OtelSpan) RecordError(err error)                     { s.span.RecordError(err) }
func (s *OtelSpan) End()                                      { s.span.End() }

func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// Span names of executed queries.
const (
	SpanFindAll = "eager.find.all"
	SpanFindOne = "eager.find.one"
	SpanCount   = "eager.count"
)

// QueryMetadata describes one executed find or count query.
// Attribute names follow the OpenTelemetry database conventions where one exists.
type QueryMetadata struct {
	// QueryID correlates the span with log records of the same execution.
	QueryID string
	// SQL is the compiled statement.
	SQL string
	// Duration is the time spent executing and scanning.
	Duration time.Duration
	// Rows is the number of flat rows returned by the driver.
	Rows int
	// Records is the number of hydrated root records (find only).
	Records int
	// Joins is the number of joins in the statement.
	Joins int
	// Error is any error that occurred during execution.
	Error error
	// Database is the database system name (mysql, postgres, sqlite).
	Database string
	// Operation is "find" or "count".
	Operation string
	// Table is the root table.
	Table string
}

// AddQueryAttributes adds database semantic convention attributes to a span
// and sets its status from meta.Error.
// See: https://opentelemetry.io/docs/specs/semconv/database/
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", "SELECT"),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
		attribute.Int("db.rows_returned", meta.Rows),
		attribute.String("eager.operation", meta.Operation),
		attribute.Int("eager.joins", meta.Joins),
	}

	if meta.Table != "" {
		attrs = append(attrs, attribute.String("db.table", meta.Table))
	}
	if meta.QueryID != "" {
		attrs = append(attrs, attribute.String("eager.query_id", meta.QueryID))
	}
	if meta.Operation == "find" {
		attrs = append(attrs, attribute.Int("eager.records", meta.Records))
	}

	span.SetAttributes(attrs...)

	if meta.Error != nil {
		span.RecordError(meta.Error)
		span.SetStatus(codes.Error, meta.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
