// Package otel holds small tracing helpers shared by the coordinator, the sink
// and the push handlers.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on robot spans
const (
	AttrRequestID  = attribute.Key("robot.request_id")
	AttrRobotID    = attribute.Key("robot.id")
	AttrStatus     = attribute.Key("robot.status")
	AttrFloor      = attribute.Key("robot.location.floor")
	AttrRoom       = attribute.Key("robot.location.room")
	AttrSink       = attribute.Key("sink.name")
	AttrObserverID = attribute.Key("observer.id")
	AttrTransport  = attribute.Key("observer.transport")
)

// StartSpan starts a span on tracer. A nil tracer yields the span already in ctx,
// which is a no-op span when tracing is off.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. Nil span and nil err are ignored.
// The status text stays generic; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
