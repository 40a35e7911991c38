package eventlogger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("eventlogger")

func startSendSpan(ctx context.Context, kind string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventlogger.send."+kind,
		trace.WithAttributes(
			attribute.String("send.kind", kind),
			attribute.Int("send.size", size),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
