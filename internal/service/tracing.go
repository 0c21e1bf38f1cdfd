package service

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Shivanand-hulikatti/event-seat-ledger/internal/service"

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// endSpan records err on span, ends it and returns err.
func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}
