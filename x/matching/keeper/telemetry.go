package keeper

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/calctra/resmatch/x/matching"

const (
	opRegisterResource    = "register_resource"
	opSetResourceActive   = "set_resource_active"
	opUpdateResourcePrice = "update_resource_price"
	opSubmitRequest       = "submit_request"
	opMatch               = "match"
	opStart               = "start"
	opComplete            = "complete"
	opCancel              = "cancel"
)

// instruments are the OpenTelemetry counterparts of MatchingMetrics. They
// feed whatever MeterProvider is installed globally.
type instruments struct {
	operations metric.Int64Counter
	latency    metric.Float64Histogram
}

func newInstrumentation() (trace.Tracer, *instruments) {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	inst := &instruments{}
	// Instrument creation only fails on invalid names; a nil instrument is skipped.
	inst.operations, _ = meter.Int64Counter("matching.operations",
		metric.WithDescription("Matching keeper operations by name and outcome"))
	inst.latency, _ = meter.Float64Histogram("matching.operation.duration",
		metric.WithDescription("Matching keeper operation latency"),
		metric.WithUnit("s"))
	return tracer, inst
}

// trace opens a span for a keeper operation. The returned func ends the span
// and records the outcome in both metric pipelines.
func (k *Keeper) trace(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := k.tracer.Start(ctx, "matching."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start).Seconds()
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		k.metrics.ObserveOperation(op, elapsed, err)
		set := metric.WithAttributes(attribute.String("operation", op), attribute.String("outcome", outcome))
		if k.instruments.operations != nil {
			k.instruments.operations.Add(ctx, 1, set)
		}
		if k.instruments.latency != nil {
			k.instruments.latency.Record(ctx, elapsed, set)
		}
	}
}
