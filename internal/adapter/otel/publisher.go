package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/practiq/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with OpenTelemetry tracing
// and records lifecycle and billing metrics for every published event.
type TracingPublisher struct {
	next   domain.EventPublisher
	tracer trace.Tracer

	transitions   metric.Int64Counter
	periodsClosed metric.Int64Counter
	overageHours  metric.Float64Histogram
}

const overageHistogram = "practiq.retainer.overage_hours"

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher creates a tracing decorator around the given publisher.
// Instruments come from the global MeterProvider.
func NewTracingPublisher(next domain.EventPublisher) (*TracingPublisher, error) {
	meter := otel.Meter(instrumentationName)

	transitions, err := meter.Int64Counter("practiq.lifecycle.transitions",
		metric.WithDescription("Committed customer lifecycle transitions."),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	periodsClosed, err := meter.Int64Counter("practiq.retainer.periods_closed",
		metric.WithDescription("Closed retainer billing periods."),
		metric.WithUnit("{period}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating periods closed counter: %w", err)
	}

	overageHours, err := meter.Float64Histogram(overageHistogram,
		metric.WithDescription("Hours billed above the allocation of a closed hour bank period."),
		metric.WithUnit("h"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating overage histogram: %w", err)
	}

	return &TracingPublisher{
		next:          next,
		tracer:        otel.Tracer(instrumentationName),
		transitions:   transitions,
		periodsClosed: periodsClosed,
		overageHours:  overageHours,
	}, nil
}

// PublishTransition counts the transition and forwards it. The transition is
// already committed when this runs, so it is counted even if forwarding fails.
func (p *TracingPublisher) PublishTransition(ctx context.Context, record domain.LifecycleTransitionRecord) (err error) {
	attrs := []attribute.KeyValue{
		attribute.String("transition.from", string(record.FromStatus)),
		attribute.String("transition.to", string(record.ToStatus)),
		attribute.String("transition.event", string(record.EventType)),
	}
	ctx, span := p.tracer.Start(ctx, "EventPublisher.PublishTransition",
		trace.WithAttributes(append(attrs, attribute.String("customer.id", record.CustomerID))...),
	)
	defer func() { endSpan(span, err) }()

	p.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))

	return p.next.PublishTransition(ctx, record)
}

// PublishPeriodClosed records the close and forwards it.
func (p *TracingPublisher) PublishPeriodClosed(ctx context.Context, result domain.PeriodCloseResult) (err error) {
	typeAttr := attribute.String("retainer.type", string(result.Retainer.Type))
	ctx, span := p.tracer.Start(ctx, "EventPublisher.PublishPeriodClosed",
		trace.WithAttributes(
			typeAttr,
			attribute.String("retainer.id", result.Retainer.ID),
			attribute.String("period.id", result.ClosedPeriod.ID),
			attribute.String("invoice_draft.id", result.Draft.ID),
		),
	)
	defer func() { endSpan(span, err) }()

	p.periodsClosed.Add(ctx, 1, metric.WithAttributes(typeAttr))
	if result.ClosedPeriod.OverageHours.Valid {
		hours, _ := result.ClosedPeriod.OverageHours.Decimal.Float64()
		p.overageHours.Record(ctx, hours, metric.WithAttributes(typeAttr))
	}

	return p.next.PublishPeriodClosed(ctx, result)
}
