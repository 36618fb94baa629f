package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/practiq/internal/domain"
)

const instrumentationName = "github.com/neomorfeo/practiq/internal/adapter/otel"

// endSpan records err on the span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TracingCustomerRepository wraps a domain.CustomerRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingCustomerRepository struct {
	next   domain.CustomerRepository
	tracer trace.Tracer
}

// Compile-time check: TracingCustomerRepository implements domain.CustomerRepository.
var _ domain.CustomerRepository = (*TracingCustomerRepository)(nil)

// NewTracingCustomerRepository creates a tracing decorator around the given repository.
func NewTracingCustomerRepository(next domain.CustomerRepository) *TracingCustomerRepository {
	return &TracingCustomerRepository{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (r *TracingCustomerRepository) Create(ctx context.Context, customer domain.Customer) (err error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.Create",
		trace.WithAttributes(attribute.String("customer.id", customer.ID)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.Create(ctx, customer)
}

func (r *TracingCustomerRepository) GetByID(ctx context.Context, id string) (_ domain.Customer, err error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.GetByID",
		trace.WithAttributes(attribute.String("customer.id", id)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.GetByID(ctx, id)
}

func (r *TracingCustomerRepository) List(ctx context.Context, filter domain.ListFilter) (_ []domain.Customer, err error) {
	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.List",
		trace.WithAttributes(
			attribute.StringSlice("filter.statuses", statuses),
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer func() { endSpan(span, err) }()

	customers, err := r.next.List(ctx, filter)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(customers)))
	}
	return customers, err
}

func (r *TracingCustomerRepository) UpdateProfile(ctx context.Context, customer domain.Customer, expectedVersion int64) (err error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.UpdateProfile",
		trace.WithAttributes(
			attribute.String("customer.id", customer.ID),
			attribute.Int64("customer.expected_version", expectedVersion),
		),
	)
	defer func() { endSpan(span, err) }()

	return r.next.UpdateProfile(ctx, customer, expectedVersion)
}

func (r *TracingCustomerRepository) ApplyTransition(ctx context.Context, write domain.TransitionWrite) (err error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.ApplyTransition",
		trace.WithAttributes(
			attribute.String("customer.id", write.Customer.ID),
			attribute.String("transition.from", string(write.Record.FromStatus)),
			attribute.String("transition.to", string(write.Record.ToStatus)),
			attribute.Int64("customer.expected_version", write.ExpectedVersion),
			attribute.Bool("checklist.instantiated", write.NewChecklist != nil),
		),
	)
	defer func() { endSpan(span, err) }()

	return r.next.ApplyTransition(ctx, write)
}

func (r *TracingCustomerRepository) ListTransitions(ctx context.Context, customerID string) (_ []domain.LifecycleTransitionRecord, err error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.ListTransitions",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.ListTransitions(ctx, customerID)
}

func (r *TracingCustomerRepository) RecordActivity(ctx context.Context, customerID string, at time.Time) (err error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.RecordActivity",
		trace.WithAttributes(
			attribute.String("customer.id", customerID),
			attribute.String("activity.date", at.Format(time.DateOnly)),
		),
	)
	defer func() { endSpan(span, err) }()

	return r.next.RecordActivity(ctx, customerID, at)
}
