package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/practiq/internal/domain"
)

// TracingRetainerRepository wraps a domain.RetainerRepository with OpenTelemetry tracing.
type TracingRetainerRepository struct {
	next   domain.RetainerRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRetainerRepository implements domain.RetainerRepository.
var _ domain.RetainerRepository = (*TracingRetainerRepository)(nil)

// NewTracingRetainerRepository creates a tracing decorator around the given repository.
func NewTracingRetainerRepository(next domain.RetainerRepository) *TracingRetainerRepository {
	return &TracingRetainerRepository{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (r *TracingRetainerRepository) Create(ctx context.Context, retainer domain.Retainer, first domain.RetainerPeriod) (err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.Create",
		trace.WithAttributes(
			attribute.String("retainer.id", retainer.ID),
			attribute.String("retainer.type", string(retainer.Type)),
			attribute.String("customer.id", retainer.CustomerID),
			attribute.String("period.id", first.ID),
		),
	)
	defer func() { endSpan(span, err) }()

	return r.next.Create(ctx, retainer, first)
}

func (r *TracingRetainerRepository) GetByID(ctx context.Context, id string) (_ domain.Retainer, err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.GetByID",
		trace.WithAttributes(attribute.String("retainer.id", id)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.GetByID(ctx, id)
}

func (r *TracingRetainerRepository) FindLiveForCustomer(ctx context.Context, customerID string) (_ domain.Retainer, err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.FindLiveForCustomer",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.FindLiveForCustomer(ctx, customerID)
}

func (r *TracingRetainerRepository) UpdateStatus(ctx context.Context, retainer domain.Retainer, expectedVersion int64) (err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.UpdateStatus",
		trace.WithAttributes(
			attribute.String("retainer.id", retainer.ID),
			attribute.String("retainer.status", string(retainer.Status)),
			attribute.Int64("retainer.expected_version", expectedVersion),
		),
	)
	defer func() { endSpan(span, err) }()

	return r.next.UpdateStatus(ctx, retainer, expectedVersion)
}

func (r *TracingRetainerRepository) GetPeriod(ctx context.Context, id string) (_ domain.RetainerPeriod, err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.GetPeriod",
		trace.WithAttributes(attribute.String("period.id", id)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.GetPeriod(ctx, id)
}

func (r *TracingRetainerRepository) ListPeriods(ctx context.Context, retainerID string) (_ []domain.RetainerPeriod, err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.ListPeriods",
		trace.WithAttributes(attribute.String("retainer.id", retainerID)),
	)
	defer func() { endSpan(span, err) }()

	periods, err := r.next.ListPeriods(ctx, retainerID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(periods)))
	}
	return periods, err
}

func (r *TracingRetainerRepository) ClosePeriod(ctx context.Context, closing domain.PeriodClosing) (err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.ClosePeriod",
		trace.WithAttributes(
			attribute.String("retainer.id", closing.Closed.RetainerID),
			attribute.String("period.id", closing.Closed.ID),
			attribute.String("period.next_id", closing.Next.ID),
			attribute.String("invoice_draft.id", closing.Draft.ID),
			attribute.Int64("period.expected_version", closing.ExpectedVersion),
		),
	)
	defer func() { endSpan(span, err) }()

	return r.next.ClosePeriod(ctx, closing)
}

func (r *TracingRetainerRepository) GetInvoiceDraft(ctx context.Context, id string) (_ domain.InvoiceDraft, err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.GetInvoiceDraft",
		trace.WithAttributes(attribute.String("invoice_draft.id", id)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.GetInvoiceDraft(ctx, id)
}

func (r *TracingRetainerRepository) ListInvoiceDrafts(ctx context.Context, retainerID string) (_ []domain.InvoiceDraft, err error) {
	ctx, span := r.tracer.Start(ctx, "RetainerRepository.ListInvoiceDrafts",
		trace.WithAttributes(attribute.String("retainer.id", retainerID)),
	)
	defer func() { endSpan(span, err) }()

	return r.next.ListInvoiceDrafts(ctx, retainerID)
}
