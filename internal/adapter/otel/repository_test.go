package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/practiq/internal/adapter/otel"
	"github.com/neomorfeo/practiq/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Stub repositories ---

// stubCustomers overrides the methods under test. Calling any other method
// panics through the nil embedded interface.
type stubCustomers struct {
	domain.CustomerRepository
	customers map[string]domain.Customer
	applyErr  error
	applied   []domain.TransitionWrite
}

func newStubCustomers() *stubCustomers {
	return &stubCustomers{customers: make(map[string]domain.Customer)}
}

func (s *stubCustomers) Create(_ context.Context, c domain.Customer) error {
	s.customers[c.ID] = c
	return nil
}

func (s *stubCustomers) GetByID(_ context.Context, id string) (domain.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return c, nil
}

func (s *stubCustomers) List(_ context.Context, _ domain.ListFilter) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubCustomers) ApplyTransition(_ context.Context, w domain.TransitionWrite) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = append(s.applied, w)
	return nil
}

type stubRetainers struct {
	domain.RetainerRepository
	periods  []domain.RetainerPeriod
	closeErr error
}

func (s *stubRetainers) ListPeriods(_ context.Context, _ string) ([]domain.RetainerPeriod, error) {
	return s.periods, nil
}

func (s *stubRetainers) ClosePeriod(_ context.Context, _ domain.PeriodClosing) error {
	return s.closeErr
}

var testNow = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// --- Tests ---

func TestTracingCustomerRepository_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newStubCustomers()
	repo := adapter.NewTracingCustomerRepository(inner)

	customer := domain.NewCustomer("c-1", "Acme", "Ana", "billing@acme.test", testNow)
	if err := repo.Create(context.Background(), customer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "CustomerRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "CustomerRepository.Create")
	}
	assertAttribute(t, spans[0], "customer.id", "c-1")

	if _, ok := inner.customers["c-1"]; !ok {
		t.Error("customer was not forwarded to the inner repository")
	}
}

func TestTracingCustomerRepository_GetByID_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingCustomerRepository(newStubCustomers())

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("err = %v, want ErrCustomerNotFound", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingCustomerRepository_List_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newStubCustomers()
	inner.customers["c-1"] = domain.NewCustomer("c-1", "Acme", "", "", testNow)
	inner.customers["c-2"] = domain.NewCustomer("c-2", "Globex", "", "", testNow)
	repo := adapter.NewTracingCustomerRepository(inner)

	got, err := repo.List(context.Background(), domain.ListFilter{
		Statuses: []domain.LifecycleStatus{domain.StatusProspect},
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d customers, want 2", len(got))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "2")
	assertAttribute(t, spans[0], "filter.limit", "10")
	assertAttribute(t, spans[0], "filter.statuses", `["PROSPECT"]`)
}

func TestTracingCustomerRepository_ApplyTransition_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newStubCustomers()
	repo := adapter.NewTracingCustomerRepository(inner)

	write := domain.TransitionWrite{
		Customer:        domain.Customer{ID: "c-1", Status: domain.StatusOnboarding},
		ExpectedVersion: 3,
		Record: domain.LifecycleTransitionRecord{
			CustomerID: "c-1",
			FromStatus: domain.StatusProspect,
			ToStatus:   domain.StatusOnboarding,
		},
	}
	if err := repo.ApplyTransition(context.Background(), write); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.applied) != 1 {
		t.Fatalf("inner received %d writes, want 1", len(inner.applied))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "transition.from", "PROSPECT")
	assertAttribute(t, spans[0], "transition.to", "ONBOARDING")
	assertAttribute(t, spans[0], "customer.expected_version", "3")
	assertAttribute(t, spans[0], "checklist.instantiated", "false")
}

func TestTracingCustomerRepository_ApplyTransition_RecordsConflict(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newStubCustomers()
	inner.applyErr = &domain.ConflictError{Resource: "customer", ID: "c-1"}
	repo := adapter.NewTracingCustomerRepository(inner)

	err := repo.ApplyTransition(context.Background(), domain.TransitionWrite{
		Customer: domain.Customer{ID: "c-1"},
	})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

func TestTracingRetainerRepository_ListPeriods_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &stubRetainers{periods: []domain.RetainerPeriod{{ID: "p-1"}, {ID: "p-2"}, {ID: "p-3"}}}
	repo := adapter.NewTracingRetainerRepository(inner)

	if _, err := repo.ListPeriods(context.Background(), "r-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "RetainerRepository.ListPeriods" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "RetainerRepository.ListPeriods")
	}
	assertAttribute(t, spans[0], "retainer.id", "r-1")
	assertAttribute(t, spans[0], "result.count", "3")
}

func TestTracingRetainerRepository_ClosePeriod_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &stubRetainers{closeErr: errors.New("disk I/O error")}
	repo := adapter.NewTracingRetainerRepository(inner)

	err := repo.ClosePeriod(context.Background(), domain.PeriodClosing{
		Closed: domain.RetainerPeriod{ID: "p-1", RetainerID: "r-1"},
		Next:   domain.RetainerPeriod{ID: "p-2"},
		Draft:  domain.InvoiceDraft{ID: "inv-1"},
	})
	if err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "period.id", "p-1")
	assertAttribute(t, spans[0], "period.next_id", "p-2")
	assertAttribute(t, spans[0], "invoice_draft.id", "inv-1")
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
