package sqlite_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/neomorfeo/practiq/internal/domain"
)

func TestCustomerCreate_And_GetByID(t *testing.T) {
	store := newTestStore(t)
	mustCreateCustomer(t, store, "c-1")

	got, err := store.Customers.GetByID(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if got.Name != "Customer c-1" {
		t.Errorf("Name = %q, want %q", got.Name, "Customer c-1")
	}
	if got.BillingEmail != "c-1@example.com" {
		t.Errorf("BillingEmail = %q", got.BillingEmail)
	}
	if got.Status != domain.StatusProspect {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusProspect)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.LastActivityAt != nil {
		t.Errorf("LastActivityAt = %v, want nil", got.LastActivityAt)
	}
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t0)
	}
}

func TestCustomerCreate_Duplicate(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")

	var conflict *domain.ConflictError
	if err := store.Customers.Create(ctx, c); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCustomerGetByID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Customers.GetByID(ctx, "nonexistent")
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCustomerUpdateProfile(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")

	c.ContactName = "Sam Ortiz"
	c.Version = 2
	if err := store.Customers.UpdateProfile(ctx, c, 1); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	got, _ := store.Customers.GetByID(ctx, "c-1")
	if got.ContactName != "Sam Ortiz" {
		t.Errorf("ContactName = %q, want %q", got.ContactName, "Sam Ortiz")
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
}

func TestCustomerUpdateProfile_StaleVersion(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")

	c.Version = 2
	if err := store.Customers.UpdateProfile(ctx, c, 1); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	c.ContactName = "Lost Write"
	var conflict *domain.ConflictError
	if err := store.Customers.UpdateProfile(ctx, c, 1); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	got, _ := store.Customers.GetByID(ctx, "c-1")
	if got.ContactName == "Lost Write" {
		t.Error("stale write was applied")
	}
}

func TestCustomerUpdateProfile_NotFound(t *testing.T) {
	store := newTestStore(t)

	c := domain.NewCustomer("ghost", "Ghost", "", "", t0)
	err := store.Customers.UpdateProfile(ctx, c, 1)
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCustomerList_FilterAndPagination(t *testing.T) {
	store := newTestStore(t)
	for i := range 5 {
		mustCreateCustomer(t, store, fmt.Sprintf("c-%d", i))
	}

	all, err := store.Customers.List(ctx, domain.ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("got %d customers, want 5", len(all))
	}

	page, err := store.Customers.List(ctx, domain.ListFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("got %d customers, want 2", len(page))
	}

	active, err := store.Customers.List(ctx, domain.ListFilter{Statuses: []domain.LifecycleStatus{domain.StatusActive}})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("got %d active customers, want 0", len(active))
	}
}

func transitionWrite(c domain.Customer, to domain.LifecycleStatus, event domain.Event, recordID string) domain.TransitionWrite {
	next := c
	next.Status = to
	next.Version = c.Version + 1
	next.UpdatedAt = t0.Add(time.Hour)
	return domain.TransitionWrite{
		Customer:        next,
		ExpectedVersion: c.Version,
		Record: domain.LifecycleTransitionRecord{
			ID:         recordID,
			CustomerID: c.ID,
			FromStatus: c.Status,
			ToStatus:   to,
			EventType:  event,
			OccurredAt: next.UpdatedAt,
			ActorID:    "actor-1",
			Details:    map[string]string{"reason": "kickoff"},
		},
	}
}

func TestApplyTransition_WritesStatusAndRecord(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")

	w := transitionWrite(c, domain.StatusOnboarding, domain.EventStartOnboarding, "tr-1")
	if err := store.Customers.ApplyTransition(ctx, w); err != nil {
		t.Fatalf("ApplyTransition failed: %v", err)
	}

	got, _ := store.Customers.GetByID(ctx, "c-1")
	if got.Status != domain.StatusOnboarding || got.Version != 2 {
		t.Errorf("customer = %s v%d, want ONBOARDING v2", got.Status, got.Version)
	}

	records, err := store.Customers.ListTransitions(ctx, "c-1")
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.FromStatus != domain.StatusProspect || rec.ToStatus != domain.StatusOnboarding {
		t.Errorf("record = %s -> %s", rec.FromStatus, rec.ToStatus)
	}
	if rec.Details["reason"] != "kickoff" {
		t.Errorf("details = %v", rec.Details)
	}
}

func TestApplyTransition_StaleVersionWritesNothing(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")

	if err := store.Customers.ApplyTransition(ctx, transitionWrite(c, domain.StatusOnboarding, domain.EventStartOnboarding, "tr-1")); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	var conflict *domain.ConflictError
	err := store.Customers.ApplyTransition(ctx, transitionWrite(c, domain.StatusOnboarding, domain.EventStartOnboarding, "tr-2"))
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	records, _ := store.Customers.ListTransitions(ctx, "c-1")
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
}

func TestApplyTransition_InstantiatesChecklistAtomically(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")
	inst := testInstance(c.ID)

	w := transitionWrite(c, domain.StatusOnboarding, domain.EventStartOnboarding, "tr-1")
	w.NewChecklist = &inst
	if err := store.Customers.ApplyTransition(ctx, w); err != nil {
		t.Fatalf("ApplyTransition failed: %v", err)
	}

	got, err := store.Checklists.FindInstance(ctx, c.ID, domain.StatusOnboarding)
	if err != nil {
		t.Fatalf("FindInstance failed: %v", err)
	}
	if len(got.Items) != len(inst.Items) {
		t.Errorf("got %d items, want %d", len(got.Items), len(inst.Items))
	}
}

func TestApplyTransition_ChecklistConflictRollsBack(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")
	inst := testInstance(c.ID)
	if err := store.Checklists.CreateInstance(ctx, inst); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}

	again := testInstance(c.ID)
	again.ID = "inst-2"
	for i := range again.Items {
		again.Items[i].ID += "-b"
		again.Items[i].InstanceID = again.ID
		if again.Items[i].DependsOnItemID != "" {
			again.Items[i].DependsOnItemID += "-b"
		}
	}

	w := transitionWrite(c, domain.StatusOnboarding, domain.EventStartOnboarding, "tr-1")
	w.NewChecklist = &again
	var conflict *domain.ConflictError
	if err := store.Customers.ApplyTransition(ctx, w); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	got, _ := store.Customers.GetByID(ctx, "c-1")
	if got.Status != domain.StatusProspect || got.Version != 1 {
		t.Errorf("customer = %s v%d, want PROSPECT v1 after rollback", got.Status, got.Version)
	}
}

func TestApplyTransition_ChecklistGuard(t *testing.T) {
	store := newTestStore(t)
	c := mustCreateCustomer(t, store, "c-1")
	inst := testInstance(c.ID)
	if err := store.Checklists.CreateInstance(ctx, inst); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}

	w := transitionWrite(c, domain.StatusOnboarding, domain.EventStartOnboarding, "tr-1")
	w.ChecklistGuard = &domain.VersionGuard{ID: inst.ID, Version: inst.Version + 1}

	var conflict *domain.ConflictError
	if err := store.Customers.ApplyTransition(ctx, w); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Resource != "checklist" {
		t.Errorf("Resource = %q, want checklist", conflict.Resource)
	}

	w.ChecklistGuard.Version = inst.Version
	if err := store.Customers.ApplyTransition(ctx, w); err != nil {
		t.Fatalf("ApplyTransition with current guard failed: %v", err)
	}
}

func TestListTransitions_UnknownCustomer(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Customers.ListTransitions(ctx, "nonexistent")
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestRecordActivity_OnlyMovesForward(t *testing.T) {
	store := newTestStore(t)
	mustCreateCustomer(t, store, "c-1")

	later := t0.AddDate(0, 0, 10)
	if err := store.Customers.RecordActivity(ctx, "c-1", later); err != nil {
		t.Fatalf("RecordActivity failed: %v", err)
	}
	if err := store.Customers.RecordActivity(ctx, "c-1", t0); err != nil {
		t.Fatalf("RecordActivity with older date failed: %v", err)
	}

	got, _ := store.Customers.GetByID(ctx, "c-1")
	if got.LastActivityAt == nil || !got.LastActivityAt.Equal(later) {
		t.Errorf("LastActivityAt = %v, want %v", got.LastActivityAt, later)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}

	if err := store.Customers.RecordActivity(ctx, "ghost", t0); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
}
