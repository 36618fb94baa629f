package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neomorfeo/practiq/internal/adapter/fsm"
	"github.com/neomorfeo/practiq/internal/adapter/sqlite"
	"github.com/neomorfeo/practiq/internal/adapter/templates"
	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

// --- Test doubles ---

type recordingPublisher struct {
	mu          sync.Mutex
	transitions []domain.LifecycleTransitionRecord
	closes      []domain.PeriodCloseResult
	fail        bool
}

func (p *recordingPublisher) PublishTransition(_ context.Context, rec domain.LifecycleTransitionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("sink unavailable")
	}
	p.transitions = append(p.transitions, rec)
	return nil
}

func (p *recordingPublisher) PublishPeriodClosed(_ context.Context, res domain.PeriodCloseResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("sink unavailable")
	}
	p.closes = append(p.closes, res)
	return nil
}

const testCatalog = `
templates:
  - id: onboarding-test
    name: Test onboarding
    stage: ONBOARDING
    items:
      - {key: kyc, title: Verify identity, required: true, requiresDocument: true}
      - {key: letter, title: Sign engagement letter, required: true, dependsOn: kyc}
      - {key: intro, title: Intro call, dependsOn: kyc}
`

// --- Environment ---

type testEnv struct {
	now         time.Time
	store       *sqlite.Store
	pub         *recordingPublisher
	gate        *app.PrerequisiteGate
	lifecycle   *app.LifecycleService
	checklists  *app.ChecklistService
	retainers   *app.RetainerService
	timeEntries *app.TimeEntryService
	dormancy    *app.DormancyScanner
}

var ctx = context.Background()

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog, err := templates.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parsing catalog: %v", err)
	}

	env := &testEnv{
		now:   time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		store: store,
		pub:   &recordingPublisher{},
	}
	clock := app.WithClock(func() time.Time { return env.now })

	env.gate = app.NewPrerequisiteGate(store.Customers, store.Checklists, store.Retainers, store.TimeEntries, clock)
	env.lifecycle = app.NewLifecycleService(store.Customers, store.Checklists, catalog, fsm.New(), env.gate, env.pub, clock)
	env.checklists = app.NewChecklistService(store.Checklists, store.Customers, catalog, clock)
	env.retainers = app.NewRetainerService(store.Retainers, store.Customers, store.TimeEntries, store.Rates, env.gate, env.pub, "USD", clock)
	env.timeEntries = app.NewTimeEntryService(store.TimeEntries, store.Customers, store.Retainers, clock)
	env.dormancy = app.NewDormancyScanner(store.Customers, domain.DormancyPolicy{ThresholdDays: 90, GraceDays: 30}, clock)
	return env
}

func (e *testEnv) createCustomer(t *testing.T) domain.Customer {
	t.Helper()
	c, err := e.lifecycle.Create(ctx, app.CreateCustomerInput{
		Name:         "Harbor & Finch LLP",
		ContactName:  "Dana Reyes",
		BillingEmail: "billing@harborfinch.example",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return c
}

func (e *testEnv) transition(t *testing.T, customerID string, target domain.LifecycleStatus) app.TransitionResult {
	t.Helper()
	res, err := e.lifecycle.Transition(ctx, app.TransitionInput{CustomerID: customerID, Target: target, ActorID: "actor-1"})
	if err != nil {
		t.Fatalf("Transition to %s failed: %v", target, err)
	}
	return res
}

// onboarding returns a customer in ONBOARDING and its checklist.
func (e *testEnv) onboarding(t *testing.T) (domain.Customer, domain.ChecklistInstance) {
	t.Helper()
	c := e.createCustomer(t)
	res := e.transition(t, c.ID, domain.StatusOnboarding)
	inst, err := e.checklists.GetForCustomer(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetForCustomer failed: %v", err)
	}
	return res.Customer, inst
}

// finishChecklist completes every required item in order.
func (e *testEnv) finishChecklist(t *testing.T, inst domain.ChecklistInstance) {
	t.Helper()
	for _, item := range inst.Items {
		if !item.Required {
			continue
		}
		doc := ""
		if item.RequiresDocument {
			doc = "doc-" + item.Key
		}
		if _, err := e.checklists.Complete(ctx, app.ItemAction{ItemID: item.ID, ActorID: "actor-1", DocumentID: doc}); err != nil {
			t.Fatalf("Complete(%s) failed: %v", item.Key, err)
		}
	}
}

// active returns an ACTIVE customer.
func (e *testEnv) active(t *testing.T) domain.Customer {
	t.Helper()
	c, inst := e.onboarding(t)
	e.finishChecklist(t, inst)
	return e.transition(t, c.ID, domain.StatusActive).Customer
}

func itemByKey(t *testing.T, inst domain.ChecklistInstance, key string) domain.ChecklistItem {
	t.Helper()
	for _, item := range inst.Items {
		if item.Key == key {
			return item
		}
	}
	t.Fatalf("item %q not found", key)
	return domain.ChecklistItem{}
}

func assertCode(t *testing.T, err error, want domain.ErrorCode) {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError %s, got %v", want, err)
	}
	if verr.Code != want {
		t.Fatalf("code = %s, want %s (%v)", verr.Code, want, err)
	}
}

func assertConflict(t *testing.T, err error) {
	t.Helper()
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}
