package app_test

import (
	"errors"
	"testing"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

func TestInstantiate_OncePerStage(t *testing.T) {
	env := newEnv(t)
	c := env.createCustomer(t)

	inst, err := env.checklists.Instantiate(ctx, c.ID, "")
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if inst.Version != 1 || len(inst.Items) != 3 {
		t.Errorf("instance = v%d with %d items", inst.Version, len(inst.Items))
	}

	_, err = env.checklists.Instantiate(ctx, c.ID, "onboarding-test")
	assertConflict(t, err)

	// Entering ONBOARDING keeps the existing instance.
	res := env.transition(t, c.ID, domain.StatusOnboarding)
	if _, ok := res.Record.Details["checklistId"]; ok {
		t.Error("transition should not instantiate a second checklist")
	}
	got, _ := env.checklists.GetForCustomer(ctx, c.ID)
	if got.ID != inst.ID {
		t.Errorf("checklist = %s, want %s", got.ID, inst.ID)
	}
}

func TestInstantiate_UnknownTemplateAndCustomer(t *testing.T) {
	env := newEnv(t)
	c := env.createCustomer(t)

	if _, err := env.checklists.Instantiate(ctx, c.ID, "nonexistent"); !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
	if _, err := env.checklists.Instantiate(ctx, "ghost", ""); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestComplete_RequiresDocument(t *testing.T) {
	env := newEnv(t)
	_, inst := env.onboarding(t)
	kyc := itemByKey(t, inst, "kyc")

	_, err := env.checklists.Complete(ctx, app.ItemAction{ItemID: kyc.ID, ActorID: "actor-1"})
	assertCode(t, err, domain.CodeDocumentRequired)

	item, err := env.checklists.Complete(ctx, app.ItemAction{ItemID: kyc.ID, ActorID: "actor-1", DocumentID: "passport.pdf", Notes: "checked"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if item.Status != domain.ItemCompleted || item.CompletedBy != "actor-1" || item.Notes != "checked" {
		t.Errorf("item = %+v", item)
	}
	if item.Version != kyc.Version+1 {
		t.Errorf("Version = %d, want %d", item.Version, kyc.Version+1)
	}
}

func TestComplete_DependencyMustBeResolved(t *testing.T) {
	env := newEnv(t)
	_, inst := env.onboarding(t)
	letter := itemByKey(t, inst, "letter")

	_, err := env.checklists.Complete(ctx, app.ItemAction{ItemID: letter.ID, ActorID: "actor-1"})
	assertCode(t, err, domain.CodeDependencyPending)

	got, _ := env.checklists.Get(ctx, inst.ID)
	if got.Version != inst.Version {
		t.Errorf("instance version moved to %d on a rejected change", got.Version)
	}
}

func TestSkip_RequiredItemNeverSkippable(t *testing.T) {
	env := newEnv(t)
	_, inst := env.onboarding(t)

	for _, item := range inst.Items {
		if !item.Required {
			continue
		}
		_, err := env.checklists.Skip(ctx, app.ItemAction{ItemID: item.ID, ActorID: "admin", Notes: "not needed"})
		assertCode(t, err, domain.CodeRequiredNotSkippable)
	}
}

func TestSkip_OptionalItem(t *testing.T) {
	env := newEnv(t)
	_, inst := env.onboarding(t)
	env.finishChecklist(t, inst)
	intro := itemByKey(t, inst, "intro")

	_, err := env.checklists.Skip(ctx, app.ItemAction{ItemID: intro.ID, ActorID: "actor-1"})
	assertCode(t, err, domain.CodeInvalidInput)

	item, err := env.checklists.Skip(ctx, app.ItemAction{ItemID: intro.ID, ActorID: "actor-1", Notes: "client declined"})
	if err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if item.Status != domain.ItemSkipped || item.Notes != "client declined" {
		t.Errorf("item = %+v", item)
	}
}

func TestReopen_DoesNotCascade(t *testing.T) {
	env := newEnv(t)
	_, inst := env.onboarding(t)
	env.finishChecklist(t, inst)
	kyc := itemByKey(t, inst, "kyc")

	item, err := env.checklists.Reopen(ctx, app.ItemAction{ItemID: kyc.ID, ActorID: "actor-1"})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if item.Status != domain.ItemPending || item.CompletedAt != nil || item.DocumentID != "" {
		t.Errorf("reopened item = %+v", item)
	}

	got, _ := env.checklists.Get(ctx, inst.ID)
	if letter := itemByKey(t, got, "letter"); letter.Status != domain.ItemCompleted {
		t.Errorf("dependent status = %s, want COMPLETED", letter.Status)
	}

	_, err = env.checklists.Reopen(ctx, app.ItemAction{ItemID: kyc.ID, ActorID: "actor-1"})
	assertCode(t, err, domain.CodeItemNotCompleted)
}

func TestItemMutation_StaleExpectedVersion(t *testing.T) {
	env := newEnv(t)
	_, inst := env.onboarding(t)
	kyc := itemByKey(t, inst, "kyc")

	if _, err := env.checklists.Complete(ctx, app.ItemAction{ItemID: kyc.ID, ExpectedVersion: kyc.Version, ActorID: "a", DocumentID: "d"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	_, err := env.checklists.Reopen(ctx, app.ItemAction{ItemID: kyc.ID, ExpectedVersion: kyc.Version, ActorID: "b"})
	assertConflict(t, err)
}

func TestActivation_ConflictsWhenChecklistChangesAfterGuard(t *testing.T) {
	env := newEnv(t)
	c, inst := env.onboarding(t)
	env.finishChecklist(t, inst)

	// Guarded write for a checklist version that is no longer current.
	current, _ := env.checklists.Get(ctx, inst.ID)
	stale := domain.TransitionWrite{
		Customer:        c,
		ExpectedVersion: c.Version,
		ChecklistGuard:  &domain.VersionGuard{ID: current.ID, Version: current.Version - 1},
		Record: domain.LifecycleTransitionRecord{
			ID: "tr-stale", CustomerID: c.ID, FromStatus: c.Status, ToStatus: domain.StatusActive,
			EventType: domain.EventActivate, OccurredAt: env.now, ActorID: "actor-1",
		},
	}
	stale.Customer.Status = domain.StatusActive
	stale.Customer.Version++

	err := env.store.Customers.ApplyTransition(ctx, stale)
	assertConflict(t, err)

	got, _ := env.lifecycle.GetByID(ctx, c.ID)
	if got.Status != domain.StatusOnboarding {
		t.Errorf("Status = %s, want ONBOARDING", got.Status)
	}
}
