package app_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

func TestCheck_RepeatedCallsAreIdentical(t *testing.T) {
	env := newEnv(t)
	c, err := env.lifecycle.Create(ctx, app.CreateCustomerInput{Name: "Bare Minimum Co"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	env.transition(t, c.ID, domain.StatusOnboarding)

	first, err := env.gate.Check(ctx, domain.ContextActivateCustomer, domain.EntityCustomer, c.ID)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	second, err := env.gate.Check(ctx, domain.ContextActivateCustomer, domain.EntityCustomer, c.ID)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Errorf("checks differ:\n%s\n%s", a, b)
	}
	if first.Passed {
		t.Fatal("check should fail")
	}

	// Two missing fields plus two pending required items (one needs a document).
	counts := map[domain.ViolationCode]int{}
	for _, v := range first.Violations {
		counts[v.Code]++
		if v.Resolution == "" {
			t.Errorf("violation %q has no resolution", v.Message)
		}
	}
	if counts[domain.ViolationMissingField] != 2 || counts[domain.ViolationMissingDocument] != 1 || counts[domain.ViolationUnmetDependency] != 1 {
		t.Errorf("violation counts = %v", counts)
	}

	after, _ := env.lifecycle.GetByID(ctx, c.ID)
	if after.Version != 2 {
		t.Errorf("check changed the customer version to %d", after.Version)
	}
}

func TestCheck_ResolveAndRecheck(t *testing.T) {
	env := newEnv(t)
	c, inst := env.onboarding(t)

	result, err := env.gate.Check(ctx, domain.ContextActivateCustomer, domain.EntityCustomer, c.ID)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.Passed {
		t.Fatal("check should fail before the checklist is done")
	}

	env.finishChecklist(t, inst)

	result, err = env.gate.Check(ctx, domain.ContextActivateCustomer, domain.EntityCustomer, c.ID)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Passed || len(result.Violations) != 0 {
		t.Errorf("result = %+v, want passed with no violations", result)
	}
}

func TestCheck_EngagementLetterNeedsActiveRetainer(t *testing.T) {
	env := newEnv(t)
	c := env.active(t)

	result, err := env.gate.Check(ctx, domain.ContextGenerateEngagementLetter, domain.EntityCustomer, c.ID)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.Passed {
		t.Fatal("check should fail without a retainer")
	}

	env.createRetainer(t, c.ID, hourBankInput(c.ID))
	result, _ = env.gate.Check(ctx, domain.ContextGenerateEngagementLetter, domain.EntityCustomer, c.ID)
	if !result.Passed {
		t.Errorf("violations = %+v, want none", result.Violations)
	}
}

func TestCheck_PeriodContext(t *testing.T) {
	env := newEnv(t)
	c := env.active(t)
	_, open := env.createRetainer(t, c.ID, hourBankInput(c.ID))

	result, err := env.gate.Check(ctx, domain.ContextCloseRetainerPeriod, domain.EntityRetainerPeriod, open.ID)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if result.Passed || result.Violations[0].FieldSlug != "period_end" {
		t.Errorf("result = %+v, want a period_end violation", result)
	}

	env.now = february
	result, _ = env.gate.Check(ctx, domain.ContextCloseRetainerPeriod, domain.EntityRetainerPeriod, open.ID)
	if !result.Passed {
		t.Errorf("violations = %+v, want none", result.Violations)
	}
}

func TestCheck_Errors(t *testing.T) {
	env := newEnv(t)
	c := env.createCustomer(t)

	_, err := env.gate.Check(ctx, domain.ContextCloseRetainerPeriod, domain.EntityCustomer, c.ID)
	assertCode(t, err, domain.CodeEntityTypeMismatch)

	_, err = env.gate.Check(ctx, "LAUNCH_ROCKET", domain.EntityCustomer, c.ID)
	assertCode(t, err, domain.CodeInvalidInput)

	_, err = env.gate.Check(ctx, domain.ContextActivateCustomer, domain.EntityCustomer, "ghost")
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}

	_, err = env.gate.Check(ctx, domain.ContextCloseRetainerPeriod, domain.EntityRetainerPeriod, "ghost")
	if !errors.Is(err, domain.ErrPeriodNotFound) {
		t.Errorf("expected ErrPeriodNotFound, got %v", err)
	}
}
