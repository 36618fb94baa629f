package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/neomorfeo/practiq/internal/domain"
)

// PrerequisiteGate answers "can this action proceed" without writing anything.
type PrerequisiteGate struct {
	customers   domain.CustomerRepository
	checklists  domain.ChecklistRepository
	retainers   domain.RetainerRepository
	timeEntries domain.TimeEntryRepository
	clock       clock
}

// NewPrerequisiteGate creates a gate reading through the given repositories.
func NewPrerequisiteGate(
	customers domain.CustomerRepository,
	checklists domain.ChecklistRepository,
	retainers domain.RetainerRepository,
	timeEntries domain.TimeEntryRepository,
	opts ...Option,
) *PrerequisiteGate {
	return &PrerequisiteGate{
		customers:   customers,
		checklists:  checklists,
		retainers:   retainers,
		timeEntries: timeEntries,
		clock:       newClock(opts),
	}
}

// Check evaluates the rules of a context against the current state of an
// entity. Repeated calls over unchanged state return identical results.
func (g *PrerequisiteGate) Check(ctx context.Context, pc domain.PrerequisiteContext, entityType domain.EntityType, entityID string) (domain.CheckResult, error) {
	spec, ok := domain.Prerequisites[pc]
	if !ok {
		return domain.CheckResult{}, domain.Invalid("unknown prerequisite context %q", pc)
	}
	if entityType != spec.EntityType {
		return domain.CheckResult{}, &domain.ValidationError{
			Code:    domain.CodeEntityTypeMismatch,
			Message: fmt.Sprintf("%s checks a %s, not a %s", pc, spec.EntityType, entityType),
		}
	}

	var snap domain.PrerequisiteSnapshot
	var err error
	switch spec.EntityType {
	case domain.EntityCustomer:
		snap, err = g.customerSnapshot(ctx, entityID)
	case domain.EntityRetainerPeriod:
		snap, err = g.periodSnapshot(ctx, entityID)
	default:
		return domain.CheckResult{}, fmt.Errorf("no snapshot loader for entity type %s", spec.EntityType)
	}
	if err != nil {
		return domain.CheckResult{}, err
	}

	return spec.Evaluate(snap), nil
}

// enforce runs a check and turns a failure into a *domain.DependencyError.
func (g *PrerequisiteGate) enforce(ctx context.Context, pc domain.PrerequisiteContext, entityID string) error {
	spec := domain.Prerequisites[pc]
	result, err := g.Check(ctx, pc, spec.EntityType, entityID)
	if err != nil {
		return err
	}
	if !result.Passed {
		return &domain.DependencyError{Context: pc, Violations: result.Violations}
	}
	return nil
}

func (g *PrerequisiteGate) customerSnapshot(ctx context.Context, customerID string) (domain.PrerequisiteSnapshot, error) {
	customer, err := g.customers.GetByID(ctx, customerID)
	if err != nil {
		return domain.PrerequisiteSnapshot{}, err
	}
	snap := domain.PrerequisiteSnapshot{Now: g.clock.Now(), Customer: &customer}

	checklist, err := g.checklists.FindInstance(ctx, customerID, domain.StatusOnboarding)
	switch {
	case err == nil:
		snap.Checklist = &checklist
	case !errors.Is(err, domain.ErrChecklistNotFound):
		return domain.PrerequisiteSnapshot{}, fmt.Errorf("loading checklist: %w", err)
	}

	retainer, err := g.retainers.FindLiveForCustomer(ctx, customerID)
	switch {
	case err == nil:
		snap.Retainer = &retainer
	case !errors.Is(err, domain.ErrRetainerNotFound):
		return domain.PrerequisiteSnapshot{}, fmt.Errorf("loading retainer: %w", err)
	}

	return snap, nil
}

func (g *PrerequisiteGate) periodSnapshot(ctx context.Context, periodID string) (domain.PrerequisiteSnapshot, error) {
	period, err := g.retainers.GetPeriod(ctx, periodID)
	if err != nil {
		return domain.PrerequisiteSnapshot{}, err
	}
	retainer, err := g.retainers.GetByID(ctx, period.RetainerID)
	if err != nil {
		return domain.PrerequisiteSnapshot{}, fmt.Errorf("loading retainer of period: %w", err)
	}
	pending, err := g.timeEntries.PendingApprovals(ctx, retainer.ID, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return domain.PrerequisiteSnapshot{}, err
	}

	return domain.PrerequisiteSnapshot{
		Now:              g.clock.Now(),
		Retainer:         &retainer,
		Period:           &period,
		PendingApprovals: pending,
	}, nil
}
