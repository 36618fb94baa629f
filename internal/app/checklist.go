package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/practiq/internal/domain"
)

// ChecklistService tracks progress through checklist items.
type ChecklistService struct {
	checklists domain.ChecklistRepository
	customers  domain.CustomerRepository
	templates  domain.TemplateCatalog
	clock      clock
}

// NewChecklistService creates a service with the given adapters.
func NewChecklistService(checklists domain.ChecklistRepository, customers domain.CustomerRepository, templates domain.TemplateCatalog, opts ...Option) *ChecklistService {
	return &ChecklistService{
		checklists: checklists,
		customers:  customers,
		templates:  templates,
		clock:      newClock(opts),
	}
}

// Instantiate creates a checklist for a customer from a template. An empty
// templateID selects the default onboarding template. A customer gets at most
// one instance per stage.
func (s *ChecklistService) Instantiate(ctx context.Context, customerID, templateID string) (domain.ChecklistInstance, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return domain.ChecklistInstance{}, err
	}

	var template domain.ChecklistTemplate
	var err error
	if templateID == "" {
		template, err = s.templates.DefaultFor(domain.StatusOnboarding)
	} else {
		template, err = s.templates.Get(templateID)
	}
	if err != nil {
		return domain.ChecklistInstance{}, err
	}

	inst := domain.NewChecklistInstance(template, customerID, newID, s.clock.Now())
	if err := s.checklists.CreateInstance(ctx, inst); err != nil {
		return domain.ChecklistInstance{}, fmt.Errorf("creating checklist: %w", err)
	}
	return inst, nil
}

// Get returns a checklist instance with its items.
func (s *ChecklistService) Get(ctx context.Context, id string) (domain.ChecklistInstance, error) {
	return s.checklists.GetInstance(ctx, id)
}

// GetForCustomer returns the onboarding checklist of a customer.
func (s *ChecklistService) GetForCustomer(ctx context.Context, customerID string) (domain.ChecklistInstance, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return domain.ChecklistInstance{}, err
	}
	return s.checklists.FindInstance(ctx, customerID, domain.StatusOnboarding)
}

// ItemAction identifies an item mutation. A non-zero ExpectedVersion pins the
// item version the caller saw; otherwise the version read here is used.
type ItemAction struct {
	ItemID          string
	ExpectedVersion int64
	ActorID         string
	Notes           string
	DocumentID      string
}

// Complete marks an item COMPLETED.
func (s *ChecklistService) Complete(ctx context.Context, in ItemAction) (domain.ChecklistItem, error) {
	return s.mutate(ctx, in, func(item domain.ChecklistItem, dep *domain.ChecklistItem) (domain.ChecklistItem, error) {
		return item.Complete(dep, in.ActorID, in.Notes, in.DocumentID, s.clock.Now())
	})
}

// Skip marks an optional item SKIPPED; Notes carries the reason.
func (s *ChecklistService) Skip(ctx context.Context, in ItemAction) (domain.ChecklistItem, error) {
	return s.mutate(ctx, in, func(item domain.ChecklistItem, dep *domain.ChecklistItem) (domain.ChecklistItem, error) {
		return item.Skip(dep, in.ActorID, in.Notes, s.clock.Now())
	})
}

// Reopen returns a COMPLETED item to PENDING without touching its dependents.
func (s *ChecklistService) Reopen(ctx context.Context, in ItemAction) (domain.ChecklistItem, error) {
	return s.mutate(ctx, in, func(item domain.ChecklistItem, _ *domain.ChecklistItem) (domain.ChecklistItem, error) {
		return item.Reopen(s.clock.Now())
	})
}

// mutate applies change to an item and commits it with a compare-and-swap on
// the item version.
func (s *ChecklistService) mutate(ctx context.Context, in ItemAction, change func(item domain.ChecklistItem, dep *domain.ChecklistItem) (domain.ChecklistItem, error)) (domain.ChecklistItem, error) {
	item, err := s.checklists.GetItem(ctx, in.ItemID)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	if in.ExpectedVersion != 0 && in.ExpectedVersion != item.Version {
		return domain.ChecklistItem{}, domain.StaleVersion("checklist item", item.ID)
	}

	var dep *domain.ChecklistItem
	if item.DependsOnItemID != "" {
		d, err := s.checklists.GetItem(ctx, item.DependsOnItemID)
		if err != nil {
			return domain.ChecklistItem{}, fmt.Errorf("loading item dependency: %w", err)
		}
		dep = &d
	}

	next, err := change(item, dep)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	next.Version = item.Version + 1

	if err := s.checklists.UpdateItem(ctx, next, item.Version); err != nil {
		return domain.ChecklistItem{}, fmt.Errorf("updating checklist item: %w", err)
	}
	return next, nil
}
