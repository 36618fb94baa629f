package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neomorfeo/practiq/internal/domain"
)

// LifecycleService orchestrates customer provisioning and lifecycle transitions.
type LifecycleService struct {
	customers  domain.CustomerRepository
	checklists domain.ChecklistRepository
	templates  domain.TemplateCatalog
	validator  domain.TransitionValidator
	gate       *PrerequisiteGate
	publisher  domain.EventPublisher
	clock      clock
}

// NewLifecycleService creates a service with the given adapters.
func NewLifecycleService(
	customers domain.CustomerRepository,
	checklists domain.ChecklistRepository,
	templates domain.TemplateCatalog,
	validator domain.TransitionValidator,
	gate *PrerequisiteGate,
	publisher domain.EventPublisher,
	opts ...Option,
) *LifecycleService {
	return &LifecycleService{
		customers:  customers,
		checklists: checklists,
		templates:  templates,
		validator:  validator,
		gate:       gate,
		publisher:  publisher,
		clock:      newClock(opts),
	}
}

// CreateCustomerInput holds the fields of a new customer.
type CreateCustomerInput struct {
	Name         string
	ContactName  string
	BillingEmail string
}

// Create persists a new customer in PROSPECT.
func (s *LifecycleService) Create(ctx context.Context, in CreateCustomerInput) (domain.Customer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Customer{}, domain.Invalid("customer name is required")
	}
	if err := checkEmail(in.BillingEmail); err != nil {
		return domain.Customer{}, err
	}

	customer := domain.NewCustomer(newID(), name, strings.TrimSpace(in.ContactName), strings.TrimSpace(in.BillingEmail), s.clock.Now())

	if err := s.customers.Create(ctx, customer); err != nil {
		return domain.Customer{}, fmt.Errorf("creating customer: %w", err)
	}
	return customer, nil
}

// GetByID returns a customer by its unique identifier.
func (s *LifecycleService) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	return s.customers.GetByID(ctx, id)
}

// List returns customers matching the given filter.
func (s *LifecycleService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Customer, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, domain.Invalid("unknown lifecycle status %q", status)
		}
	}
	return s.customers.List(ctx, filter)
}

// ProfileUpdate carries the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	ExpectedVersion int64
	Name            *string
	ContactName     *string
	BillingEmail    *string
}

// UpdateProfile rewrites profile fields if the customer is still at
// ExpectedVersion, bumping its version.
func (s *LifecycleService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer.Version != in.ExpectedVersion {
		return domain.Customer{}, domain.StaleVersion("customer", id)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Customer{}, domain.Invalid("customer name cannot be blank")
		}
		customer.Name = name
	}
	if in.ContactName != nil {
		customer.ContactName = strings.TrimSpace(*in.ContactName)
	}
	if in.BillingEmail != nil {
		if err := checkEmail(*in.BillingEmail); err != nil {
			return domain.Customer{}, err
		}
		customer.BillingEmail = strings.TrimSpace(*in.BillingEmail)
	}

	customer.Version = in.ExpectedVersion + 1
	customer.UpdatedAt = s.clock.Now()

	if err := s.customers.UpdateProfile(ctx, customer, in.ExpectedVersion); err != nil {
		return domain.Customer{}, fmt.Errorf("updating customer profile: %w", err)
	}
	return customer, nil
}

// TransitionInput describes a requested lifecycle move.
type TransitionInput struct {
	CustomerID string
	Target     domain.LifecycleStatus
	ActorID    string
	Reason     string
}

// TransitionResult is the outcome of a committed transition.
type TransitionResult struct {
	Customer domain.Customer
	Record   domain.LifecycleTransitionRecord
}

// Transition moves a customer to Target. The edge and its guards are checked
// by the validator, the context prerequisites are re-checked right before
// the write, and the write itself is keyed on the version that was read.
func (s *LifecycleService) Transition(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	if !in.Target.Valid() {
		return TransitionResult{}, domain.Invalid("unknown lifecycle status %q", in.Target)
	}
	if strings.TrimSpace(in.ActorID) == "" {
		return TransitionResult{}, domain.Invalid("actor id is required")
	}

	customer, err := s.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return TransitionResult{}, err
	}

	checklist, err := s.onboardingChecklist(ctx, customer.ID)
	if err != nil {
		return TransitionResult{}, err
	}

	event, err := s.validator.Apply(ctx, domain.TransitionRequest{
		Customer:  customer,
		Target:    in.Target,
		Checklist: checklist,
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if pc, gated := domain.GateFor(event); gated {
		if err := s.gate.enforce(ctx, pc, customer.ID); err != nil {
			return TransitionResult{}, err
		}
	}

	now := s.clock.Now()
	next := customer
	next.Status = in.Target
	next.Version = customer.Version + 1
	next.UpdatedAt = now

	record := domain.LifecycleTransitionRecord{
		ID:         newID(),
		CustomerID: customer.ID,
		FromStatus: customer.Status,
		ToStatus:   in.Target,
		EventType:  event,
		OccurredAt: now,
		ActorID:    in.ActorID,
		Details:    map[string]string{},
	}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		record.Details["reason"] = reason
	}

	write := domain.TransitionWrite{
		Customer:        next,
		ExpectedVersion: customer.Version,
		Record:          record,
	}

	switch event {
	case domain.EventStartOnboarding:
		if checklist == nil {
			template, err := s.templates.DefaultFor(domain.StatusOnboarding)
			if err != nil {
				return TransitionResult{}, fmt.Errorf("resolving onboarding template: %w", err)
			}
			inst := domain.NewChecklistInstance(template, customer.ID, newID, now)
			write.NewChecklist = &inst
			record.Details["checklistId"] = inst.ID
		}
	case domain.EventActivate:
		if checklist != nil {
			write.ChecklistGuard = &domain.VersionGuard{ID: checklist.ID, Version: checklist.Version}
			record.Details["checklistId"] = checklist.ID
		}
	}

	if err := s.customers.ApplyTransition(ctx, write); err != nil {
		return TransitionResult{}, fmt.Errorf("applying transition %s: %w", event, err)
	}

	if err := s.publisher.PublishTransition(ctx, record); err != nil {
		slog.WarnContext(ctx, "publishing transition failed",
			"customer_id", customer.ID,
			"event", event,
			"error", err,
		)
	}

	return TransitionResult{Customer: next, Record: record}, nil
}

// ListTransitions returns the audit history of a customer, oldest first.
func (s *LifecycleService) ListTransitions(ctx context.Context, customerID string) ([]domain.LifecycleTransitionRecord, error) {
	return s.customers.ListTransitions(ctx, customerID)
}

func (s *LifecycleService) onboardingChecklist(ctx context.Context, customerID string) (*domain.ChecklistInstance, error) {
	inst, err := s.checklists.FindInstance(ctx, customerID, domain.StatusOnboarding)
	if errors.Is(err, domain.ErrChecklistNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading onboarding checklist: %w", err)
	}
	return &inst, nil
}

func checkEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return domain.Invalid("billing email %q is not an email address", email)
	}
	return nil
}
