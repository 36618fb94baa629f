package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerRepository defines the persistence contract for customers and
// their lifecycle history.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) error
	GetByID(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context, filter ListFilter) ([]Customer, error)
	// UpdateProfile writes contact fields if the stored version equals expectedVersion.
	UpdateProfile(ctx context.Context, customer Customer, expectedVersion int64) error
	// ApplyTransition commits status, version and audit record atomically.
	ApplyTransition(ctx context.Context, write TransitionWrite) error
	ListTransitions(ctx context.Context, customerID string) ([]LifecycleTransitionRecord, error)
	// RecordActivity moves LastActivityAt forward to at; it never moves it back.
	RecordActivity(ctx context.Context, customerID string, at time.Time) error
}

// ListFilter holds optional criteria for listing customers.
type ListFilter struct {
	Statuses []LifecycleStatus
	Limit    int
	Offset   int
}

// ChecklistRepository persists checklist instances and items.
type ChecklistRepository interface {
	CreateInstance(ctx context.Context, instance ChecklistInstance) error
	GetInstance(ctx context.Context, id string) (ChecklistInstance, error)
	FindInstance(ctx context.Context, customerID string, stage LifecycleStatus) (ChecklistInstance, error)
	GetItem(ctx context.Context, id string) (ChecklistItem, error)
	// UpdateItem writes item if the stored item still carries expectedVersion.
	UpdateItem(ctx context.Context, item ChecklistItem, expectedVersion int64) error
}

// TemplateCatalog resolves checklist templates.
type TemplateCatalog interface {
	Get(id string) (ChecklistTemplate, error)
	DefaultFor(stage LifecycleStatus) (ChecklistTemplate, error)
}

// RetainerRepository persists retainers, their periods and invoice drafts.
type RetainerRepository interface {
	Create(ctx context.Context, retainer Retainer, first RetainerPeriod) error
	GetByID(ctx context.Context, id string) (Retainer, error)
	FindLiveForCustomer(ctx context.Context, customerID string) (Retainer, error)
	UpdateStatus(ctx context.Context, retainer Retainer, expectedVersion int64) error
	GetPeriod(ctx context.Context, id string) (RetainerPeriod, error)
	ListPeriods(ctx context.Context, retainerID string) ([]RetainerPeriod, error)
	// ClosePeriod commits the three writes of a period close as one unit.
	ClosePeriod(ctx context.Context, closing PeriodClosing) error
	GetInvoiceDraft(ctx context.Context, id string) (InvoiceDraft, error)
	ListInvoiceDrafts(ctx context.Context, retainerID string) ([]InvoiceDraft, error)
}

// TimeEntryRepository stores logged time and aggregates approved hours.
type TimeEntryRepository interface {
	Create(ctx context.Context, entry TimeEntry) error
	Get(ctx context.Context, id string) (TimeEntry, error)
	UpdateStatus(ctx context.Context, id string, from, to TimeEntryStatus, at time.Time) error
	ApprovedHours(ctx context.Context, retainerID string, start, end time.Time) (decimal.Decimal, error)
	PendingApprovals(ctx context.Context, retainerID string, start, end time.Time) (int, error)
	// LoggedHours sums the non-rejected hours actorID logged on workDate.
	LoggedHours(ctx context.Context, actorID string, workDate time.Time) (decimal.Decimal, error)
}

// RateRepository stores billing rates and resolves the rate in force.
type RateRepository interface {
	Create(ctx context.Context, rate BillingRate) error
	// Resolve returns the newest customer rate effective at at, falling back
	// to the organization-wide rate. ok is false when neither exists.
	Resolve(ctx context.Context, customerID string, at time.Time) (rate decimal.Decimal, ok bool, err error)
}

// TransitionValidator decides whether a lifecycle transition may happen and
// returns the event that performs it.
type TransitionValidator interface {
	Apply(ctx context.Context, req TransitionRequest) (Event, error)
}

// EventPublisher is the audit/notification sink. It sits outside the
// transactional boundary.
type EventPublisher interface {
	PublishTransition(ctx context.Context, record LifecycleTransitionRecord) error
	PublishPeriodClosed(ctx context.Context, result PeriodCloseResult) error
}
