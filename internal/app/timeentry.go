package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/practiq/internal/domain"
)

// maxHoursPerDay caps what one actor may log on a single work date.
var maxHoursPerDay = decimal.NewFromInt(24)

// TimeEntryService records logged time and its approval.
type TimeEntryService struct {
	entries   domain.TimeEntryRepository
	customers domain.CustomerRepository
	retainers domain.RetainerRepository
	clock     clock
}

// NewTimeEntryService creates a service with the given adapters.
func NewTimeEntryService(entries domain.TimeEntryRepository, customers domain.CustomerRepository, retainers domain.RetainerRepository, opts ...Option) *TimeEntryService {
	return &TimeEntryService{
		entries:   entries,
		customers: customers,
		retainers: retainers,
		clock:     newClock(opts),
	}
}

// RecordTimeInput describes logged work. RetainerID is optional.
type RecordTimeInput struct {
	CustomerID  string
	RetainerID  string
	WorkDate    time.Time
	Hours       decimal.Decimal
	Description string
	ActorID     string
}

// Record stores a SUBMITTED entry and moves the customer's last activity
// forward to the work date. The customer version is not touched.
func (s *TimeEntryService) Record(ctx context.Context, in RecordTimeInput) (domain.TimeEntry, error) {
	if !in.Hours.IsPositive() || in.Hours.GreaterThan(maxHoursPerDay) {
		return domain.TimeEntry{}, domain.Invalid("hours must be greater than 0 and at most %s", maxHoursPerDay)
	}
	if in.WorkDate.IsZero() {
		return domain.TimeEntry{}, domain.Invalid("work date is required")
	}
	if strings.TrimSpace(in.ActorID) == "" {
		return domain.TimeEntry{}, domain.Invalid("actor id is required")
	}
	if _, err := s.customers.GetByID(ctx, in.CustomerID); err != nil {
		return domain.TimeEntry{}, err
	}

	workDate := domain.Date(in.WorkDate)
	logged, err := s.entries.LoggedHours(ctx, in.ActorID, workDate)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("summing logged hours: %w", err)
	}
	if total := logged.Add(in.Hours); total.GreaterThan(maxHoursPerDay) {
		return domain.TimeEntry{}, domain.Invalid("%s logged on %s would bring the day to %s hours, above %s",
			in.Hours, workDate.Format(time.DateOnly), total, maxHoursPerDay)
	}

	if in.RetainerID != "" {
		if err := s.checkRetainer(ctx, in.CustomerID, in.RetainerID, workDate); err != nil {
			return domain.TimeEntry{}, err
		}
	}

	now := s.clock.Now()
	entry := domain.TimeEntry{
		ID:          newID(),
		CustomerID:  in.CustomerID,
		RetainerID:  in.RetainerID,
		WorkDate:    workDate,
		Hours:       in.Hours,
		Description: strings.TrimSpace(in.Description),
		Status:      domain.TimeEntrySubmitted,
		ActorID:     in.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.entries.Create(ctx, entry); err != nil {
		return domain.TimeEntry{}, fmt.Errorf("storing time entry: %w", err)
	}
	if err := s.customers.RecordActivity(ctx, in.CustomerID, workDate); err != nil {
		return domain.TimeEntry{}, fmt.Errorf("recording customer activity: %w", err)
	}
	return entry, nil
}

// checkRetainer ensures the retainer belongs to the customer and that the
// work date does not fall inside an already closed period.
func (s *TimeEntryService) checkRetainer(ctx context.Context, customerID, retainerID string, workDate time.Time) error {
	retainer, err := s.retainers.GetByID(ctx, retainerID)
	if err != nil {
		return err
	}
	if retainer.CustomerID != customerID {
		return domain.Invalid("retainer %s does not belong to customer %s", retainerID, customerID)
	}

	periods, err := s.retainers.ListPeriods(ctx, retainerID)
	if err != nil {
		return err
	}
	for _, p := range periods {
		if p.Status == domain.PeriodClosed && !workDate.Before(p.PeriodStart) && !workDate.After(p.PeriodEnd) {
			return domain.Invalid("period %s to %s is already closed", p.PeriodStart.Format(time.DateOnly), p.PeriodEnd.Format(time.DateOnly))
		}
	}
	return nil
}

// Get returns a time entry by its unique identifier.
func (s *TimeEntryService) Get(ctx context.Context, id string) (domain.TimeEntry, error) {
	return s.entries.Get(ctx, id)
}

// Approve counts a SUBMITTED entry toward its period's consumption.
func (s *TimeEntryService) Approve(ctx context.Context, id string) (domain.TimeEntry, error) {
	return s.decide(ctx, id, domain.TimeEntryApproved)
}

// Reject excludes a SUBMITTED entry from consumption.
func (s *TimeEntryService) Reject(ctx context.Context, id string) (domain.TimeEntry, error) {
	return s.decide(ctx, id, domain.TimeEntryRejected)
}

func (s *TimeEntryService) decide(ctx context.Context, id string, to domain.TimeEntryStatus) (domain.TimeEntry, error) {
	entry, err := s.entries.Get(ctx, id)
	if err != nil {
		return domain.TimeEntry{}, err
	}
	if entry.Status != domain.TimeEntrySubmitted {
		return domain.TimeEntry{}, domain.Invalid("time entry is already %s", entry.Status)
	}

	now := s.clock.Now()
	if err := s.entries.UpdateStatus(ctx, id, domain.TimeEntrySubmitted, to, now); err != nil {
		return domain.TimeEntry{}, fmt.Errorf("updating time entry: %w", err)
	}
	entry.Status = to
	entry.UpdatedAt = now
	return entry, nil
}
