package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/practiq/internal/domain"
)

// RetainerService manages retainers and reconciles their billing periods.
type RetainerService struct {
	retainers       domain.RetainerRepository
	customers       domain.CustomerRepository
	timeEntries     domain.TimeEntryRepository
	rates           domain.RateRepository
	gate            *PrerequisiteGate
	publisher       domain.EventPublisher
	defaultCurrency string
	clock           clock
}

// NewRetainerService creates a service with the given adapters.
func NewRetainerService(
	retainers domain.RetainerRepository,
	customers domain.CustomerRepository,
	timeEntries domain.TimeEntryRepository,
	rates domain.RateRepository,
	gate *PrerequisiteGate,
	publisher domain.EventPublisher,
	defaultCurrency string,
	opts ...Option,
) *RetainerService {
	return &RetainerService{
		retainers:       retainers,
		customers:       customers,
		timeEntries:     timeEntries,
		rates:           rates,
		gate:            gate,
		publisher:       publisher,
		defaultCurrency: defaultCurrency,
		clock:           newClock(opts),
	}
}

// CreateRetainerInput holds the terms of a new retainer. A zero StartDate
// starts the first period today.
type CreateRetainerInput struct {
	CustomerID       string
	Type             domain.RetainerType
	AllocatedHours   decimal.NullDecimal
	PeriodFee        decimal.Decimal
	Currency         string
	RolloverPolicy   domain.RolloverPolicy
	RolloverCapHours decimal.NullDecimal
	StartDate        time.Time
}

// Create stores an ACTIVE retainer and opens its first period.
func (s *RetainerService) Create(ctx context.Context, in CreateRetainerInput) (domain.Retainer, domain.RetainerPeriod, error) {
	customer, err := s.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return domain.Retainer{}, domain.RetainerPeriod{}, err
	}
	if customer.Status == domain.StatusOffboarding || customer.Status == domain.StatusOffboarded {
		return domain.Retainer{}, domain.RetainerPeriod{}, domain.Invalid("customer is %s and cannot take a new retainer", customer.Status)
	}

	now := s.clock.Now()
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	policy := in.RolloverPolicy
	if policy == "" {
		policy = domain.RolloverForfeit
	}

	retainer := domain.Retainer{
		ID:               newID(),
		CustomerID:       customer.ID,
		Type:             in.Type,
		Status:           domain.RetainerActive,
		AllocatedHours:   in.AllocatedHours,
		PeriodFee:        in.PeriodFee,
		Currency:         currency,
		RolloverPolicy:   policy,
		RolloverCapHours: in.RolloverCapHours,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := retainer.Validate(); err != nil {
		return domain.Retainer{}, domain.RetainerPeriod{}, err
	}

	start := in.StartDate
	if start.IsZero() {
		start = now
	}
	first := domain.NewPeriod(newID(), retainer, start, decimal.NullDecimal{}, now)

	if err := s.retainers.Create(ctx, retainer, first); err != nil {
		return domain.Retainer{}, domain.RetainerPeriod{}, fmt.Errorf("creating retainer: %w", err)
	}
	return retainer, first, nil
}

// GetByID returns a retainer by its unique identifier.
func (s *RetainerService) GetByID(ctx context.Context, id string) (domain.Retainer, error) {
	return s.retainers.GetByID(ctx, id)
}

// SetStatus pauses, resumes or terminates a retainer if it is still at
// expectedVersion.
func (s *RetainerService) SetStatus(ctx context.Context, id string, expectedVersion int64, status domain.RetainerStatus) (domain.Retainer, error) {
	retainer, err := s.retainers.GetByID(ctx, id)
	if err != nil {
		return domain.Retainer{}, err
	}
	if retainer.Version != expectedVersion {
		return domain.Retainer{}, domain.StaleVersion("retainer", id)
	}
	if !retainer.Status.CanMoveTo(status) {
		return domain.Retainer{}, &domain.ValidationError{
			Code:    domain.CodeInvalidRetainerMovement,
			Message: fmt.Sprintf("retainer cannot move from %s to %s", retainer.Status, status),
		}
	}

	retainer.Status = status
	retainer.Version = expectedVersion + 1
	retainer.UpdatedAt = s.clock.Now()

	if err := s.retainers.UpdateStatus(ctx, retainer, expectedVersion); err != nil {
		return domain.Retainer{}, fmt.Errorf("updating retainer status: %w", err)
	}
	return retainer, nil
}

// ListPeriods returns the periods of a retainer, oldest first, with their
// close readiness computed as of now.
func (s *RetainerService) ListPeriods(ctx context.Context, retainerID string) ([]domain.RetainerPeriod, error) {
	if _, err := s.retainers.GetByID(ctx, retainerID); err != nil {
		return nil, err
	}
	periods, err := s.retainers.ListPeriods(ctx, retainerID)
	if err != nil {
		return nil, err
	}
	for i := range periods {
		if err := s.fillReadiness(ctx, &periods[i]); err != nil {
			return nil, err
		}
	}
	return periods, nil
}

// GetPeriod returns one period of a retainer with its close readiness.
func (s *RetainerService) GetPeriod(ctx context.Context, retainerID, periodID string) (domain.RetainerPeriod, error) {
	period, err := s.retainers.GetPeriod(ctx, periodID)
	if err != nil {
		return domain.RetainerPeriod{}, err
	}
	if period.RetainerID != retainerID {
		return domain.RetainerPeriod{}, domain.ErrPeriodNotFound
	}
	if err := s.fillReadiness(ctx, &period); err != nil {
		return domain.RetainerPeriod{}, err
	}
	return period, nil
}

func (s *RetainerService) fillReadiness(ctx context.Context, p *domain.RetainerPeriod) error {
	if p.Status != domain.PeriodOpen {
		p.ReadyToClose = false
		return nil
	}
	pending, err := s.timeEntries.PendingApprovals(ctx, p.RetainerID, p.PeriodStart, p.PeriodEnd)
	if err != nil {
		return err
	}
	p.ReadyToClose = p.Readiness(s.clock.Now(), pending)
	return nil
}

// ClosePeriod reconciles an OPEN period: it sums approved hours, settles
// overage and rollover, prices the invoice draft at today's rate and commits
// the closed period, its successor and the draft as one unit.
func (s *RetainerService) ClosePeriod(ctx context.Context, retainerID, periodID string) (domain.PeriodCloseResult, error) {
	retainer, err := s.retainers.GetByID(ctx, retainerID)
	if err != nil {
		return domain.PeriodCloseResult{}, err
	}
	period, err := s.retainers.GetPeriod(ctx, periodID)
	if err != nil {
		return domain.PeriodCloseResult{}, err
	}
	if period.RetainerID != retainer.ID {
		return domain.PeriodCloseResult{}, domain.ErrPeriodNotFound
	}
	if period.Status != domain.PeriodOpen {
		return domain.PeriodCloseResult{}, &domain.ConflictError{Resource: "retainer period", ID: period.ID, Reason: "already closed"}
	}

	if err := s.gate.enforce(ctx, domain.ContextCloseRetainerPeriod, period.ID); err != nil {
		var dep *domain.DependencyError
		if errors.As(err, &dep) {
			return domain.PeriodCloseResult{}, periodNotReady(dep)
		}
		return domain.PeriodCloseResult{}, err
	}

	now := s.clock.Now()
	consumed, err := s.timeEntries.ApprovedHours(ctx, retainer.ID, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return domain.PeriodCloseResult{}, fmt.Errorf("aggregating approved hours: %w", err)
	}
	closed := domain.Settle(retainer, period, consumed, now)

	rate := decimal.Zero
	if retainer.Type == domain.RetainerHourBank && domain.HasOverage(closed) {
		resolved, ok, err := s.rates.Resolve(ctx, retainer.CustomerID, now)
		if err != nil {
			return domain.PeriodCloseResult{}, fmt.Errorf("resolving billing rate: %w", err)
		}
		if !ok {
			return domain.PeriodCloseResult{}, &domain.ValidationError{
				Code:    domain.CodeNoBillingRate,
				Message: fmt.Sprintf("no billing rate in force for customer %s to price %s overage hours", retainer.CustomerID, closed.OverageHours.Decimal),
			}
		}
		rate = resolved
	}

	draft := domain.BuildInvoiceDraft(newID(), retainer, closed, rate, now)
	closed.InvoiceID = draft.ID
	next := domain.NextPeriod(newID(), retainer, closed, now)

	err = s.retainers.ClosePeriod(ctx, domain.PeriodClosing{
		Closed:          closed,
		ExpectedVersion: period.Version,
		Next:            next,
		Draft:           draft,
	})
	if err != nil {
		return domain.PeriodCloseResult{}, fmt.Errorf("closing period: %w", err)
	}

	result := domain.PeriodCloseResult{
		Retainer:     retainer,
		ClosedPeriod: closed,
		NextPeriod:   next,
		Draft:        draft,
	}

	if err := s.publisher.PublishPeriodClosed(ctx, result); err != nil {
		slog.WarnContext(ctx, "publishing period close failed",
			"retainer_id", retainer.ID,
			"period_id", closed.ID,
			"error", err,
		)
	}

	return result, nil
}

func periodNotReady(dep *domain.DependencyError) *domain.ValidationError {
	blocking := make([]string, len(dep.Violations))
	for i, v := range dep.Violations {
		blocking[i] = v.Message
	}
	return &domain.ValidationError{
		Code:     domain.CodePeriodNotReady,
		Message:  "period is not ready to close",
		Blocking: blocking,
	}
}

// GetInvoiceDraft returns an invoice draft with its lines.
func (s *RetainerService) GetInvoiceDraft(ctx context.Context, id string) (domain.InvoiceDraft, error) {
	return s.retainers.GetInvoiceDraft(ctx, id)
}

// ListInvoiceDrafts returns the drafts produced for a retainer.
func (s *RetainerService) ListInvoiceDrafts(ctx context.Context, retainerID string) ([]domain.InvoiceDraft, error) {
	if _, err := s.retainers.GetByID(ctx, retainerID); err != nil {
		return nil, err
	}
	return s.retainers.ListInvoiceDrafts(ctx, retainerID)
}

// SetRateInput describes a billing rate. An empty CustomerID sets the
// organization-wide rate; a zero EffectiveFrom means now.
type SetRateInput struct {
	CustomerID    string
	HourlyRate    decimal.Decimal
	EffectiveFrom time.Time
}

// SetBillingRate records a new hourly rate.
func (s *RetainerService) SetBillingRate(ctx context.Context, in SetRateInput) (domain.BillingRate, error) {
	if !in.HourlyRate.IsPositive() {
		return domain.BillingRate{}, domain.Invalid("hourly rate must be positive")
	}
	if in.CustomerID != "" {
		if _, err := s.customers.GetByID(ctx, in.CustomerID); err != nil {
			return domain.BillingRate{}, err
		}
	}

	now := s.clock.Now()
	rate := domain.BillingRate{
		ID:            newID(),
		CustomerID:    in.CustomerID,
		HourlyRate:    in.HourlyRate,
		EffectiveFrom: in.EffectiveFrom.UTC(),
		CreatedAt:     now,
	}
	if in.EffectiveFrom.IsZero() {
		rate.EffectiveFrom = now
	}

	if err := s.rates.Create(ctx, rate); err != nil {
		return domain.BillingRate{}, fmt.Errorf("storing billing rate: %w", err)
	}
	return rate, nil
}
