package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RetainerType distinguishes hour banks from flat monthly fees.
type RetainerType string

const (
	RetainerHourBank RetainerType = "HOUR_BANK"
	RetainerFixedFee RetainerType = "FIXED_FEE"
)

// RetainerStatus is the commercial state of a retainer.
type RetainerStatus string

const (
	RetainerActive     RetainerStatus = "ACTIVE"
	RetainerPaused     RetainerStatus = "PAUSED"
	RetainerTerminated RetainerStatus = "TERMINATED"
)

// Live reports whether the status counts toward the one-live-retainer rule.
func (s RetainerStatus) Live() bool {
	return s == RetainerActive || s == RetainerPaused
}

// retainerMoves lists the allowed retainer status changes.
var retainerMoves = map[RetainerStatus][]RetainerStatus{
	RetainerActive:     {RetainerPaused, RetainerTerminated},
	RetainerPaused:     {RetainerActive, RetainerTerminated},
	RetainerTerminated: {},
}

// CanMoveTo reports whether a retainer may change from s to next.
func (s RetainerStatus) CanMoveTo(next RetainerStatus) bool {
	for _, allowed := range retainerMoves[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RolloverPolicy decides what happens to unused hours at period close.
type RolloverPolicy string

const (
	RolloverForfeit RolloverPolicy = "FORFEIT"
	RolloverCarry   RolloverPolicy = "ROLLOVER"
)

// Retainer is a recurring engagement billed per period.
type Retainer struct {
	ID               string
	CustomerID       string
	Type             RetainerType
	Status           RetainerStatus
	AllocatedHours   decimal.NullDecimal
	PeriodFee        decimal.Decimal
	Currency         string
	RolloverPolicy   RolloverPolicy
	RolloverCapHours decimal.NullDecimal
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks the type-specific field rules.
func (r Retainer) Validate() error {
	switch r.Type {
	case RetainerHourBank:
		if !r.AllocatedHours.Valid || !r.AllocatedHours.Decimal.IsPositive() {
			return Invalid("hour bank retainers need positive allocated hours")
		}
	case RetainerFixedFee:
		if r.AllocatedHours.Valid {
			return Invalid("fixed fee retainers do not allocate hours")
		}
		if r.RolloverPolicy == RolloverCarry {
			return Invalid("fixed fee retainers cannot roll hours over")
		}
	default:
		return Invalid("unknown retainer type %q", r.Type)
	}

	switch r.RolloverPolicy {
	case RolloverForfeit, RolloverCarry:
	default:
		return Invalid("unknown rollover policy %q", r.RolloverPolicy)
	}
	if r.RolloverCapHours.Valid && r.RolloverCapHours.Decimal.IsNegative() {
		return Invalid("rollover cap cannot be negative")
	}
	if r.PeriodFee.IsNegative() {
		return Invalid("period fee cannot be negative")
	}
	if len(r.Currency) != 3 {
		return Invalid("currency must be a three-letter code")
	}
	return nil
}

// PeriodStatus is OPEN until the period is reconciled, then CLOSED forever.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "OPEN"
	PeriodClosed PeriodStatus = "CLOSED"
)

// RetainerPeriod is one billing window of a retainer. Hour fields are null
// for FIXED_FEE retainers; OverageHours and RolloverHoursOut stay null until
// the period closes.
type RetainerPeriod struct {
	ID                 string
	RetainerID         string
	PeriodStart        time.Time
	PeriodEnd          time.Time
	Status             PeriodStatus
	AllocatedHours     decimal.NullDecimal
	BaseAllocatedHours decimal.NullDecimal
	ConsumedHours      decimal.Decimal
	RemainingHours     decimal.NullDecimal
	RolloverHoursIn    decimal.NullDecimal
	RolloverHoursOut   decimal.NullDecimal
	OverageHours       decimal.NullDecimal
	InvoiceID          string
	ReadyToClose       bool
	Version            int64
	ClosedAt           *time.Time
	CreatedAt          time.Time
}

// PeriodEndFor returns the last day of a monthly period starting on start:
// the day before the same day next month, but never past the end of next
// month. A period starting on Jan 31 ends on the last day of February.
func PeriodEndFor(start time.Time) time.Time {
	start = Date(start)
	y, m, _ := start.Date()
	lastOfNext := time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC)
	if end := start.AddDate(0, 1, -1); end.Before(lastOfNext) {
		return end
	}
	return lastOfNext
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewPeriod opens a period starting on start. rolloverIn is carried from the
// previous period and ignored for FIXED_FEE retainers.
func NewPeriod(id string, r Retainer, start time.Time, rolloverIn decimal.NullDecimal, now time.Time) RetainerPeriod {
	start = Date(start)
	p := RetainerPeriod{
		ID:            id,
		RetainerID:    r.ID,
		PeriodStart:   start,
		PeriodEnd:     PeriodEndFor(start),
		Status:        PeriodOpen,
		ConsumedHours: decimal.Zero,
		Version:       1,
		CreatedAt:     now.UTC(),
	}
	if r.Type != RetainerHourBank {
		return p
	}

	in := decimal.Zero
	if rolloverIn.Valid {
		in = rolloverIn.Decimal
	}
	allocated := r.AllocatedHours.Decimal.Add(in)
	p.BaseAllocatedHours = r.AllocatedHours
	p.RolloverHoursIn = decimal.NewNullDecimal(in)
	p.AllocatedHours = decimal.NewNullDecimal(allocated)
	p.RemainingHours = decimal.NewNullDecimal(allocated)
	return p
}

// Readiness reports whether a period may close at now: its last day must be
// over and no time entry inside it may await approval.
func (p RetainerPeriod) Readiness(now time.Time, pendingApprovals int) bool {
	return p.Status == PeriodOpen && Date(now).After(p.PeriodEnd) && pendingApprovals == 0
}

// Settle computes the closing figures of an OPEN period from the approved
// consumption. It returns the period as it must be stored once CLOSED.
func Settle(r Retainer, p RetainerPeriod, consumed decimal.Decimal, now time.Time) RetainerPeriod {
	closed := p
	now = now.UTC()
	closed.Status = PeriodClosed
	closed.ConsumedHours = consumed
	closed.ClosedAt = &now
	closed.Version = p.Version + 1

	if r.Type != RetainerHourBank {
		closed.AllocatedHours = decimal.NullDecimal{}
		closed.BaseAllocatedHours = decimal.NullDecimal{}
		closed.RemainingHours = decimal.NullDecimal{}
		closed.RolloverHoursIn = decimal.NullDecimal{}
		closed.OverageHours = decimal.NullDecimal{}
		closed.RolloverHoursOut = decimal.NullDecimal{}
		return closed
	}

	allocated := p.AllocatedHours.Decimal
	unused := decimal.Max(decimal.Zero, allocated.Sub(consumed))
	closed.OverageHours = decimal.NewNullDecimal(decimal.Max(decimal.Zero, consumed.Sub(allocated)))
	closed.RemainingHours = decimal.NewNullDecimal(unused)
	closed.RolloverHoursOut = decimal.NewNullDecimal(RolloverOut(r, unused))
	return closed
}

// RolloverOut applies the retainer's rollover policy and cap to unused hours.
func RolloverOut(r Retainer, unused decimal.Decimal) decimal.Decimal {
	if r.RolloverPolicy != RolloverCarry {
		return decimal.Zero
	}
	if r.RolloverCapHours.Valid {
		return decimal.Min(unused, r.RolloverCapHours.Decimal)
	}
	return unused
}

// NextPeriod opens the successor of a closed period: it starts the day after
// closed ends and carries its rollover.
func NextPeriod(id string, r Retainer, closed RetainerPeriod, now time.Time) RetainerPeriod {
	return NewPeriod(id, r, closed.PeriodEnd.AddDate(0, 0, 1), closed.RolloverHoursOut, now)
}

// PeriodClosing is the atomic unit committed by RetainerRepository.ClosePeriod:
// the closed period, its successor and the invoice draft become visible
// together or not at all.
type PeriodClosing struct {
	Closed          RetainerPeriod
	ExpectedVersion int64
	Next            RetainerPeriod
	Draft           InvoiceDraft
}

// PeriodCloseResult is returned by a successful period close.
type PeriodCloseResult struct {
	Retainer     Retainer
	ClosedPeriod RetainerPeriod
	NextPeriod   RetainerPeriod
	Draft        InvoiceDraft
}
