package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineKind classifies invoice draft lines.
type LineKind string

const (
	LineBaseFee LineKind = "BASE_FEE"
	LineOverage LineKind = "OVERAGE"
)

// InvoiceDraft is the billing output of a closed retainer period, handed to
// the invoicing service.
type InvoiceDraft struct {
	ID         string
	RetainerID string
	PeriodID   string
	CustomerID string
	Currency   string
	Lines      []InvoiceLine
	Total      decimal.Decimal
	CreatedAt  time.Time
}

// InvoiceLine is one priced line of a draft.
type InvoiceLine struct {
	Kind        LineKind
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

const dateLayout = "2006-01-02"

// BuildInvoiceDraft prices a closed period. overageRate is the billing rate
// resolved at close time; it is only read when the period has overage.
func BuildInvoiceDraft(id string, r Retainer, closed RetainerPeriod, overageRate decimal.Decimal, now time.Time) InvoiceDraft {
	span := fmt.Sprintf("%s to %s", closed.PeriodStart.Format(dateLayout), closed.PeriodEnd.Format(dateLayout))
	draft := InvoiceDraft{
		ID:         id,
		RetainerID: r.ID,
		PeriodID:   closed.ID,
		CustomerID: r.CustomerID,
		Currency:   r.Currency,
		CreatedAt:  now.UTC(),
	}

	draft.Lines = append(draft.Lines, InvoiceLine{
		Kind:        LineBaseFee,
		Description: "Retainer fee " + span,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   r.PeriodFee,
		Amount:      r.PeriodFee,
	})

	if r.Type == RetainerHourBank && HasOverage(closed) {
		hours := closed.OverageHours.Decimal
		draft.Lines = append(draft.Lines, InvoiceLine{
			Kind:        LineOverage,
			Description: "Overage hours " + span,
			Quantity:    hours,
			UnitPrice:   overageRate,
			Amount:      hours.Mul(overageRate).Round(2),
		})
	}

	draft.Total = decimal.Zero
	for _, line := range draft.Lines {
		draft.Total = draft.Total.Add(line.Amount)
	}
	return draft
}

// HasOverage reports whether a settled period consumed beyond its allocation.
func HasOverage(p RetainerPeriod) bool {
	return p.OverageHours.Valid && p.OverageHours.Decimal.IsPositive()
}

// BillingRate is an hourly rate effective from a point in time. An empty
// CustomerID makes it the organization-wide default.
type BillingRate struct {
	ID            string
	CustomerID    string
	HourlyRate    decimal.Decimal
	EffectiveFrom time.Time
	CreatedAt     time.Time
}
