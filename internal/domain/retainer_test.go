package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/practiq/internal/domain"
)

var closeNow = time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

func hours(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func hourBank(policy domain.RolloverPolicy, capHours decimal.NullDecimal) domain.Retainer {
	return domain.Retainer{
		ID:               "r-1",
		CustomerID:       "c-1",
		Type:             domain.RetainerHourBank,
		Status:           domain.RetainerActive,
		AllocatedHours:   hours(40),
		PeriodFee:        decimal.NewFromInt(4000),
		Currency:         "USD",
		RolloverPolicy:   policy,
		RolloverCapHours: capHours,
	}
}

func januaryPeriod(r domain.Retainer) domain.RetainerPeriod {
	return domain.NewPeriod("p-1", r, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), decimal.NullDecimal{}, closeNow)
}

func assertHours(t *testing.T, name string, got decimal.NullDecimal, want int64) {
	t.Helper()
	if !got.Valid {
		t.Errorf("%s is null, want %d", name, want)
		return
	}
	if !got.Decimal.Equal(decimal.NewFromInt(want)) {
		t.Errorf("%s = %s, want %d", name, got.Decimal, want)
	}
}

func TestNewPeriod_HourBank(t *testing.T) {
	r := hourBank(domain.RolloverCarry, decimal.NullDecimal{})
	p := domain.NewPeriod("p-2", r, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), hours(6), closeNow)

	if want := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC); !p.PeriodEnd.Equal(want) {
		t.Errorf("PeriodEnd = %v, want %v", p.PeriodEnd, want)
	}
	assertHours(t, "BaseAllocatedHours", p.BaseAllocatedHours, 40)
	assertHours(t, "RolloverHoursIn", p.RolloverHoursIn, 6)
	assertHours(t, "AllocatedHours", p.AllocatedHours, 46)
	assertHours(t, "RemainingHours", p.RemainingHours, 46)
	if p.OverageHours.Valid || p.RolloverHoursOut.Valid {
		t.Error("overage and rollover out must stay null while open")
	}
}

func TestPeriodEndFor(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		start time.Time
		want  time.Time
	}{
		{day(2026, 1, 1), day(2026, 1, 31)},
		{day(2026, 1, 15), day(2026, 2, 14)},
		{day(2026, 1, 28), day(2026, 2, 27)},
		{day(2026, 1, 29), day(2026, 2, 28)},
		{day(2026, 1, 31), day(2026, 2, 28)},
		{day(2028, 1, 31), day(2028, 2, 29)},
		{day(2026, 3, 31), day(2026, 4, 30)},
		{day(2026, 12, 31), day(2027, 1, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.start.Format(time.DateOnly), func(t *testing.T) {
			if got := domain.PeriodEndFor(tt.start); !got.Equal(tt.want) {
				t.Errorf("PeriodEndFor = %s, want %s", got.Format(time.DateOnly), tt.want.Format(time.DateOnly))
			}
		})
	}
}

func TestNextPeriod_MonthEndStartDoesNotSkipAMonth(t *testing.T) {
	r := hourBank(domain.RolloverForfeit, decimal.NullDecimal{})
	first := domain.NewPeriod("p-1", r, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), decimal.NullDecimal{}, closeNow)

	prev := first
	for _, want := range []time.Time{
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	} {
		next := domain.NextPeriod("p-n", r, domain.Settle(r, prev, decimal.Zero, closeNow), closeNow)
		if !next.PeriodStart.Equal(want) {
			t.Fatalf("next PeriodStart = %s, want %s", next.PeriodStart.Format(time.DateOnly), want.Format(time.DateOnly))
		}
		prev = next
	}
}

func TestSettle_OverageForfeit(t *testing.T) {
	r := hourBank(domain.RolloverForfeit, decimal.NullDecimal{})
	closed := domain.Settle(r, januaryPeriod(r), decimal.NewFromInt(48), closeNow)

	if closed.Status != domain.PeriodClosed {
		t.Errorf("Status = %q, want CLOSED", closed.Status)
	}
	assertHours(t, "OverageHours", closed.OverageHours, 8)
	assertHours(t, "RolloverHoursOut", closed.RolloverHoursOut, 0)
	assertHours(t, "RemainingHours", closed.RemainingHours, 0)
}

func TestSettle_Rollover(t *testing.T) {
	cases := []struct {
		name     string
		capHours decimal.NullDecimal
		want     int64
	}{
		{"cap above unused", hours(10), 8},
		{"cap below unused", hours(5), 5},
		{"no cap", decimal.NullDecimal{}, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := hourBank(domain.RolloverCarry, tc.capHours)
			closed := domain.Settle(r, januaryPeriod(r), decimal.NewFromInt(32), closeNow)
			assertHours(t, "OverageHours", closed.OverageHours, 0)
			assertHours(t, "RolloverHoursOut", closed.RolloverHoursOut, tc.want)
		})
	}
}

func TestSettle_ForfeitNeverRollsOver(t *testing.T) {
	r := hourBank(domain.RolloverForfeit, hours(10))
	closed := domain.Settle(r, januaryPeriod(r), decimal.NewFromInt(10), closeNow)
	assertHours(t, "RolloverHoursOut", closed.RolloverHoursOut, 0)
	assertHours(t, "RemainingHours", closed.RemainingHours, 30)
}

func TestSettle_FixedFeeLeavesHoursNull(t *testing.T) {
	r := domain.Retainer{
		ID:             "r-2",
		Type:           domain.RetainerFixedFee,
		Status:         domain.RetainerActive,
		PeriodFee:      decimal.NewFromInt(2500),
		Currency:       "USD",
		RolloverPolicy: domain.RolloverForfeit,
	}

	for _, consumed := range []int64{0, 12, 400} {
		closed := domain.Settle(r, januaryPeriod(r), decimal.NewFromInt(consumed), closeNow)
		if closed.OverageHours.Valid || closed.RolloverHoursOut.Valid || closed.AllocatedHours.Valid {
			t.Errorf("consumed %d: hour fields populated: %+v", consumed, closed)
		}
		if !closed.ConsumedHours.Equal(decimal.NewFromInt(consumed)) {
			t.Errorf("ConsumedHours = %s, want %d", closed.ConsumedHours, consumed)
		}
	}
}

func TestNextPeriod_CarriesRollover(t *testing.T) {
	r := hourBank(domain.RolloverCarry, hours(10))
	closed := domain.Settle(r, januaryPeriod(r), decimal.NewFromInt(32), closeNow)
	next := domain.NextPeriod("p-2", r, closed, closeNow)

	if want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC); !next.PeriodStart.Equal(want) {
		t.Errorf("PeriodStart = %v, want %v", next.PeriodStart, want)
	}
	if next.Status != domain.PeriodOpen {
		t.Errorf("Status = %q, want OPEN", next.Status)
	}
	assertHours(t, "RolloverHoursIn", next.RolloverHoursIn, 8)
	assertHours(t, "AllocatedHours", next.AllocatedHours, 48)
}

func TestRetainerPeriod_Readiness(t *testing.T) {
	r := hourBank(domain.RolloverForfeit, decimal.NullDecimal{})
	p := januaryPeriod(r)

	if p.Readiness(time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC), 0) {
		t.Error("period must not be ready on its last day")
	}
	if !p.Readiness(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 0) {
		t.Error("period should be ready the day after it ends")
	}
	if p.Readiness(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), 2) {
		t.Error("pending approvals must block readiness")
	}
}

func TestBuildInvoiceDraft(t *testing.T) {
	r := hourBank(domain.RolloverForfeit, decimal.NullDecimal{})
	closed := domain.Settle(r, januaryPeriod(r), decimal.RequireFromString("48.5"), closeNow)
	draft := domain.BuildInvoiceDraft("inv-1", r, closed, decimal.NewFromInt(150), closeNow)

	if len(draft.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(draft.Lines))
	}
	base, overage := draft.Lines[0], draft.Lines[1]
	if base.Kind != domain.LineBaseFee || !base.Amount.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("base line = %+v", base)
	}
	if overage.Kind != domain.LineOverage || !overage.Quantity.Equal(decimal.RequireFromString("8.5")) {
		t.Errorf("overage line = %+v", overage)
	}
	if !overage.Amount.Equal(decimal.NewFromInt(1275)) {
		t.Errorf("overage amount = %s, want 1275", overage.Amount)
	}
	if !draft.Total.Equal(decimal.NewFromInt(5275)) {
		t.Errorf("Total = %s, want 5275", draft.Total)
	}
}

func TestBuildInvoiceDraft_NoOverageSingleLine(t *testing.T) {
	r := hourBank(domain.RolloverCarry, decimal.NullDecimal{})
	closed := domain.Settle(r, januaryPeriod(r), decimal.NewFromInt(40), closeNow)
	draft := domain.BuildInvoiceDraft("inv-1", r, closed, decimal.Zero, closeNow)

	if len(draft.Lines) != 1 || draft.Lines[0].Kind != domain.LineBaseFee {
		t.Errorf("lines = %+v, want base fee only", draft.Lines)
	}
}

func TestRetainer_Validate(t *testing.T) {
	valid := hourBank(domain.RolloverCarry, hours(5))
	if err := valid.Validate(); err != nil {
		t.Errorf("valid retainer: %v", err)
	}

	noHours := valid
	noHours.AllocatedHours = decimal.NullDecimal{}
	if err := noHours.Validate(); err == nil {
		t.Error("hour bank without hours should fail")
	}

	fixed := valid
	fixed.Type = domain.RetainerFixedFee
	if err := fixed.Validate(); err == nil {
		t.Error("fixed fee with hours should fail")
	}
}

func TestRetainerStatus_CanMoveTo(t *testing.T) {
	if !domain.RetainerActive.CanMoveTo(domain.RetainerPaused) {
		t.Error("ACTIVE → PAUSED should be allowed")
	}
	if domain.RetainerTerminated.CanMoveTo(domain.RetainerActive) {
		t.Error("TERMINATED is terminal")
	}
}
