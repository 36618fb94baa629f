package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/practiq/internal/app"
	"github.com/neomorfeo/practiq/internal/domain"
)

func TestRecord_MovesLastActivityWithoutVersion(t *testing.T) {
	env := newEnv(t)
	c := env.createCustomer(t)
	workDate := time.Date(2026, 1, 3, 15, 0, 0, 0, time.UTC)

	entry, err := env.timeEntries.Record(ctx, app.RecordTimeInput{
		CustomerID: c.ID, WorkDate: workDate, Hours: dec("1.5"), ActorID: "actor-1", Description: " review ",
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if entry.Status != domain.TimeEntrySubmitted || entry.Description != "review" {
		t.Errorf("entry = %+v", entry)
	}

	got, _ := env.lifecycle.GetByID(ctx, c.ID)
	if got.LastActivityAt == nil || !got.LastActivityAt.Equal(domain.Date(workDate)) {
		t.Errorf("LastActivityAt = %v, want %v", got.LastActivityAt, domain.Date(workDate))
	}
	if got.Version != c.Version {
		t.Errorf("Version = %d, want %d", got.Version, c.Version)
	}
}

func TestRecord_Validation(t *testing.T) {
	env := newEnv(t)
	c := env.active(t)
	other := env.createCustomer(t)
	ret, _ := env.createRetainer(t, c.ID, hourBankInput(c.ID))

	tests := []struct {
		name string
		in   app.RecordTimeInput
	}{
		{"zero hours", app.RecordTimeInput{CustomerID: c.ID, WorkDate: january, Hours: dec("0"), ActorID: "a"}},
		{"too many hours", app.RecordTimeInput{CustomerID: c.ID, WorkDate: january, Hours: dec("24.5"), ActorID: "a"}},
		{"missing date", app.RecordTimeInput{CustomerID: c.ID, Hours: dec("1"), ActorID: "a"}},
		{"missing actor", app.RecordTimeInput{CustomerID: c.ID, WorkDate: january, Hours: dec("1")}},
		{"foreign retainer", app.RecordTimeInput{CustomerID: other.ID, RetainerID: ret.ID, WorkDate: january, Hours: dec("1"), ActorID: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.timeEntries.Record(ctx, tt.in)
			assertCode(t, err, domain.CodeInvalidInput)
		})
	}
}

func TestRecord_DailyLimitIsPerActorAndDay(t *testing.T) {
	env := newEnv(t)
	c := env.createCustomer(t)
	record := func(actor string, day int, hours string) (domain.TimeEntry, error) {
		return env.timeEntries.Record(ctx, app.RecordTimeInput{
			CustomerID: c.ID, WorkDate: time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC), Hours: dec(hours), ActorID: actor,
		})
	}

	first, err := record("actor-1", 2, "20")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := record("actor-1", 2, "4"); err != nil {
		t.Fatalf("Record up to the limit failed: %v", err)
	}
	_, err = record("actor-1", 2, "0.5")
	assertCode(t, err, domain.CodeInvalidInput)

	if _, err := record("actor-2", 2, "8"); err != nil {
		t.Errorf("Record by another actor failed: %v", err)
	}
	if _, err := record("actor-1", 3, "8"); err != nil {
		t.Errorf("Record on another day failed: %v", err)
	}

	// Rejected hours no longer count toward the day.
	if _, err := env.timeEntries.Reject(ctx, first.ID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if _, err := record("actor-1", 2, "0.5"); err != nil {
		t.Errorf("Record after rejection failed: %v", err)
	}
}

func TestRecord_IntoClosedPeriodIsRejected(t *testing.T) {
	env := newEnv(t)
	c := env.active(t)
	ret, open := env.createRetainer(t, c.ID, hourBankInput(c.ID))
	env.now = february
	if _, err := env.retainers.ClosePeriod(ctx, ret.ID, open.ID); err != nil {
		t.Fatalf("ClosePeriod failed: %v", err)
	}

	_, err := env.timeEntries.Record(ctx, app.RecordTimeInput{
		CustomerID: c.ID, RetainerID: ret.ID, WorkDate: january.AddDate(0, 0, 20), Hours: dec("1"), ActorID: "a",
	})
	assertCode(t, err, domain.CodeInvalidInput)

	if _, err := env.timeEntries.Record(ctx, app.RecordTimeInput{
		CustomerID: c.ID, RetainerID: ret.ID, WorkDate: february, Hours: dec("1"), ActorID: "a",
	}); err != nil {
		t.Errorf("Record into the open period failed: %v", err)
	}
}

func TestApproveReject(t *testing.T) {
	env := newEnv(t)
	c := env.createCustomer(t)
	entry, err := env.timeEntries.Record(ctx, app.RecordTimeInput{CustomerID: c.ID, WorkDate: january, Hours: dec("2"), ActorID: "a"})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	approved, err := env.timeEntries.Approve(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != domain.TimeEntryApproved {
		t.Errorf("Status = %s, want APPROVED", approved.Status)
	}

	_, err = env.timeEntries.Reject(ctx, entry.ID)
	assertCode(t, err, domain.CodeInvalidInput)

	if _, err := env.timeEntries.Approve(ctx, "ghost"); !errors.Is(err, domain.ErrTimeEntryNotFound) {
		t.Errorf("expected ErrTimeEntryNotFound, got %v", err)
	}
}
