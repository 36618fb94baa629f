package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/practiq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// TransitionJobArgs carries a committed lifecycle transition to the audit
// sink. River serializes it as JSON into its job queue table, so the worker
// never needs to query the database.
type TransitionJobArgs struct {
	RecordID   string            `json:"record_id"`
	CustomerID string            `json:"customer_id"`
	FromStatus string            `json:"from_status"`
	ToStatus   string            `json:"to_status"`
	Event      string            `json:"event"`
	ActorID    string            `json:"actor_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Details    map[string]string `json:"details,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (TransitionJobArgs) Kind() string { return "lifecycle.transition_recorded" }

// PeriodClosedJobArgs notifies invoicing that a retainer period was closed
// and its invoice draft is ready. Amounts are decimal strings.
type PeriodClosedJobArgs struct {
	RetainerID     string `json:"retainer_id"`
	CustomerID     string `json:"customer_id"`
	PeriodID       string `json:"period_id"`
	PeriodStart    string `json:"period_start"`
	PeriodEnd      string `json:"period_end"`
	ConsumedHours  string `json:"consumed_hours"`
	OverageHours   string `json:"overage_hours,omitempty"`
	NextPeriodID   string `json:"next_period_id"`
	InvoiceDraftID string `json:"invoice_draft_id"`
	Currency       string `json:"currency"`
	Total          string `json:"total"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (PeriodClosedJobArgs) Kind() string { return "retainer.period_closed" }

// InsertOpts makes a repeated notice for the same period a no-op.
func (PeriodClosedJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{UniqueOpts: river.UniqueOpts{ByArgs: true}}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// PublishTransition enqueues the audit record of a transition.
func (p *Publisher) PublishTransition(ctx context.Context, record domain.LifecycleTransitionRecord) error {
	_, err := p.client.Insert(ctx, TransitionJobArgs{
		RecordID:   record.ID,
		CustomerID: record.CustomerID,
		FromStatus: string(record.FromStatus),
		ToStatus:   string(record.ToStatus),
		Event:      string(record.EventType),
		ActorID:    record.ActorID,
		OccurredAt: record.OccurredAt,
		Details:    record.Details,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing transition job: %w", err)
	}
	return nil
}

// PublishPeriodClosed enqueues the invoicing notice of a closed period.
func (p *Publisher) PublishPeriodClosed(ctx context.Context, result domain.PeriodCloseResult) error {
	closed := result.ClosedPeriod
	args := PeriodClosedJobArgs{
		RetainerID:     result.Retainer.ID,
		CustomerID:     result.Retainer.CustomerID,
		PeriodID:       closed.ID,
		PeriodStart:    closed.PeriodStart.Format(time.DateOnly),
		PeriodEnd:      closed.PeriodEnd.Format(time.DateOnly),
		ConsumedHours:  closed.ConsumedHours.String(),
		NextPeriodID:   result.NextPeriod.ID,
		InvoiceDraftID: result.Draft.ID,
		Currency:       result.Draft.Currency,
		Total:          result.Draft.Total.StringFixed(2),
	}
	if closed.OverageHours.Valid {
		args.OverageHours = closed.OverageHours.Decimal.String()
	}

	if _, err := p.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("enqueuing period closed job: %w", err)
	}
	return nil
}
