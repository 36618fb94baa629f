package river

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/practiq/internal/domain"
)

// TransitionWorker writes lifecycle transitions to the audit log.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	slog.InfoContext(ctx, "lifecycle transition recorded",
		"record_id", job.Args.RecordID,
		"customer_id", job.Args.CustomerID,
		"from", job.Args.FromStatus,
		"to", job.Args.ToStatus,
		"event", job.Args.Event,
		"actor_id", job.Args.ActorID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// PeriodClosedWorker hands closed periods over to invoicing.
type PeriodClosedWorker struct {
	river.WorkerDefaults[PeriodClosedJobArgs]
}

// Work processes a single period closed job.
func (w *PeriodClosedWorker) Work(ctx context.Context, job *river.Job[PeriodClosedJobArgs]) error {
	slog.InfoContext(ctx, "invoice draft ready",
		"retainer_id", job.Args.RetainerID,
		"customer_id", job.Args.CustomerID,
		"period_id", job.Args.PeriodID,
		"invoice_draft_id", job.Args.InvoiceDraftID,
		"total", job.Args.Total,
		"currency", job.Args.Currency,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// DormancyScanArgs triggers a dormancy scan. A missing ThresholdDays applies
// the organization default.
type DormancyScanArgs struct {
	ThresholdDays *int `json:"threshold_days,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (DormancyScanArgs) Kind() string { return "dormancy.scan" }

// DormancyScanner lists dormancy candidates.
type DormancyScanner interface {
	Scan(ctx context.Context, thresholdDays *int) ([]domain.DormancyCandidate, error)
}

// DormancyScanWorker runs the scheduled dormancy scan and logs each
// candidate. It never transitions anyone.
type DormancyScanWorker struct {
	river.WorkerDefaults[DormancyScanArgs]
	scanner DormancyScanner
}

// NewDormancyScanWorker creates a worker that scans through scanner.
func NewDormancyScanWorker(scanner DormancyScanner) *DormancyScanWorker {
	return &DormancyScanWorker{scanner: scanner}
}

// Work runs one scan.
func (w *DormancyScanWorker) Work(ctx context.Context, job *river.Job[DormancyScanArgs]) error {
	candidates, err := w.scanner.Scan(ctx, job.Args.ThresholdDays)
	if err != nil {
		return fmt.Errorf("scanning for dormant customers: %w", err)
	}

	for _, c := range candidates {
		slog.InfoContext(ctx, "dormancy candidate",
			"customer_id", c.CustomerID,
			"status", c.Status,
			"days_since_activity", c.DaysSinceActivity,
			"never_active", c.NeverActive,
			"transition_allowed", c.TransitionAllowed,
		)
	}
	slog.InfoContext(ctx, "dormancy scan finished",
		"candidates", len(candidates),
		"job_id", job.ID,
	)
	return nil
}
