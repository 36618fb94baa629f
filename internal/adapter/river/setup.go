package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// Options configures the background jobs of the client.
type Options struct {
	// Scanner enables the dormancy scan worker when set.
	Scanner DormancyScanner
	// ScanInterval schedules a periodic dormancy scan when positive.
	ScanInterval time.Duration
}

// Setup creates a River client with the workers registered and runs River's
// internal migrations. The caller must call client.Start() to begin
// processing jobs and client.Stop() for graceful shutdown.
func Setup(ctx context.Context, db *sql.DB, opts Options) (*Client, error) {
	driver := riversqlite.New(db)

	// River's own tables (river_job, river_leader, ...) are separate from the
	// app's goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &TransitionWorker{})
	river.AddWorker(workers, &PeriodClosedWorker{})

	var periodic []*river.PeriodicJob
	if opts.Scanner != nil {
		river.AddWorker(workers, NewDormancyScanWorker(opts.Scanner))
		if opts.ScanInterval > 0 {
			periodic = append(periodic, river.NewPeriodicJob(
				river.PeriodicInterval(opts.ScanInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return DormancyScanArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			))
		}
	}

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
