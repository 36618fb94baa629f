package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/practiq/internal/domain"
)

// TimeEntryRepository implements domain.TimeEntryRepository using SQLite.
type TimeEntryRepository struct {
	db *sql.DB
}

const timeEntryColumns = `id, customer_id, retainer_id, work_date, hours, description, status, actor_id, created_at, updated_at`

// closedPeriodCovers matches a CLOSED period of the entry's retainer whose
// range holds the entry's work date. The two placeholders are the retainer id
// and the work date.
const closedPeriodCovers = `EXISTS (
	SELECT 1 FROM retainer_periods p
	WHERE p.retainer_id = ? AND p.status = 'CLOSED' AND ? BETWEEN p.period_start AND p.period_end)`

// Create inserts a time entry. Entries dated inside a closed period of their
// retainer are refused in the same statement, so a concurrent period close
// cannot let one slip in after the fact.
func (r *TimeEntryRepository) Create(ctx context.Context, e domain.TimeEntry) error {
	workDate := formatDate(e.WorkDate)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO time_entries (`+timeEntryColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT `+closedPeriodCovers,
		e.ID, e.CustomerID, nullString(e.RetainerID), workDate, e.Hours, e.Description,
		string(e.Status), e.ActorID, formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		e.RetainerID, workDate,
	)
	if err != nil {
		return fmt.Errorf("inserting time entry: %w", err)
	}

	ok, err := expectOneRow(result)
	if err != nil {
		return err
	}
	if !ok {
		return closedPeriodError(workDate)
	}
	return nil
}

func closedPeriodError(workDate string) *domain.ValidationError {
	return domain.Invalid("work date %s falls inside a closed period", workDate)
}

func (r *TimeEntryRepository) Get(ctx context.Context, id string) (domain.TimeEntry, error) {
	var e domain.TimeEntry
	var retainerID sql.NullString
	var workDate, status, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT `+timeEntryColumns+` FROM time_entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.CustomerID, &retainerID, &workDate, &e.Hours, &e.Description, &status, &e.ActorID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TimeEntry{}, domain.ErrTimeEntryNotFound
		}
		return domain.TimeEntry{}, fmt.Errorf("scanning time entry: %w", err)
	}

	e.RetainerID = retainerID.String
	e.WorkDate = parseDate(workDate)
	e.Status = domain.TimeEntryStatus(status)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)

	return e, nil
}

// UpdateStatus moves an entry from one approval state to another. The write
// only applies while the entry is still in from. Approvals are refused for
// entries dated inside a closed period of their retainer.
func (r *TimeEntryRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TimeEntryStatus, at time.Time) error {
	query := `UPDATE time_entries SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	args := []any{string(to), formatTime(at), id, string(from)}
	if to == domain.TimeEntryApproved {
		query += ` AND NOT EXISTS (
			SELECT 1 FROM retainer_periods p
			WHERE p.retainer_id = time_entries.retainer_id AND p.status = 'CLOSED'
			  AND time_entries.work_date BETWEEN p.period_start AND p.period_end)`
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating time entry: %w", err)
	}

	ok, err := expectOneRow(result)
	if err != nil || ok {
		return err
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != from {
		return &domain.ConflictError{Resource: "time entry", ID: id, Reason: fmt.Sprintf("is no longer %s", from)}
	}
	return closedPeriodError(formatDate(current.WorkDate))
}

// ApprovedHours sums approved entries whose work date falls in [start, end].
func (r *TimeEntryRepository) ApprovedHours(ctx context.Context, retainerID string, start, end time.Time) (decimal.Decimal, error) {
	return approvedHours(ctx, r.db, retainerID, start, end)
}

// PendingApprovals counts submitted entries whose work date falls in [start, end].
func (r *TimeEntryRepository) PendingApprovals(ctx context.Context, retainerID string, start, end time.Time) (int, error) {
	return pendingApprovals(ctx, r.db, retainerID, start, end)
}

// LoggedHours sums the non-rejected hours an actor logged on one work date.
func (r *TimeEntryRepository) LoggedHours(ctx context.Context, actorID string, workDate time.Time) (decimal.Decimal, error) {
	return sumHours(ctx, r.db,
		`SELECT hours FROM time_entries WHERE actor_id = ? AND work_date = ? AND status != ?`,
		actorID, formatDate(workDate), string(domain.TimeEntryRejected),
	)
}

func approvedHours(ctx context.Context, q queryer, retainerID string, start, end time.Time) (decimal.Decimal, error) {
	return sumHours(ctx, q,
		`SELECT hours FROM time_entries
		 WHERE retainer_id = ? AND status = ? AND work_date BETWEEN ? AND ?`,
		retainerID, string(domain.TimeEntryApproved), formatDate(start), formatDate(end),
	)
}

func pendingApprovals(ctx context.Context, q queryer, retainerID string, start, end time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM time_entries
		 WHERE retainer_id = ? AND status = ? AND work_date BETWEEN ? AND ?`,
		retainerID, string(domain.TimeEntrySubmitted), formatDate(start), formatDate(end),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending approvals: %w", err)
	}
	return n, nil
}

// sumHours adds up the hours column of a query. SQLite has no decimal type,
// so the sum is done here.
func sumHours(ctx context.Context, q queryer, query string, args ...any) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing hours: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var hours decimal.Decimal
		if err := rows.Scan(&hours); err != nil {
			return decimal.Zero, fmt.Errorf("scanning hours: %w", err)
		}
		total = total.Add(hours)
	}

	return total, rows.Err()
}
