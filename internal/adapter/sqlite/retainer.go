package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/practiq/internal/domain"
)

// RetainerRepository implements domain.RetainerRepository using SQLite.
type RetainerRepository struct {
	db *sql.DB
}

const (
	retainerColumns = `id, customer_id, type, status, allocated_hours, period_fee, currency,
		rollover_policy, rollover_cap_hours, version, created_at, updated_at`
	periodColumns = `id, retainer_id, period_start, period_end, status, allocated_hours, base_allocated_hours,
		consumed_hours, remaining_hours, rollover_hours_in, rollover_hours_out, overage_hours,
		invoice_id, version, closed_at, created_at`
	draftColumns = `id, retainer_id, period_id, customer_id, currency, total, created_at`
)

// Create stores a retainer together with its first period.
func (r *RetainerRepository) Create(ctx context.Context, ret domain.Retainer, first domain.RetainerPeriod) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO retainers (`+retainerColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ret.ID, ret.CustomerID, string(ret.Type), string(ret.Status), ret.AllocatedHours, ret.PeriodFee,
			ret.Currency, string(ret.RolloverPolicy), ret.RolloverCapHours, ret.Version,
			formatTime(ret.CreatedAt), formatTime(ret.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &domain.ConflictError{Resource: "customer", ID: ret.CustomerID, Reason: "already has an active or paused retainer"}
			}
			return fmt.Errorf("inserting retainer: %w", err)
		}
		return insertPeriod(ctx, tx, first)
	})
}

func (r *RetainerRepository) GetByID(ctx context.Context, id string) (domain.Retainer, error) {
	return r.getRetainer(ctx, `WHERE id = ?`, id)
}

func (r *RetainerRepository) FindLiveForCustomer(ctx context.Context, customerID string) (domain.Retainer, error) {
	return r.getRetainer(ctx, `WHERE customer_id = ? AND status IN ('ACTIVE', 'PAUSED')`, customerID)
}

func (r *RetainerRepository) getRetainer(ctx context.Context, where string, args ...any) (domain.Retainer, error) {
	var ret domain.Retainer
	var typ, status, policy, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx, `SELECT `+retainerColumns+` FROM retainers `+where, args...).Scan(
		&ret.ID, &ret.CustomerID, &typ, &status, &ret.AllocatedHours, &ret.PeriodFee, &ret.Currency,
		&policy, &ret.RolloverCapHours, &ret.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Retainer{}, domain.ErrRetainerNotFound
		}
		return domain.Retainer{}, fmt.Errorf("scanning retainer: %w", err)
	}

	ret.Type = domain.RetainerType(typ)
	ret.Status = domain.RetainerStatus(status)
	ret.RolloverPolicy = domain.RolloverPolicy(policy)
	ret.CreatedAt = parseTime(createdAt)
	ret.UpdatedAt = parseTime(updatedAt)

	return ret, nil
}

func (r *RetainerRepository) UpdateStatus(ctx context.Context, ret domain.Retainer, expectedVersion int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE retainers SET status = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		string(ret.Status), ret.Version, formatTime(ret.UpdatedAt), ret.ID, expectedVersion,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "customer", ID: ret.CustomerID, Reason: "already has an active or paused retainer"}
		}
		return fmt.Errorf("updating retainer status: %w", err)
	}

	ok, err := expectOneRow(result)
	if err != nil || ok {
		return err
	}
	found, err := exists(ctx, r.db, "retainers", ret.ID)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrRetainerNotFound
	}
	return domain.StaleVersion("retainer", ret.ID)
}

func (r *RetainerRepository) GetPeriod(ctx context.Context, id string) (domain.RetainerPeriod, error) {
	p, err := scanPeriod(r.db.QueryRowContext(ctx,
		`SELECT `+periodColumns+` FROM retainer_periods WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RetainerPeriod{}, domain.ErrPeriodNotFound
	}
	return p, err
}

func (r *RetainerRepository) ListPeriods(ctx context.Context, retainerID string) ([]domain.RetainerPeriod, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+periodColumns+` FROM retainer_periods WHERE retainer_id = ? ORDER BY period_start`, retainerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing retainer periods: %w", err)
	}
	defer rows.Close()

	periods := []domain.RetainerPeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}

	return periods, rows.Err()
}

// ClosePeriod marks the period CLOSED, opens its successor and stores the
// invoice draft in one transaction. The period update only matches an OPEN
// row at the expected version, so a second close of the same period fails
// before anything else is written. Time entries are re-read inside the
// transaction: a pending approval or a change in approved hours since the
// caller settled the period aborts the close.
func (r *RetainerRepository) ClosePeriod(ctx context.Context, c domain.PeriodClosing) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		p := c.Closed
		if err := recheckConsumption(ctx, tx, p); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE retainer_periods
			 SET status = ?, allocated_hours = ?, base_allocated_hours = ?, consumed_hours = ?, remaining_hours = ?,
			     rollover_hours_in = ?, rollover_hours_out = ?, overage_hours = ?, invoice_id = ?, version = ?, closed_at = ?
			 WHERE id = ? AND status = 'OPEN' AND version = ?`,
			string(p.Status), p.AllocatedHours, p.BaseAllocatedHours, p.ConsumedHours, p.RemainingHours,
			p.RolloverHoursIn, p.RolloverHoursOut, p.OverageHours, p.InvoiceID, p.Version, formatNullTime(p.ClosedAt),
			p.ID, c.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("closing retainer period: %w", err)
		}
		ok, err := expectOneRow(result)
		if err != nil {
			return err
		}
		if !ok {
			return periodConflict(ctx, tx, p.ID)
		}

		if err := insertPeriod(ctx, tx, c.Next); err != nil {
			return err
		}
		return insertDraft(ctx, tx, c.Draft)
	})
}

func recheckConsumption(ctx context.Context, tx *sql.Tx, p domain.RetainerPeriod) error {
	pending, err := pendingApprovals(ctx, tx, p.RetainerID, p.PeriodStart, p.PeriodEnd)
	if err != nil {
		return err
	}
	if pending > 0 {
		return &domain.ValidationError{
			Code:    domain.CodePeriodNotReady,
			Message: "period is not ready to close",
			Blocking: []string{
				fmt.Sprintf("%d time entries in the period are awaiting approval", pending),
			},
		}
	}

	approved, err := approvedHours(ctx, tx, p.RetainerID, p.PeriodStart, p.PeriodEnd)
	if err != nil {
		return err
	}
	if !approved.Equal(p.ConsumedHours) {
		return &domain.ConflictError{
			Resource: "retainer period",
			ID:       p.ID,
			Reason:   fmt.Sprintf("approved hours changed from %s to %s while closing", p.ConsumedHours, approved),
		}
	}
	return nil
}

func periodConflict(ctx context.Context, tx *sql.Tx, id string) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM retainer_periods WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrPeriodNotFound
	}
	if err != nil {
		return fmt.Errorf("reading retainer period status: %w", err)
	}
	if domain.PeriodStatus(status) == domain.PeriodClosed {
		return &domain.ConflictError{Resource: "retainer period", ID: id, Reason: "already closed"}
	}
	return domain.StaleVersion("retainer period", id)
}

func insertPeriod(ctx context.Context, tx *sql.Tx, p domain.RetainerPeriod) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO retainer_periods (`+periodColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.RetainerID, formatDate(p.PeriodStart), formatDate(p.PeriodEnd), string(p.Status),
		p.AllocatedHours, p.BaseAllocatedHours, p.ConsumedHours, p.RemainingHours,
		p.RolloverHoursIn, p.RolloverHoursOut, p.OverageHours, p.InvoiceID, p.Version,
		formatNullTime(p.ClosedAt), formatTime(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "retainer", ID: p.RetainerID, Reason: "period overlaps an existing period"}
		}
		return fmt.Errorf("inserting retainer period: %w", err)
	}
	return nil
}

func insertDraft(ctx context.Context, tx *sql.Tx, d domain.InvoiceDraft) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO invoice_drafts (`+draftColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RetainerID, d.PeriodID, d.CustomerID, d.Currency, d.Total, formatTime(d.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "retainer period", ID: d.PeriodID, Reason: "invoice draft already exists"}
		}
		return fmt.Errorf("inserting invoice draft: %w", err)
	}

	for i, line := range d.Lines {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO invoice_draft_lines (draft_id, position, kind, description, quantity, unit_price, amount)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, i, string(line.Kind), line.Description, line.Quantity, line.UnitPrice, line.Amount,
		)
		if err != nil {
			return fmt.Errorf("inserting invoice line %d: %w", i, err)
		}
	}
	return nil
}

func (r *RetainerRepository) GetInvoiceDraft(ctx context.Context, id string) (domain.InvoiceDraft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM invoice_drafts WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InvoiceDraft{}, domain.ErrInvoiceDraftNotFound
	}
	if err != nil {
		return domain.InvoiceDraft{}, err
	}
	if d.Lines, err = r.draftLines(ctx, d.ID); err != nil {
		return domain.InvoiceDraft{}, err
	}
	return d, nil
}

func (r *RetainerRepository) ListInvoiceDrafts(ctx context.Context, retainerID string) ([]domain.InvoiceDraft, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM invoice_drafts WHERE retainer_id = ? ORDER BY created_at, id`, retainerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invoice drafts: %w", err)
	}

	drafts := []domain.InvoiceDraft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Lines are read after the cursor is released; the store holds a single connection.
	rows.Close()

	for i := range drafts {
		if drafts[i].Lines, err = r.draftLines(ctx, drafts[i].ID); err != nil {
			return nil, err
		}
	}
	return drafts, nil
}

func (r *RetainerRepository) draftLines(ctx context.Context, draftID string) ([]domain.InvoiceLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, description, quantity, unit_price, amount
		 FROM invoice_draft_lines WHERE draft_id = ? ORDER BY position`, draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invoice lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.InvoiceLine
	for rows.Next() {
		var line domain.InvoiceLine
		var kind string
		if err := rows.Scan(&kind, &line.Description, &line.Quantity, &line.UnitPrice, &line.Amount); err != nil {
			return nil, fmt.Errorf("scanning invoice line: %w", err)
		}
		line.Kind = domain.LineKind(kind)
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func scanPeriod(row scanner) (domain.RetainerPeriod, error) {
	var p domain.RetainerPeriod
	var start, end, status, createdAt string
	var closedAt sql.NullString

	err := row.Scan(
		&p.ID, &p.RetainerID, &start, &end, &status, &p.AllocatedHours, &p.BaseAllocatedHours,
		&p.ConsumedHours, &p.RemainingHours, &p.RolloverHoursIn, &p.RolloverHoursOut, &p.OverageHours,
		&p.InvoiceID, &p.Version, &closedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RetainerPeriod{}, err
		}
		return domain.RetainerPeriod{}, fmt.Errorf("scanning retainer period: %w", err)
	}

	p.PeriodStart = parseDate(start)
	p.PeriodEnd = parseDate(end)
	p.Status = domain.PeriodStatus(status)
	p.ClosedAt = parseNullTime(closedAt)
	p.CreatedAt = parseTime(createdAt)

	return p, nil
}

func scanDraft(row scanner) (domain.InvoiceDraft, error) {
	var d domain.InvoiceDraft
	var createdAt string

	err := row.Scan(&d.ID, &d.RetainerID, &d.PeriodID, &d.CustomerID, &d.Currency, &d.Total, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InvoiceDraft{}, err
		}
		return domain.InvoiceDraft{}, fmt.Errorf("scanning invoice draft: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)

	return d, nil
}
