package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/practiq/internal/domain"
)

// CustomerRepository implements domain.CustomerRepository using SQLite.
type CustomerRepository struct {
	db *sql.DB
}

const customerColumns = `id, name, contact_name, billing_email, status, last_activity_at, version, created_at, updated_at`

func (r *CustomerRepository) Create(ctx context.Context, c domain.Customer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.ContactName, c.BillingEmail, string(c.Status),
		formatNullTime(c.LastActivityAt), c.Version,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Resource: "customer", ID: c.ID, Reason: "already exists"}
		}
		return fmt.Errorf("inserting customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	return getCustomer(ctx, r.db, id)
}

func getCustomer(ctx context.Context, q queryer, id string) (domain.Customer, error) {
	c, err := scanCustomer(q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return c, err
}

func (r *CustomerRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	var args []any

	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		query += ` WHERE status IN (` + strings.Join(marks, ", ") + `)`
	}

	query += ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}

	return customers, rows.Err()
}

func (r *CustomerRepository) UpdateProfile(ctx context.Context, c domain.Customer, expectedVersion int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE customers SET name = ?, contact_name = ?, billing_email = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		c.Name, c.ContactName, c.BillingEmail, c.Version, formatTime(c.UpdatedAt),
		c.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating customer: %w", err)
	}
	return r.casOutcome(ctx, r.db, result, c.ID)
}

func (r *CustomerRepository) ApplyTransition(ctx context.Context, w domain.TransitionWrite) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		c := w.Customer
		result, err := tx.ExecContext(ctx,
			`UPDATE customers SET status = ?, version = ?, updated_at = ?
			 WHERE id = ? AND version = ?`,
			string(c.Status), c.Version, formatTime(c.UpdatedAt),
			c.ID, w.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("updating customer status: %w", err)
		}
		if err := r.casOutcome(ctx, tx, result, c.ID); err != nil {
			return err
		}

		if g := w.ChecklistGuard; g != nil {
			var version int64
			err := tx.QueryRowContext(ctx,
				`SELECT version FROM checklist_instances WHERE id = ?`, g.ID,
			).Scan(&version)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrChecklistNotFound
			}
			if err != nil {
				return fmt.Errorf("reading checklist version: %w", err)
			}
			if version != g.Version {
				return &domain.ConflictError{Resource: "checklist", ID: g.ID, Reason: "changed while the transition was evaluated"}
			}
		}

		if w.NewChecklist != nil {
			if err := insertChecklist(ctx, tx, *w.NewChecklist); err != nil {
				return err
			}
		}

		return insertTransition(ctx, tx, w.Record)
	})
}

func insertTransition(ctx context.Context, tx *sql.Tx, rec domain.LifecycleTransitionRecord) error {
	details := rec.Details
	if details == nil {
		details = map[string]string{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding transition details: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lifecycle_transitions (id, customer_id, from_status, to_status, event_type, occurred_at, actor_id, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CustomerID, string(rec.FromStatus), string(rec.ToStatus), string(rec.EventType),
		formatTime(rec.OccurredAt), rec.ActorID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("inserting transition record: %w", err)
	}
	return nil
}

func (r *CustomerRepository) ListTransitions(ctx context.Context, customerID string) ([]domain.LifecycleTransitionRecord, error) {
	if ok, err := exists(ctx, r.db, "customers", customerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, domain.ErrCustomerNotFound
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, from_status, to_status, event_type, occurred_at, actor_id, details
		 FROM lifecycle_transitions WHERE customer_id = ? ORDER BY seq`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing transitions: %w", err)
	}
	defer rows.Close()

	records := []domain.LifecycleTransitionRecord{}
	for rows.Next() {
		var rec domain.LifecycleTransitionRecord
		var from, to, event, occurredAt, details string
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &from, &to, &event, &occurredAt, &rec.ActorID, &details); err != nil {
			return nil, fmt.Errorf("scanning transition row: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &rec.Details); err != nil {
			return nil, fmt.Errorf("decoding transition details: %w", err)
		}
		rec.FromStatus = domain.LifecycleStatus(from)
		rec.ToStatus = domain.LifecycleStatus(to)
		rec.EventType = domain.Event(event)
		rec.OccurredAt = parseTime(occurredAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *CustomerRepository) RecordActivity(ctx context.Context, customerID string, at time.Time) error {
	stamp := formatTime(at)
	result, err := r.db.ExecContext(ctx,
		`UPDATE customers SET last_activity_at = ?
		 WHERE id = ? AND (last_activity_at IS NULL OR last_activity_at < ?)`,
		stamp, customerID, stamp,
	)
	if err != nil {
		return fmt.Errorf("recording customer activity: %w", err)
	}
	if ok, err := expectOneRow(result); err != nil || ok {
		return err
	}
	if ok, err := exists(ctx, r.db, "customers", customerID); err != nil {
		return err
	} else if !ok {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// casOutcome turns a version-guarded write result into nil, not found or a stale version conflict.
func (r *CustomerRepository) casOutcome(ctx context.Context, q queryer, result sql.Result, id string) error {
	ok, err := expectOneRow(result)
	if err != nil || ok {
		return err
	}
	found, err := exists(ctx, q, "customers", id)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrCustomerNotFound
	}
	return domain.StaleVersion("customer", id)
}

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer
	var status, createdAt, updatedAt string
	var lastActivity sql.NullString

	err := row.Scan(&c.ID, &c.Name, &c.ContactName, &c.BillingEmail, &status, &lastActivity, &c.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, err
		}
		return domain.Customer{}, fmt.Errorf("scanning customer: %w", err)
	}

	c.Status = domain.LifecycleStatus(status)
	c.LastActivityAt = parseNullTime(lastActivity)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	return c, nil
}
