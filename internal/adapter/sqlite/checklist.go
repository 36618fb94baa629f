package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/practiq/internal/domain"
)

// ChecklistRepository implements domain.ChecklistRepository using SQLite.
type ChecklistRepository struct {
	db *sql.DB
}

const (
	instanceColumns = `id, customer_id, template_id, stage, version, created_at, updated_at`
	itemColumns     = `id, instance_id, position, item_key, title, status, required, requires_document,
		depends_on_item_id, completed_by, completed_at, document_id, notes, version, updated_at`
)

func (r *ChecklistRepository) CreateInstance(ctx context.Context, inst domain.ChecklistInstance) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertChecklist(ctx, tx, inst)
	})
}

// insertChecklist writes an instance and its items. Items are inserted in
// position order so that dependencies always exist before their dependents.
func insertChecklist(ctx context.Context, tx *sql.Tx, inst domain.ChecklistInstance) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO checklist_instances (`+instanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.CustomerID, inst.TemplateID, string(inst.Stage), inst.Version,
		formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{
				Resource: "checklist",
				ID:       inst.CustomerID,
				Reason:   fmt.Sprintf("already instantiated for stage %s", inst.Stage),
			}
		}
		return fmt.Errorf("inserting checklist instance: %w", err)
	}

	for _, item := range inst.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO checklist_items (`+itemColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, inst.ID, item.Position, item.Key, item.Title, string(item.Status),
			item.Required, item.RequiresDocument, nullString(item.DependsOnItemID),
			item.CompletedBy, formatNullTime(item.CompletedAt), item.DocumentID, item.Notes,
			item.Version, formatTime(item.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting checklist item %q: %w", item.Key, err)
		}
	}
	return nil
}

func (r *ChecklistRepository) GetInstance(ctx context.Context, id string) (domain.ChecklistInstance, error) {
	return r.loadInstance(ctx, `WHERE id = ?`, id)
}

func (r *ChecklistRepository) FindInstance(ctx context.Context, customerID string, stage domain.LifecycleStatus) (domain.ChecklistInstance, error) {
	return r.loadInstance(ctx, `WHERE customer_id = ? AND stage = ?`, customerID, string(stage))
}

func (r *ChecklistRepository) loadInstance(ctx context.Context, where string, args ...any) (domain.ChecklistInstance, error) {
	var inst domain.ChecklistInstance
	var stage, createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT `+instanceColumns+` FROM checklist_instances `+where, args...,
	).Scan(&inst.ID, &inst.CustomerID, &inst.TemplateID, &stage, &inst.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ChecklistInstance{}, domain.ErrChecklistNotFound
		}
		return domain.ChecklistInstance{}, fmt.Errorf("scanning checklist instance: %w", err)
	}
	inst.Stage = domain.LifecycleStatus(stage)
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM checklist_items WHERE instance_id = ? ORDER BY position`, inst.ID,
	)
	if err != nil {
		return domain.ChecklistInstance{}, fmt.Errorf("listing checklist items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return domain.ChecklistInstance{}, err
		}
		inst.Items = append(inst.Items, item)
	}

	return inst, rows.Err()
}

func (r *ChecklistRepository) GetItem(ctx context.Context, id string) (domain.ChecklistItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM checklist_items WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ChecklistItem{}, domain.ErrChecklistItemNotFound
	}
	return item, err
}

// UpdateItem compare-and-swaps the item on its version, re-checks that its
// dependency is still resolved, and bumps the owning instance's version.
func (r *ChecklistRepository) UpdateItem(ctx context.Context, item domain.ChecklistItem, expectedVersion int64) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE checklist_items
			 SET status = ?, completed_by = ?, completed_at = ?, document_id = ?, notes = ?, version = ?, updated_at = ?
			 WHERE id = ? AND version = ?`,
			string(item.Status), item.CompletedBy, formatNullTime(item.CompletedAt), item.DocumentID, item.Notes,
			item.Version, formatTime(item.UpdatedAt),
			item.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("updating checklist item: %w", err)
		}
		ok, err := expectOneRow(result)
		if err != nil {
			return err
		}
		if !ok {
			found, err := exists(ctx, tx, "checklist_items", item.ID)
			if err != nil {
				return err
			}
			if !found {
				return domain.ErrChecklistItemNotFound
			}
			return domain.StaleVersion("checklist item", item.ID)
		}

		if item.Status != domain.ItemPending && item.DependsOnItemID != "" {
			var depStatus, depTitle string
			err := tx.QueryRowContext(ctx,
				`SELECT status, title FROM checklist_items WHERE id = ?`, item.DependsOnItemID,
			).Scan(&depStatus, &depTitle)
			if err != nil {
				return fmt.Errorf("reading item dependency: %w", err)
			}
			if domain.ItemStatus(depStatus) == domain.ItemPending {
				return &domain.ValidationError{
					Code:     domain.CodeDependencyPending,
					Message:  fmt.Sprintf("item %q depends on %q, which is still pending", item.Title, depTitle),
					Blocking: []string{depTitle},
				}
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE checklist_instances SET version = version + 1, updated_at = ? WHERE id = ?`,
			formatTime(item.UpdatedAt), item.InstanceID,
		)
		if err != nil {
			return fmt.Errorf("bumping checklist version: %w", err)
		}
		return nil
	})
}

func scanItem(row scanner) (domain.ChecklistItem, error) {
	var item domain.ChecklistItem
	var status, updatedAt string
	var dependsOn, completedAt sql.NullString

	err := row.Scan(
		&item.ID, &item.InstanceID, &item.Position, &item.Key, &item.Title, &status,
		&item.Required, &item.RequiresDocument, &dependsOn, &item.CompletedBy, &completedAt,
		&item.DocumentID, &item.Notes, &item.Version, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ChecklistItem{}, err
		}
		return domain.ChecklistItem{}, fmt.Errorf("scanning checklist item: %w", err)
	}

	item.Status = domain.ItemStatus(status)
	item.DependsOnItemID = dependsOn.String
	item.CompletedAt = parseNullTime(completedAt)
	item.UpdatedAt = parseTime(updatedAt)

	return item, nil
}
