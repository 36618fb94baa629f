package domain

import (
	"fmt"
	"strings"
	"time"
)

// ItemStatus is the progress state of a checklist item.
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemCompleted ItemStatus = "COMPLETED"
	ItemSkipped   ItemStatus = "SKIPPED"
)

// resolved reports whether the item no longer blocks its dependents.
func (s ItemStatus) resolved() bool {
	return s == ItemCompleted || s == ItemSkipped
}

// ChecklistTemplate is an ordered list of steps instantiated per customer.
type ChecklistTemplate struct {
	ID    string
	Name  string
	Stage LifecycleStatus
	Items []TemplateItem
}

// TemplateItem describes one step of a template. DependsOn references the
// Key of an earlier item.
type TemplateItem struct {
	Key              string
	Title            string
	Required         bool
	RequiresDocument bool
	DependsOn        string
}

// Validate checks key uniqueness and that every dependency points backwards,
// which keeps instantiated dependency graphs acyclic.
func (t ChecklistTemplate) Validate() error {
	if t.ID == "" {
		return Invalid("template id is required")
	}
	if !t.Stage.Valid() {
		return Invalid("template %q: unknown stage %q", t.ID, t.Stage)
	}
	if len(t.Items) == 0 {
		return Invalid("template %q has no items", t.ID)
	}

	seen := make(map[string]bool, len(t.Items))
	for i, item := range t.Items {
		if item.Key == "" || item.Title == "" {
			return Invalid("template %q item %d: key and title are required", t.ID, i)
		}
		if seen[item.Key] {
			return Invalid("template %q: duplicate item key %q", t.ID, item.Key)
		}
		if item.DependsOn != "" && !seen[item.DependsOn] {
			return Invalid("template %q item %q: dependency %q must be an earlier item", t.ID, item.Key, item.DependsOn)
		}
		seen[item.Key] = true
	}
	return nil
}

// ChecklistInstance is a template instantiated for one customer and stage.
// Version increases with every item mutation.
type ChecklistInstance struct {
	ID         string
	CustomerID string
	TemplateID string
	Stage      LifecycleStatus
	Items      []ChecklistItem
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ChecklistItem is one step of an instance. Version guards per-item
// compare-and-swap writes.
type ChecklistItem struct {
	ID               string
	InstanceID       string
	Position         int
	Key              string
	Title            string
	Status           ItemStatus
	Required         bool
	RequiresDocument bool
	DependsOnItemID  string
	CompletedBy      string
	CompletedAt      *time.Time
	DocumentID       string
	Notes            string
	Version          int64
	UpdatedAt        time.Time
}

// NewChecklistInstance instantiates template for a customer. newID supplies
// identifiers for the instance and each item.
func NewChecklistInstance(template ChecklistTemplate, customerID string, newID func() string, now time.Time) ChecklistInstance {
	now = now.UTC()
	inst := ChecklistInstance{
		ID:         newID(),
		CustomerID: customerID,
		TemplateID: template.ID,
		Stage:      template.Stage,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	byKey := make(map[string]string, len(template.Items))
	for i, ti := range template.Items {
		item := ChecklistItem{
			ID:               newID(),
			InstanceID:       inst.ID,
			Position:         i,
			Key:              ti.Key,
			Title:            ti.Title,
			Status:           ItemPending,
			Required:         ti.Required,
			RequiresDocument: ti.RequiresDocument,
			DependsOnItemID:  byKey[ti.DependsOn],
			Version:          1,
			UpdatedAt:        now,
		}
		byKey[ti.Key] = item.ID
		inst.Items = append(inst.Items, item)
	}
	return inst
}

// PendingRequired returns the required items that are still pending, in order.
func (c ChecklistInstance) PendingRequired() []ChecklistItem {
	var out []ChecklistItem
	for _, item := range c.Items {
		if item.Required && item.Status == ItemPending {
			out = append(out, item)
		}
	}
	return out
}

// Item returns the item with the given id.
func (c ChecklistInstance) Item(id string) (ChecklistItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return ChecklistItem{}, false
}

// Complete marks the item COMPLETED. dependency is the item referenced by
// DependsOnItemID, or nil when there is none.
func (i ChecklistItem) Complete(dependency *ChecklistItem, actorID, notes, documentID string, now time.Time) (ChecklistItem, error) {
	if i.Status != ItemPending {
		return ChecklistItem{}, &ValidationError{
			Code:    CodeItemNotPending,
			Message: fmt.Sprintf("item %q is %s", i.Title, i.Status),
		}
	}
	if i.RequiresDocument && strings.TrimSpace(documentID) == "" {
		return ChecklistItem{}, &ValidationError{
			Code:     CodeDocumentRequired,
			Message:  fmt.Sprintf("item %q requires a document", i.Title),
			Blocking: []string{i.Title},
		}
	}
	if err := i.checkDependency(dependency); err != nil {
		return ChecklistItem{}, err
	}

	now = now.UTC()
	i.Status = ItemCompleted
	i.CompletedBy = actorID
	i.CompletedAt = &now
	i.DocumentID = documentID
	if notes != "" {
		i.Notes = notes
	}
	i.UpdatedAt = now
	return i, nil
}

// Skip marks an optional item SKIPPED. Required items are never skippable,
// whoever asks.
func (i ChecklistItem) Skip(dependency *ChecklistItem, actorID, reason string, now time.Time) (ChecklistItem, error) {
	if i.Required {
		return ChecklistItem{}, &ValidationError{
			Code:     CodeRequiredNotSkippable,
			Message:  fmt.Sprintf("item %q is required and cannot be skipped", i.Title),
			Blocking: []string{i.Title},
		}
	}
	if i.Status != ItemPending {
		return ChecklistItem{}, &ValidationError{
			Code:    CodeItemNotPending,
			Message: fmt.Sprintf("item %q is %s", i.Title, i.Status),
		}
	}
	if strings.TrimSpace(reason) == "" {
		return ChecklistItem{}, Invalid("a reason is required to skip %q", i.Title)
	}
	if err := i.checkDependency(dependency); err != nil {
		return ChecklistItem{}, err
	}

	now = now.UTC()
	i.Status = ItemSkipped
	i.CompletedBy = actorID
	i.CompletedAt = &now
	i.Notes = reason
	i.UpdatedAt = now
	return i, nil
}

// Reopen returns a COMPLETED item to PENDING. Dependent items keep their
// status; they are re-validated the next time someone completes them.
func (i ChecklistItem) Reopen(now time.Time) (ChecklistItem, error) {
	if i.Status != ItemCompleted {
		return ChecklistItem{}, &ValidationError{
			Code:    CodeItemNotCompleted,
			Message: fmt.Sprintf("item %q is %s; only completed items can be reopened", i.Title, i.Status),
		}
	}
	i.Status = ItemPending
	i.CompletedBy = ""
	i.CompletedAt = nil
	i.DocumentID = ""
	i.UpdatedAt = now.UTC()
	return i, nil
}

func (i ChecklistItem) checkDependency(dependency *ChecklistItem) error {
	if i.DependsOnItemID == "" {
		return nil
	}
	if dependency == nil || dependency.ID != i.DependsOnItemID {
		return fmt.Errorf("dependency %s of item %s was not supplied", i.DependsOnItemID, i.ID)
	}
	if !dependency.Status.resolved() {
		return &ValidationError{
			Code:     CodeDependencyPending,
			Message:  fmt.Sprintf("item %q depends on %q, which is still pending", i.Title, dependency.Title),
			Blocking: []string{dependency.Title},
		}
	}
	return nil
}
