package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// PrerequisiteContext names a gated action.
type PrerequisiteContext string

const (
	ContextActivateCustomer         PrerequisiteContext = "ACTIVATE_CUSTOMER"
	ContextCompleteOffboarding      PrerequisiteContext = "COMPLETE_OFFBOARDING"
	ContextGenerateEngagementLetter PrerequisiteContext = "GENERATE_ENGAGEMENT_LETTER"
	ContextCloseRetainerPeriod      PrerequisiteContext = "CLOSE_RETAINER_PERIOD"
)

// EntityType names the kind of entity a prerequisite check inspects.
type EntityType string

const (
	EntityCustomer       EntityType = "CUSTOMER"
	EntityChecklistItem  EntityType = "CHECKLIST_ITEM"
	EntityRetainer       EntityType = "RETAINER"
	EntityRetainerPeriod EntityType = "RETAINER_PERIOD"
)

// ViolationCode categorizes a prerequisite violation.
type ViolationCode string

const (
	ViolationMissingField    ViolationCode = "MISSING_FIELD"
	ViolationMissingDocument ViolationCode = "MISSING_DOCUMENT"
	ViolationUnmetDependency ViolationCode = "UNMET_DEPENDENCY"
	ViolationInvalidState    ViolationCode = "INVALID_STATE"
)

// PrerequisiteViolation is a resolvable reason a gated action cannot proceed.
// It is never persisted.
type PrerequisiteViolation struct {
	Code       ViolationCode `json:"code"`
	Message    string        `json:"message"`
	EntityType EntityType    `json:"entityType"`
	EntityID   string        `json:"entityId"`
	FieldSlug  string        `json:"fieldSlug,omitempty"`
	Resolution string        `json:"resolution,omitempty"`
}

// CheckResult is the outcome of a prerequisite check.
type CheckResult struct {
	Passed     bool                    `json:"passed"`
	Violations []PrerequisiteViolation `json:"violations"`
}

// PrerequisiteSnapshot is the read-only state a rule set evaluates.
// Retainer is the customer's live retainer for customer contexts, or the
// period's retainer for period contexts.
type PrerequisiteSnapshot struct {
	Now              time.Time
	Customer         *Customer
	Checklist        *ChecklistInstance
	Retainer         *Retainer
	Period           *RetainerPeriod
	PendingApprovals int
}

// PrerequisiteRule inspects a snapshot and reports its violations.
type PrerequisiteRule func(s PrerequisiteSnapshot) []PrerequisiteViolation

// PrerequisiteSpec binds a context to the entity type it inspects and its rules.
type PrerequisiteSpec struct {
	EntityType EntityType
	Rules      []PrerequisiteRule
}

// Prerequisites is the rule table of the prerequisite gate.
var Prerequisites = map[PrerequisiteContext]PrerequisiteSpec{
	ContextActivateCustomer: {
		EntityType: EntityCustomer,
		Rules:      []PrerequisiteRule{statusIs(StatusOnboarding), contactDetails, checklistDone},
	},
	ContextCompleteOffboarding: {
		EntityType: EntityCustomer,
		Rules:      []PrerequisiteRule{statusIs(StatusOffboarding), noLiveRetainer},
	},
	ContextGenerateEngagementLetter: {
		EntityType: EntityCustomer,
		Rules:      []PrerequisiteRule{notLeaving, contactDetails, activeRetainer},
	},
	ContextCloseRetainerPeriod: {
		EntityType: EntityRetainerPeriod,
		Rules:      []PrerequisiteRule{periodOpen, retainerNotTerminated, periodElapsed, approvalsResolved},
	},
}

// GateFor returns the prerequisite context a lifecycle event must pass at
// commit time, if any.
func GateFor(event Event) (PrerequisiteContext, bool) {
	switch event {
	case EventActivate:
		return ContextActivateCustomer, true
	case EventCompleteOffboarding:
		return ContextCompleteOffboarding, true
	}
	return "", false
}

// Evaluate runs every rule and returns the violations in a stable order, so
// repeated checks over the same state are identical.
func (p PrerequisiteSpec) Evaluate(s PrerequisiteSnapshot) CheckResult {
	violations := []PrerequisiteViolation{}
	for _, rule := range p.Rules {
		violations = append(violations, rule(s)...)
	}
	slices.SortStableFunc(violations, func(a, b PrerequisiteViolation) int {
		return cmp.Or(
			strings.Compare(string(a.Code), string(b.Code)),
			strings.Compare(string(a.EntityType), string(b.EntityType)),
			strings.Compare(a.EntityID, b.EntityID),
			strings.Compare(a.FieldSlug, b.FieldSlug),
		)
	})
	return CheckResult{Passed: len(violations) == 0, Violations: violations}
}

func statusIs(want LifecycleStatus) PrerequisiteRule {
	return func(s PrerequisiteSnapshot) []PrerequisiteViolation {
		if s.Customer.Status == want {
			return nil
		}
		return []PrerequisiteViolation{{
			Code:       ViolationInvalidState,
			Message:    fmt.Sprintf("customer is %s, expected %s", s.Customer.Status, want),
			EntityType: EntityCustomer,
			EntityID:   s.Customer.ID,
			FieldSlug:  "lifecycle_status",
			Resolution: fmt.Sprintf("move the customer to %s first", want),
		}}
	}
}

func notLeaving(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if s.Customer.Status != StatusOffboarding && s.Customer.Status != StatusOffboarded {
		return nil
	}
	return []PrerequisiteViolation{{
		Code:       ViolationInvalidState,
		Message:    fmt.Sprintf("customer is %s", s.Customer.Status),
		EntityType: EntityCustomer,
		EntityID:   s.Customer.ID,
		FieldSlug:  "lifecycle_status",
		Resolution: "engagement documents cannot be generated for departing customers",
	}}
}

func contactDetails(s PrerequisiteSnapshot) []PrerequisiteViolation {
	var out []PrerequisiteViolation
	if strings.TrimSpace(s.Customer.ContactName) == "" {
		out = append(out, PrerequisiteViolation{
			Code:       ViolationMissingField,
			Message:    "contact name is missing",
			EntityType: EntityCustomer,
			EntityID:   s.Customer.ID,
			FieldSlug:  "contact_name",
			Resolution: "add a primary contact name to the customer profile",
		})
	}
	if strings.TrimSpace(s.Customer.BillingEmail) == "" {
		out = append(out, PrerequisiteViolation{
			Code:       ViolationMissingField,
			Message:    "billing email is missing",
			EntityType: EntityCustomer,
			EntityID:   s.Customer.ID,
			FieldSlug:  "billing_email",
			Resolution: "add a billing email to the customer profile",
		})
	}
	return out
}

func checklistDone(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if s.Checklist == nil {
		return []PrerequisiteViolation{{
			Code:       ViolationUnmetDependency,
			Message:    "customer has no onboarding checklist",
			EntityType: EntityCustomer,
			EntityID:   s.Customer.ID,
			Resolution: "instantiate the onboarding checklist",
		}}
	}

	var out []PrerequisiteViolation
	for _, item := range s.Checklist.PendingRequired() {
		v := PrerequisiteViolation{
			Code:       ViolationUnmetDependency,
			Message:    fmt.Sprintf("required checklist item %q is pending", item.Title),
			EntityType: EntityChecklistItem,
			EntityID:   item.ID,
			Resolution: fmt.Sprintf("complete %q", item.Title),
		}
		if item.RequiresDocument {
			v.Code = ViolationMissingDocument
			v.Resolution = fmt.Sprintf("upload the document for %q and complete it", item.Title)
		}
		out = append(out, v)
	}
	return out
}

func noLiveRetainer(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if s.Retainer == nil || !s.Retainer.Status.Live() {
		return nil
	}
	return []PrerequisiteViolation{{
		Code:       ViolationUnmetDependency,
		Message:    fmt.Sprintf("retainer is still %s", s.Retainer.Status),
		EntityType: EntityRetainer,
		EntityID:   s.Retainer.ID,
		FieldSlug:  "status",
		Resolution: "terminate the retainer before completing offboarding",
	}}
}

func activeRetainer(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if s.Retainer != nil && s.Retainer.Status == RetainerActive {
		return nil
	}
	return []PrerequisiteViolation{{
		Code:       ViolationUnmetDependency,
		Message:    "customer has no active retainer",
		EntityType: EntityCustomer,
		EntityID:   s.Customer.ID,
		Resolution: "set up or resume a retainer for the customer",
	}}
}

func periodOpen(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if s.Period.Status == PeriodOpen {
		return nil
	}
	return []PrerequisiteViolation{{
		Code:       ViolationInvalidState,
		Message:    "period is already closed",
		EntityType: EntityRetainerPeriod,
		EntityID:   s.Period.ID,
		FieldSlug:  "status",
	}}
}

func retainerNotTerminated(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if s.Retainer.Status != RetainerTerminated {
		return nil
	}
	return []PrerequisiteViolation{{
		Code:       ViolationInvalidState,
		Message:    "retainer is terminated",
		EntityType: EntityRetainer,
		EntityID:   s.Retainer.ID,
		FieldSlug:  "status",
	}}
}

func periodElapsed(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if Date(s.Now).After(s.Period.PeriodEnd) {
		return nil
	}
	return []PrerequisiteViolation{{
		Code:       ViolationUnmetDependency,
		Message:    fmt.Sprintf("period ends on %s", s.Period.PeriodEnd.Format(dateLayout)),
		EntityType: EntityRetainerPeriod,
		EntityID:   s.Period.ID,
		FieldSlug:  "period_end",
		Resolution: "wait until the period has ended",
	}}
}

func approvalsResolved(s PrerequisiteSnapshot) []PrerequisiteViolation {
	if s.PendingApprovals == 0 {
		return nil
	}
	return []PrerequisiteViolation{{
		Code:       ViolationUnmetDependency,
		Message:    fmt.Sprintf("%d time entries await approval", s.PendingApprovals),
		EntityType: EntityRetainerPeriod,
		EntityID:   s.Period.ID,
		Resolution: "approve or reject the submitted time entries in this period",
	}}
}
