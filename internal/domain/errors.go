package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrChecklistNotFound     = errors.New("checklist not found")
	ErrChecklistItemNotFound = errors.New("checklist item not found")
	ErrTemplateNotFound      = errors.New("checklist template not found")
	ErrRetainerNotFound      = errors.New("retainer not found")
	ErrPeriodNotFound        = errors.New("retainer period not found")
	ErrInvoiceDraftNotFound  = errors.New("invoice draft not found")
	ErrTimeEntryNotFound     = errors.New("time entry not found")
)

// ErrorCode is a machine-readable validation failure code.
type ErrorCode string

const (
	CodeInvalidTransition       ErrorCode = "INVALID_TRANSITION"
	CodeNoOpTransition          ErrorCode = "NO_OP_TRANSITION"
	CodeChecklistIncomplete     ErrorCode = "CHECKLIST_INCOMPLETE"
	CodeDocumentRequired        ErrorCode = "DOCUMENT_REQUIRED"
	CodeDependencyPending       ErrorCode = "DEPENDENCY_PENDING"
	CodeRequiredNotSkippable    ErrorCode = "REQUIRED_ITEM_NOT_SKIPPABLE"
	CodeItemNotPending          ErrorCode = "ITEM_NOT_PENDING"
	CodeItemNotCompleted        ErrorCode = "ITEM_NOT_COMPLETED"
	CodePeriodNotReady          ErrorCode = "PERIOD_NOT_READY"
	CodeUnmetPrerequisites      ErrorCode = "UNMET_PREREQUISITES"
	CodeInvalidInput            ErrorCode = "INVALID_INPUT"
	CodeNoBillingRate           ErrorCode = "NO_BILLING_RATE"
	CodeEntityTypeMismatch      ErrorCode = "ENTITY_TYPE_MISMATCH"
	CodeInvalidRetainerMovement ErrorCode = "INVALID_RETAINER_STATUS_CHANGE"
)

// ValidationError is returned when a request violates a domain rule.
// It is never retried automatically.
type ValidationError struct {
	Code     ErrorCode
	Message  string
	Blocking []string
}

func (e *ValidationError) Error() string {
	if len(e.Blocking) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, strings.Join(e.Blocking, ", "))
}

// Invalid builds a ValidationError with the INVALID_INPUT code.
func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// TransitionError is returned when the lifecycle table has no edge From → To.
type TransitionError struct {
	From LifecycleStatus
	To   LifecycleStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition from %q to %q is not allowed", e.From, e.To)
}

// Unwrap exposes the ValidationError view of the rejection.
func (e *TransitionError) Unwrap() error {
	return &ValidationError{Code: CodeInvalidTransition, Message: e.Error()}
}

// DependencyError names the unmet prerequisites that blocked a gated action.
type DependencyError struct {
	Context    PrerequisiteContext
	Violations []PrerequisiteViolation
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("prerequisites for %s not met: %d violation(s)", e.Context, len(e.Violations))
}

// Unwrap exposes the ValidationError view, so DependencyError matches
// errors.As(err, **ValidationError).
func (e *DependencyError) Unwrap() error {
	blocking := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		blocking[i] = string(v.Code)
	}
	return &ValidationError{Code: CodeUnmetPrerequisites, Message: e.Error(), Blocking: blocking}
}

// ConflictError is returned when a write lost a race or targets state that
// has already moved on. Callers must re-fetch before deciding to retry.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Resource, e.ID, e.Reason)
}

// StaleVersion builds the ConflictError for a failed compare-and-swap.
func StaleVersion(resource, id string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Reason: "stale version"}
}
