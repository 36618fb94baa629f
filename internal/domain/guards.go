package domain

// TransitionRequest carries everything a gating predicate may inspect.
type TransitionRequest struct {
	Customer  Customer
	Target    LifecycleStatus
	Checklist *ChecklistInstance
}

// Guard blocks a transition by returning an error.
type Guard func(req TransitionRequest) error

// Guards maps lifecycle events to their gating predicates. Adding a stage
// means adding rows to Transitions and, if needed, a predicate here.
var Guards = map[Event]Guard{
	EventActivate: requireChecklistComplete,
}

// requireChecklistComplete blocks leaving ONBOARDING while any required
// checklist item is still pending.
func requireChecklistComplete(req TransitionRequest) error {
	if req.Checklist == nil {
		return &ValidationError{
			Code:    CodeChecklistIncomplete,
			Message: "customer has no onboarding checklist",
		}
	}

	pending := req.Checklist.PendingRequired()
	if len(pending) == 0 {
		return nil
	}

	blocking := make([]string, len(pending))
	for i, item := range pending {
		blocking[i] = item.Title
	}
	return &ValidationError{
		Code:     CodeChecklistIncomplete,
		Message:  "required checklist items are still pending",
		Blocking: blocking,
	}
}
