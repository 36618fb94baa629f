package domain

import "time"

// LifecycleStatus represents the engagement stage of a customer.
type LifecycleStatus string

const (
	StatusProspect    LifecycleStatus = "PROSPECT"
	StatusOnboarding  LifecycleStatus = "ONBOARDING"
	StatusActive      LifecycleStatus = "ACTIVE"
	StatusDormant     LifecycleStatus = "DORMANT"
	StatusOffboarding LifecycleStatus = "OFFBOARDING"
	StatusOffboarded  LifecycleStatus = "OFFBOARDED"
)

// AllStatuses lists every lifecycle status in progression order.
var AllStatuses = []LifecycleStatus{
	StatusProspect,
	StatusOnboarding,
	StatusActive,
	StatusDormant,
	StatusOffboarding,
	StatusOffboarded,
}

// Valid reports whether s is a known lifecycle status.
func (s LifecycleStatus) Valid() bool {
	switch s {
	case StatusProspect, StatusOnboarding, StatusActive, StatusDormant, StatusOffboarding, StatusOffboarded:
		return true
	}
	return false
}

// Event represents an action that moves a customer between lifecycle statuses.
type Event string

const (
	EventStartOnboarding     Event = "start_onboarding"
	EventActivate            Event = "activate"
	EventMarkDormant         Event = "mark_dormant"
	EventReactivate          Event = "reactivate"
	EventBeginOffboarding    Event = "begin_offboarding"
	EventCompleteOffboarding Event = "complete_offboarding"
)

// Transition defines a valid state change: an event moves a customer from Src to Dst.
type Transition struct {
	Event Event
	Src   LifecycleStatus
	Dst   LifecycleStatus
}

// Transitions is the allowed-edge table of the customer lifecycle.
// OFFBOARDED is terminal and has no outgoing edge.
var Transitions = []Transition{
	{Event: EventStartOnboarding, Src: StatusProspect, Dst: StatusOnboarding},
	{Event: EventActivate, Src: StatusOnboarding, Dst: StatusActive},
	{Event: EventMarkDormant, Src: StatusActive, Dst: StatusDormant},
	{Event: EventBeginOffboarding, Src: StatusActive, Dst: StatusOffboarding},
	{Event: EventReactivate, Src: StatusDormant, Dst: StatusActive},
	{Event: EventBeginOffboarding, Src: StatusDormant, Dst: StatusOffboarding},
	{Event: EventCompleteOffboarding, Src: StatusOffboarding, Dst: StatusOffboarded},
}

// EventFor returns the event that moves a customer from src to dst.
func EventFor(src, dst LifecycleStatus) (Event, bool) {
	for _, t := range Transitions {
		if t.Src == src && t.Dst == dst {
			return t.Event, true
		}
	}
	return "", false
}

// AllowedTargets returns the statuses reachable from src in one step.
func AllowedTargets(src LifecycleStatus) []LifecycleStatus {
	var out []LifecycleStatus
	for _, t := range Transitions {
		if t.Src == src {
			out = append(out, t.Dst)
		}
	}
	return out
}

// Customer is the client organization whose engagement is governed by the lifecycle.
type Customer struct {
	ID             string
	Name           string
	ContactName    string
	BillingEmail   string
	Status         LifecycleStatus
	LastActivityAt *time.Time
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewCustomer creates a customer in the initial PROSPECT state.
func NewCustomer(id, name, contactName, billingEmail string, now time.Time) Customer {
	now = now.UTC()
	return Customer{
		ID:           id,
		Name:         name,
		ContactName:  contactName,
		BillingEmail: billingEmail,
		Status:       StatusProspect,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LifecycleTransitionRecord is the immutable audit entry written for every
// successful transition.
type LifecycleTransitionRecord struct {
	ID         string
	CustomerID string
	FromStatus LifecycleStatus
	ToStatus   LifecycleStatus
	EventType  Event
	OccurredAt time.Time
	ActorID    string
	Details    map[string]string
}

// TransitionWrite is the unit committed by CustomerRepository.ApplyTransition.
// The write succeeds only if the stored customer still carries ExpectedVersion
// and, when ChecklistGuard is set, the checklist instance is unchanged.
type TransitionWrite struct {
	Customer        Customer
	ExpectedVersion int64
	Record          LifecycleTransitionRecord
	// NewChecklist is instantiated atomically with the transition (entry into ONBOARDING).
	NewChecklist *ChecklistInstance
	// ChecklistGuard pins the checklist version a guard evaluated.
	ChecklistGuard *VersionGuard
}

// VersionGuard asserts that a row still carries the version that was read.
type VersionGuard struct {
	ID      string
	Version int64
}
