package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/practiq/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// events converts domain.Transitions into looplab/fsm EventDesc format.
// It consolidates transitions with the same event+destination into a single
// EventDesc with multiple source states (e.g., EventBeginOffboarding from
// "ACTIVE" and "DORMANT" both go to "OFFBOARDING").
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range domain.Transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// callbacks runs every domain.Guards predicate as a before_<event> callback.
// The transition request travels as the first event argument.
var callbacks = buildCallbacks()

func buildCallbacks() loopfsm.Callbacks {
	out := make(loopfsm.Callbacks, len(domain.Guards))
	for event, guard := range domain.Guards {
		out["before_"+string(event)] = func(_ context.Context, e *loopfsm.Event) {
			req, ok := e.Args[0].(domain.TransitionRequest)
			if !ok {
				e.Cancel(errors.New("transition request missing from event arguments"))
				return
			}
			if err := guard(req); err != nil {
				e.Cancel(err)
			}
		}
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Apply call, initialized with
// the customer's current state, because looplab/fsm tracks state internally.
type Validator struct{}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Apply checks that the edge current → target exists and that its guards
// pass, returning the event that performs it. A missing edge yields a
// *domain.TransitionError; a failing guard yields the guard's error.
func (v *Validator) Apply(ctx context.Context, req domain.TransitionRequest) (domain.Event, error) {
	current := req.Customer.Status
	if req.Target == current {
		return "", &domain.ValidationError{
			Code:    domain.CodeNoOpTransition,
			Message: "customer is already " + string(current),
		}
	}

	event, ok := domain.EventFor(current, req.Target)
	if !ok {
		return "", &domain.TransitionError{From: current, To: req.Target}
	}

	machine := loopfsm.NewFSM(string(current), events, callbacks)

	if err := machine.Event(ctx, string(event), req); err != nil {
		var canceled loopfsm.CanceledError
		if errors.As(err, &canceled) && canceled.Err != nil {
			return "", canceled.Err
		}
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{From: current, To: req.Target}
		}
		return "", err
	}

	if got := domain.LifecycleStatus(machine.Current()); got != req.Target {
		return "", &domain.TransitionError{From: current, To: req.Target}
	}
	return event, nil
}
