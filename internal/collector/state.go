package collector

import "fmt"

// State is the crawler's current phase.
type State int32

const (
	StateSeeding  State = iota // No usable seed; sample the ranked ladder
	StatePaging                // List a page of match ids for the current seed
	StateFetching              // Fetch the unseen matches of the listed page
	StateRotating              // Advance to the next seed
	StateDone                  // Target reached
)

func (s State) String() string {
	switch s {
	case StateSeeding:
		return "SEEDING"
	case StatePaging:
		return "PAGING"
	case StateFetching:
		return "FETCHING"
	case StateRotating:
		return "ROTATING"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// InvalidTransitionError is returned when an invalid state transition is attempted.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// validTransitions defines the allowed state transitions.
// Key: from state, Value: set of valid target states.
var validTransitions = map[State]map[State]bool{
	StateSeeding: {
		StatePaging: true,
		StateDone:   true,
	},
	StatePaging: {
		StateFetching: true,
		StateRotating: true,
		StateDone:     true,
	},
	StateFetching: {
		StatePaging:   true,
		StateRotating: true,
		StateDone:     true,
	},
	StateRotating: {
		StatePaging:  true,
		StateSeeding: true,
		StateDone:    true,
	},
	StateDone: {},
}

// StateMachine tracks the crawler phase. It is driven by a single goroutine.
type StateMachine struct {
	state    State
	callback func(from, to State)
}

func NewStateMachine(initial State) *StateMachine {
	return &StateMachine{state: initial}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	return sm.state
}

// TransitionTo moves to the target state or returns an InvalidTransitionError.
func (sm *StateMachine) TransitionTo(to State) error {
	from := sm.state
	if from == to || !validTransitions[from][to] {
		return &InvalidTransitionError{From: from, To: to}
	}
	sm.state = to
	if sm.callback != nil {
		sm.callback(from, to)
	}
	return nil
}

// OnTransition sets a callback to be called after each successful transition.
func (sm *StateMachine) OnTransition(callback func(from, to State)) {
	sm.callback = callback
}
