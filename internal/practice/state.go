package practice

import "slices"

// StateType is the phase of the repeat-playback loop.
type StateType int

const (
	// StateIdle indicates no sentence is being practiced.
	StateIdle StateType = iota
	// StateLoading indicates speech for the sentence is being fetched.
	StateLoading
	// StatePlaying indicates one repeat is being played.
	StatePlaying
	// StatePausedBetweenRepeats indicates the loop is waiting before the
	// next repeat.
	StatePausedBetweenRepeats
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePausedBetweenRepeats:
		return "paused"
	default:
		return "unknown"
	}
}

// StateMachine guards the loop's transitions. It is not safe for concurrent
// use; the Controller serializes access.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
}

// NewStateMachine creates a state machine in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:                 {StateLoading},
			StateLoading:              {StatePlaying, StateIdle},
			StatePlaying:              {StatePausedBetweenRepeats, StateIdle},
			StatePausedBetweenRepeats: {StatePlaying, StateIdle},
		},
	}
}

// Transition moves to the given state if the move is allowed.
func (sm *StateMachine) Transition(to StateType) bool {
	if !sm.CanTransition(to) {
		return false
	}
	sm.current = to
	return true
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	return slices.Contains(sm.transitions[sm.current], to)
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}
