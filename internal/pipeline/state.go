package pipeline

import (
	"fmt"
	"sync"
)

// State is a pipeline stage.
type State string

const (
	StateIdle            State = "idle"
	StateExtractingAudio State = "extracting_audio"
	StateLoadingModel    State = "loading_model"
	StateTranscribing    State = "transcribing"
	StateDeriving        State = "deriving"
	StateEncoding        State = "encoding"
	StateComplete        State = "complete"
	StateFailed          State = "failed"
)

var transitions = map[State][]State{
	StateIdle:            {StateExtractingAudio, StateDeriving},
	StateExtractingAudio: {StateLoadingModel},
	StateLoadingModel:    {StateTranscribing},
	StateTranscribing:    {StateComplete},
	StateDeriving:        {StateEncoding},
	StateEncoding:        {StateComplete},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// CanTransition reports whether s may move to next. Failed is reachable from
// every non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Machine tracks the current state of one run.
type Machine struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewMachine starts in Idle. onChange is called after every transition.
func NewMachine(onChange func(State)) *Machine {
	return &Machine{state: StateIdle, onChange: onChange}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to next or returns an error for an illegal move.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	if !m.state.CanTransition(next) {
		cur := m.state
		m.mu.Unlock()
		return fmt.Errorf("pipeline: illegal transition %s -> %s", cur, next)
	}
	m.state = next
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(next)
	}
	return nil
}

// Fail moves to Failed unless already terminal.
func (m *Machine) Fail() {
	_ = m.Transition(StateFailed)
}
