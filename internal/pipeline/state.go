package pipeline

import "fmt"

// State is where one startup is in its cycle.
type State string

const (
	StateIdle       State = "idle"
	StatePlanning   State = "planning"
	StateFetching   State = "fetching"
	StateMatching   State = "matching"
	StateScoring    State = "scoring"
	StatePersisting State = "persisting"
)

// Every state may drop back to idle when the startup is skipped.
var transitions = map[State][]State{
	StateIdle:       {StatePlanning},
	StatePlanning:   {StateFetching, StateIdle},
	StateFetching:   {StateMatching, StateIdle},
	StateMatching:   {StateScoring, StateIdle},
	StateScoring:    {StatePersisting, StateIdle},
	StatePersisting: {StateIdle},
}

// Transition is reported to Options.Observer on every state change.
type Transition struct {
	StartupID string
	From      State
	To        State
}

type machine struct {
	startupID string
	state     State
	observe   func(Transition)
}

func newMachine(startupID string, observe func(Transition)) *machine {
	return &machine{startupID: startupID, state: StateIdle, observe: observe}
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			prev := m.state
			m.state = next
			if m.observe != nil {
				m.observe(Transition{StartupID: m.startupID, From: prev, To: next})
			}
			return nil
		}
	}
	return fmt.Errorf("startup %s: illegal transition %s -> %s", m.startupID, m.state, next)
}

// reset returns to idle from wherever the machine is.
func (m *machine) reset() {
	if m.state == StateIdle {
		return
	}
	_ = m.to(StateIdle)
}
