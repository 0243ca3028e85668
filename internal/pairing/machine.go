package pairing

import "time"

// Machine wraps Transition with the mutable current State a single pairing
// session needs. It holds no locks; the orchestrator serializes access per
// session id.
type Machine struct {
	state State
}

// NewMachine returns a Machine sitting in Idle.
func NewMachine() *Machine {
	return &Machine{state: State{Kind: Idle}}
}

// NewMachineFor resumes a Machine at an existing State, used when the
// orchestrator rehydrates a session after a restart.
func NewMachineFor(s State) *Machine {
	return &Machine{state: s}
}

// Handle feeds ev through Transition, updates the held state, and returns
// the actions the caller must execute.
func (m *Machine) Handle(ev Event) []Action {
	if ev.Now.IsZero() {
		ev.Now = time.Now()
	}
	next, actions := Transition(m.state, ev, ev.Now)
	m.state = next
	return actions
}

// State returns the machine's current state value.
func (m *Machine) State() State { return m.state }

// Done reports whether the session has reached a terminal state.
func (m *Machine) Done() bool { return m.state.Kind.IsTerminal() }
