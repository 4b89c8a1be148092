package statemachine

import "fmt"

// Transition defines a state change triggered by an event.
type Transition[S, E comparable] struct {
	From  S
	Event E
	To    S
}

// Machine is a read-only transition table keyed by [from][event].
type Machine[S, E comparable] struct {
	transitions map[S]map[E]S
}

// New builds a Machine from the given transitions. A later row for the same
// from/event pair replaces an earlier one.
func New[S, E comparable](transitions ...Transition[S, E]) *Machine[S, E] {
	m := &Machine[S, E]{transitions: make(map[S]map[E]S)}
	for _, t := range transitions {
		if _, ok := m.transitions[t.From]; !ok {
			m.transitions[t.From] = make(map[E]S)
		}
		m.transitions[t.From][t.Event] = t.To
	}
	return m
}

// Fire returns the state reached from `from` by `event`, or *ErrNoTransition.
func (m *Machine[S, E]) Fire(from S, event E) (S, error) {
	if to, ok := m.transitions[from][event]; ok {
		return to, nil
	}
	var zero S
	return zero, &ErrNoTransition{State: fmt.Sprint(from), Event: fmt.Sprint(event)}
}

// Can reports whether event is accepted in state from.
func (m *Machine[S, E]) Can(from S, event E) bool {
	_, ok := m.transitions[from][event]
	return ok
}

// IsTerminal reports whether s has no outgoing transitions.
func (m *Machine[S, E]) IsTerminal(s S) bool {
	return len(m.transitions[s]) == 0
}
