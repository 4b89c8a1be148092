// Package statemachine provides a small, immutable transition table for
// entities whose state lives in a database row rather than in memory.
//
// A Machine is built once from Transition rows and then queried with the
// state loaded from storage:
//
//	m := statemachine.New(
//		statemachine.Transition[Status, Action]{From: Open, Event: Approve, To: Approved},
//		statemachine.Transition[Status, Action]{From: Open, Event: Reject, To: Rejected},
//	)
//	next, err := m.Fire(row.Status, Approve)
//
// Machines are safe for concurrent use because they are never mutated after New.
package statemachine
