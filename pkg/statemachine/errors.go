package statemachine

import (
	"errors"
	"fmt"
)

// ErrNoTransition indicates no transition exists for the given state/event combination.
type ErrNoTransition struct {
	State string
	Event string
}

func (e *ErrNoTransition) Error() string {
	return fmt.Sprintf("no transition available from state '%s' for event '%s'", e.State, e.Event)
}

// IsNoTransitionError reports whether err (or any error it wraps) is an *ErrNoTransition.
func IsNoTransitionError(err error) bool {
	var e *ErrNoTransition
	return errors.As(err, &e)
}
