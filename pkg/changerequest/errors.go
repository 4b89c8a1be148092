package changerequest

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("change request or skill not found")
	ErrForbidden    = errors.New("caller is not allowed to perform this action")
	ErrInvalidState = errors.New("change request is not open")
	ErrInvalidInput = errors.New("invalid change request input")
)

// ErrorKind classifies workflow errors.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Kind returns the classification of err.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}

func invalidState(from Status, action Action) error {
	return fmt.Errorf("%w: cannot %s a %s change request", ErrInvalidState, action, from)
}
