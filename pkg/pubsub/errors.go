package pubsub

import "errors"

var (
	ErrListenerClosed = errors.New("pubsub: listener is closed")
	ErrBackendClosed  = errors.New("pubsub: backend is closed")
	ErrEmptyChannel   = errors.New("pubsub: channel name is empty")
)
