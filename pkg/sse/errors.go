package sse

import "errors"

var (
	ErrStreamingUnsupported = errors.New("sse: response writer does not support flushing")
	ErrSubscribeFailed      = errors.New("sse: subscribe failed")
)
