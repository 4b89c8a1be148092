package pubsub

import (
	"context"
	"sync"
)

const defaultMemoryBuffer = 256

// MemoryBackend is an in-process Backend. Notify never blocks: a listener
// whose buffer is full misses the payload, the same loss a disconnected
// LISTEN connection would see. Safe for concurrent use.
type MemoryBackend struct {
	mu         sync.RWMutex
	listeners  map[string]map[*memoryListener]struct{}
	bufferSize int
	closed     bool
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithBufferSize sets the per-listener buffer. Values below 1 are raised to 1.
func WithBufferSize(n int) MemoryOption {
	return func(b *MemoryBackend) {
		b.bufferSize = max(n, 1)
	}
}

// NewMemoryBackend creates an in-process backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		listeners:  make(map[string]map[*memoryListener]struct{}),
		bufferSize: defaultMemoryBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Notify implements Backend.
func (b *MemoryBackend) Notify(_ context.Context, channel, payload string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBackendClosed
	}

	for l := range b.listeners[channel] {
		l.send(payload)
	}
	return nil
}

// Listen implements Backend.
func (b *MemoryBackend) Listen(_ context.Context, channel string) (Listener, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBackendClosed
	}

	l := &memoryListener{
		backend: b,
		channel: channel,
		ch:      make(chan string, b.bufferSize),
	}
	set, ok := b.listeners[channel]
	if !ok {
		set = make(map[*memoryListener]struct{})
		b.listeners[channel] = set
	}
	set[l] = struct{}{}

	return l, nil
}

// ListenerCount returns the number of open listeners on channel.
func (b *MemoryBackend) ListenerCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[channel])
}

// Close detaches and closes every listener. Safe to call multiple times.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, set := range b.listeners {
		for l := range set {
			l.closeLocked()
		}
	}
	clear(b.listeners)
	return nil
}

func (b *MemoryBackend) remove(l *memoryListener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.listeners[l.channel]; ok {
		delete(set, l)
		if len(set) == 0 {
			delete(b.listeners, l.channel)
		}
	}
	l.closeLocked()
}

type memoryListener struct {
	backend *MemoryBackend
	channel string
	ch      chan string

	// guarded by backend.mu
	closed bool
}

// send is called with backend.mu held for reading, so closeLocked cannot
// run concurrently.
func (l *memoryListener) send(payload string) {
	if l.closed {
		return
	}
	select {
	case l.ch <- payload:
	default:
	}
}

func (l *memoryListener) closeLocked() {
	if l.closed {
		return
	}
	l.closed = true
	close(l.ch)
}

func (l *memoryListener) Receive(ctx context.Context) (string, error) {
	select {
	case payload, ok := <-l.ch:
		if !ok {
			return "", ErrListenerClosed
		}
		return payload, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *memoryListener) Close(context.Context) error {
	l.backend.remove(l)
	return nil
}
