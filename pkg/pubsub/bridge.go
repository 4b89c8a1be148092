package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/skillhub/pkg/logger"
)

// listenerCloseTimeout bounds UNLISTEN + connection close on teardown.
const listenerCloseTimeout = 5 * time.Second

// Bridge maps logical channel names onto a Backend.
type Bridge struct {
	backend Backend
	logger  *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger for the Bridge.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBridge creates a Bridge over backend.
func NewBridge(backend Backend, opts ...Option) *Bridge {
	b := &Bridge{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends payload on channel. Errors are logged and discarded.
func (b *Bridge) Publish(ctx context.Context, channel, payload string) {
	name := SanitizeChannel(channel)
	if name == "" {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "publish skipped: empty channel")
		return
	}

	if err := b.backend.Notify(ctx, name, payload); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "publish failed",
			logger.Channel(name),
			logger.Error(err),
		)
	}
}

// PublishJSON marshals v and publishes it on channel. Errors are logged and discarded.
func (b *Bridge) PublishJSON(ctx context.Context, channel string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.LogAttrs(ctx, slog.LevelError, "publish skipped: payload is not serializable",
			logger.Channel(channel),
			logger.Error(err),
		)
		return
	}
	b.Publish(ctx, channel, string(data))
}

// Subscribe opens a dedicated listener on channel and calls onMessage for each
// payload, in the order the backend delivers them, from a single goroutine.
// The subscription ends when Unsubscribe is called or ctx is done; either way
// the listener is released. onMessage must not call Unsubscribe.
func (b *Bridge) Subscribe(ctx context.Context, channel string, onMessage func(payload string)) (Subscription, error) {
	name := SanitizeChannel(channel)
	if name == "" {
		return nil, ErrEmptyChannel
	}

	listener, err := b.backend.Listen(ctx, name)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s := &subscription{
		channel:  name,
		listener: listener,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   b.logger,
	}

	go s.receiveLoop(loopCtx, onMessage)
	s.stopAfter = context.AfterFunc(ctx, func() { _ = s.shutdown() })

	return s, nil
}

// Subscription is a live attachment of one consumer to one channel.
type Subscription interface {
	// Channel returns the sanitized channel name.
	Channel() string
	// Done is closed once the receive loop has stopped, either because the
	// subscription was cancelled or because the listener failed.
	Done() <-chan struct{}
	// Unsubscribe stops the receive loop and closes the listener.
	// Idempotent; safe to call from cancellation paths and concurrently.
	Unsubscribe() error
}

type subscription struct {
	channel   string
	listener  Listener
	cancel    context.CancelFunc
	stopAfter func() bool
	done      chan struct{}
	logger    *slog.Logger

	once sync.Once
	err  error
}

func (s *subscription) Channel() string {
	return s.channel
}

func (s *subscription) Done() <-chan struct{} {
	return s.done
}

func (s *subscription) Unsubscribe() error {
	s.stopAfter()
	return s.shutdown()
}

func (s *subscription) shutdown() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done

		ctx, cancel := context.WithTimeout(context.Background(), listenerCloseTimeout)
		defer cancel()
		s.err = s.listener.Close(ctx)
	})
	return s.err
}

func (s *subscription) receiveLoop(ctx context.Context, onMessage func(string)) {
	defer close(s.done)

	for {
		payload, err := s.listener.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "listener stopped",
					logger.Channel(s.channel),
					logger.Error(err),
				)
			}
			return
		}
		onMessage(payload)
	}
}
