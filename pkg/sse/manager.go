package sse

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/skillhub/pkg/logger"
	"github.com/dmitrymomot/skillhub/pkg/pubsub"
)

// Subscriber is satisfied by *pubsub.Bridge.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, onMessage func(payload string)) (pubsub.Subscription, error)
}

// Manager opens SSE streams over a Subscriber.
type Manager struct {
	subscriber Subscriber
	heartbeat  time.Duration
	logger     *slog.Logger
	active     atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the Manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager.
func NewManager(subscriber Subscriber, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		subscriber: subscriber,
		heartbeat:  cfg.Heartbeat,
		logger:     slog.Default(),
	}
	if m.heartbeat <= 0 {
		m.heartbeat = DefaultHeartbeat
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StreamOption configures a single stream.
type StreamOption func(*Stream)

// WithOnClose registers a callback that runs once during teardown, after the
// heartbeat has stopped and before the subscription is released.
func WithOnClose(fn func()) StreamOption {
	return func(s *Stream) {
		s.onClose = fn
	}
}

// Active returns the number of open streams.
func (m *Manager) Active() int64 {
	return m.active.Load()
}

// Open starts a stream on channel. Headers are written only after the
// subscription succeeds, so a failed subscribe leaves w untouched. The stream
// is closed automatically when ctx ends.
func (m *Manager) Open(ctx context.Context, w http.ResponseWriter, channel string, opts ...StreamOption) (*Stream, error) {
	if !canFlush(w) {
		return nil, ErrStreamingUnsupported
	}

	writer := newFrameWriter(w)
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	s := &Stream{
		channel:       channel,
		writer:        writer,
		logger:        m.logger,
		stopHeartbeat: stopHeartbeat,
		heartbeatDone: make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Hold the writer until the opening ping is out so no data frame can
	// precede it.
	writer.mu.Lock()
	sub, err := m.subscriber.Subscribe(ctx, channel, s.forward)
	if err != nil {
		writer.mu.Unlock()
		stopHeartbeat()
		return nil, errors.Join(ErrSubscribeFailed, err)
	}
	s.sub = sub
	s.channel = sub.Channel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	pingErr := writer.writeLocked(pingFrame)
	writer.mu.Unlock()

	m.active.Add(1)
	m.logger.LogAttrs(ctx, slog.LevelDebug, "stream opened", logger.Channel(s.channel))

	onClose := s.onClose
	s.onClose = func() {
		m.active.Add(-1)
		if onClose != nil {
			onClose()
		}
		m.logger.LogAttrs(context.Background(), slog.LevelDebug, "stream closed", logger.Channel(s.channel))
	}

	if pingErr != nil {
		close(s.heartbeatDone)
	} else {
		go s.heartbeat(hbCtx, m.heartbeat)
	}

	context.AfterFunc(ctx, s.Close)

	return s, nil
}

// ChannelFunc resolves the channel for a stream request.
type ChannelFunc func(r *http.Request) (string, error)

// Handler serves a stream for the channel resolved by channelFn and blocks
// until the client disconnects. A resolve error answers 400, a subscribe
// failure 503, both before any frame is written.
func (m *Manager) Handler(channelFn ChannelFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		channel, err := channelFn(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s, err := m.Open(ctx, w, channel)
		if err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "stream open failed",
				logger.Channel(channel),
				logger.Error(err),
			)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		s.Wait(ctx)
	}
}

// canFlush walks Unwrap chains the same way http.ResponseController does.
func canFlush(w http.ResponseWriter) bool {
	for {
		switch t := w.(type) {
		case http.Flusher:
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = t.Unwrap()
		default:
			return false
		}
	}
}
