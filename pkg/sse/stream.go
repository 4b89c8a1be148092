package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/skillhub/pkg/logger"
	"github.com/dmitrymomot/skillhub/pkg/pubsub"
)

// Stream is one open SSE session bound to one channel.
type Stream struct {
	channel string
	writer  *frameWriter
	sub     pubsub.Subscription
	onClose func()
	logger  *slog.Logger

	stopHeartbeat context.CancelFunc
	heartbeatDone chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// Channel returns the sanitized channel the stream is attached to.
func (s *Stream) Channel() string {
	return s.sub.Channel()
}

// Done is closed once the stream has been torn down.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until ctx ends or the subscription stops, then closes the stream.
func (s *Stream) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.sub.Done():
	case <-s.done:
	}
	s.Close()
}

// Close tears the stream down: heartbeat first, then the close callback,
// then the subscription. Idempotent.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		defer close(s.done)
		defer func() {
			if err := s.sub.Unsubscribe(); err != nil {
				s.logger.LogAttrs(context.Background(), slog.LevelWarn, "stream unsubscribe failed",
					logger.Channel(s.channel),
					logger.Error(err),
				)
			}
		}()
		defer func() {
			if s.onClose != nil {
				s.onClose()
			}
		}()

		s.stopHeartbeat()
		<-s.heartbeatDone
	})
}

func (s *Stream) heartbeat(ctx context.Context, interval time.Duration) {
	defer close(s.heartbeatDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writer.ping(); err != nil {
				s.logger.LogAttrs(ctx, slog.LevelDebug, "heartbeat stopped",
					logger.Channel(s.channel),
					logger.Error(err),
				)
				return
			}
		}
	}
}

func (s *Stream) forward(payload string) {
	if err := s.writer.data(payload); err != nil {
		s.logger.LogAttrs(context.Background(), slog.LevelDebug, "frame dropped",
			logger.Channel(s.channel),
			logger.Error(err),
		)
		s.stopHeartbeat()
	}
}
