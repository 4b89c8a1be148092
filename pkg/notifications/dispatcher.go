package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/skillhub/pkg/logger"
)

// Dispatcher filters, persists and delivers notifications.
type Dispatcher struct {
	storage   Storage
	deliverer Deliverer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for the Dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a Dispatcher. A nil deliverer disables real-time delivery.
func NewDispatcher(storage Storage, deliverer Deliverer, opts ...Option) *Dispatcher {
	if deliverer == nil {
		deliverer = NoOpDeliverer{}
	}
	d := &Dispatcher{
		storage:   storage,
		deliverer: deliverer,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type dispatchOptions struct {
	skillID *string
}

// DispatchOption decorates the notifications created by one Dispatch call.
type DispatchOption func(*dispatchOptions)

// WithSkillID links the notifications to a skill.
func WithSkillID(id string) DispatchOption {
	return func(o *dispatchOptions) {
		if id != "" {
			o.skillID = &id
		}
	}
}

// Dispatch notifies every recipient that has not disabled eventType.
// Errors are logged and discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType EventType, recipientIDs []string, payload any, opts ...DispatchOption) {
	recipients := dedupe(recipientIDs)
	if len(recipients) == 0 {
		return
	}

	var o dispatchOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := encodePayload(payload)
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "dispatch skipped: payload is not serializable",
			logger.EventType(string(eventType)),
			logger.Error(err),
		)
		return
	}

	prefs, err := d.storage.Preferences(ctx, recipients)
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "dispatch skipped: preference lookup failed",
			logger.EventType(string(eventType)),
			logger.Count(len(recipients)),
			logger.Error(err),
		)
		return
	}

	now := d.now().UTC()
	batch := make([]Notification, 0, len(recipients))
	for _, userID := range recipients {
		if !prefs[userID].Enabled(eventType) {
			continue
		}
		batch = append(batch, Notification{
			ID:        d.newID(),
			UserID:    userID,
			Type:      eventType,
			Payload:   data,
			SkillID:   o.skillID,
			CreatedAt: now,
		})
	}
	if len(batch) == 0 {
		return
	}

	if err := d.storage.CreateBatch(ctx, batch); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "dispatch failed: notifications not stored",
			logger.EventType(string(eventType)),
			logger.Count(len(batch)),
			logger.Error(err),
		)
		return
	}

	for _, n := range batch {
		if err := d.deliverer.Deliver(ctx, n); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "notification stored but not delivered",
				logger.NotificationID(n.ID),
				logger.UserID(n.UserID),
				logger.Error(err),
			)
		}
	}
}

// List returns the user's notifications.
func (d *Dispatcher) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	return d.storage.List(ctx, userID, opts)
}

// MarkRead marks the given notifications of the user as read.
func (d *Dispatcher) MarkRead(ctx context.Context, userID string, ids ...string) error {
	return d.storage.MarkRead(ctx, userID, ids...)
}

// MarkAllRead marks every notification of the user as read.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) error {
	return d.storage.MarkAllRead(ctx, userID)
}

// CountUnread returns the user's unread count.
func (d *Dispatcher) CountUnread(ctx context.Context, userID string) (int, error) {
	return d.storage.CountUnread(ctx, userID)
}

// SetPreferences merges prefs into the user's preferences. Unknown event
// types are rejected before anything is stored.
func (d *Dispatcher) SetPreferences(ctx context.Context, userID string, prefs Preferences) error {
	for t := range prefs {
		if !t.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownEventType, t)
		}
	}
	return d.storage.SetPreferences(ctx, userID, prefs)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, ErrInvalidPayload
		}
		return p, nil
	default:
		return json.Marshal(p)
	}
}
