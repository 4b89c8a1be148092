package notifications

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidNotification = errors.New("notifications: invalid notification")
	ErrUnknownEventType    = errors.New("notifications: unknown event type")
	ErrInvalidPayload      = errors.New("notifications: payload is not valid JSON")
)

// Storage persists notifications and per-user preferences.
type Storage interface {
	// Preferences returns the stored preferences for each of userIDs.
	// Users without stored preferences are absent from the result.
	Preferences(ctx context.Context, userIDs []string) (map[string]Preferences, error)

	// SetPreferences merges prefs into the user's stored preferences.
	SetPreferences(ctx context.Context, userID string, prefs Preferences) error

	// CreateBatch stores all notifications in one transaction, or none.
	CreateBatch(ctx context.Context, notifs []Notification) error

	// List returns the user's notifications, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error)

	// MarkRead flips read on the given notifications. Ids that do not belong
	// to the user are ignored.
	MarkRead(ctx context.Context, userID string, ids ...string) error

	// MarkAllRead flips read on every notification of the user.
	MarkAllRead(ctx context.Context, userID string) error

	// CountUnread returns the number of unread notifications of the user.
	CountUnread(ctx context.Context, userID string) (int, error)
}

// ListOptions filters and paginates List.
type ListOptions struct {
	Limit      int // 0 means no limit
	Offset     int
	OnlyUnread bool
	Types      []EventType
	Since      *time.Time
}

func validate(n Notification) error {
	if n.ID == "" || n.UserID == "" {
		return ErrInvalidNotification
	}
	if !n.Type.Valid() {
		return errors.Join(ErrInvalidNotification, ErrUnknownEventType)
	}
	return nil
}
