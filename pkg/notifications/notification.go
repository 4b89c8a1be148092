package notifications

import (
	"encoding/json"
	"slices"
	"time"
)

// EventType enumerates the events users can be notified about.
type EventType string

const (
	NewComment            EventType = "NEW_COMMENT"
	CommentReply          EventType = "COMMENT_REPLY"
	NewFollower           EventType = "NEW_FOLLOWER"
	SkillForked           EventType = "SKILL_FORKED"
	NewRelease            EventType = "NEW_RELEASE"
	SkillReaction         EventType = "SKILL_REACTION"
	ChangeRequestCreated  EventType = "CHANGE_REQUEST_CREATED"
	ChangeRequestApproved EventType = "CHANGE_REQUEST_APPROVED"
	ChangeRequestRejected EventType = "CHANGE_REQUEST_REJECTED"
)

var eventTypes = []EventType{
	NewComment,
	CommentReply,
	NewFollower,
	SkillForked,
	NewRelease,
	SkillReaction,
	ChangeRequestCreated,
	ChangeRequestApproved,
	ChangeRequestRejected,
}

// EventTypes returns every known event type.
func EventTypes() []EventType {
	return slices.Clone(eventTypes)
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return slices.Contains(eventTypes, t)
}

// Notification is one stored notification for one recipient.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	SkillID   *string         `json:"skill_id,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Preferences maps event types to an enabled flag.
type Preferences map[EventType]bool

// Enabled reports whether t is enabled. Missing keys are enabled.
func (p Preferences) Enabled(t EventType) bool {
	enabled, ok := p[t]
	return !ok || enabled
}
