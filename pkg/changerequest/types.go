package changerequest

import (
	"slices"
	"time"

	"github.com/dmitrymomot/skillhub/pkg/statemachine"
)

// Status is the lifecycle state of a change request.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusWithdrawn Status = "WITHDRAWN"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// Action is a transition trigger.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionWithdraw Action = "withdraw"
)

var lifecycle = statemachine.New(
	statemachine.Transition[Status, Action]{From: StatusOpen, Event: ActionApprove, To: StatusApproved},
	statemachine.Transition[Status, Action]{From: StatusOpen, Event: ActionReject, To: StatusRejected},
	statemachine.Transition[Status, Action]{From: StatusOpen, Event: ActionWithdraw, To: StatusWithdrawn},
)

// ChangeRequest is a proposed change to a skill.
type ChangeRequest struct {
	ID           string     `json:"id"`
	SkillID      string     `json:"skill_id"`
	RequesterID  string     `json:"requester_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       Status     `json:"status"`
	ResolvedByID *string    `json:"resolved_by_id,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Skill is the part of a skill the workflow reads and mutates.
type Skill struct {
	ID       string
	OwnerIDs []string
	Version  int
}

// IsOwner reports whether userID owns the skill.
func (s Skill) IsOwner(userID string) bool {
	return userID != "" && slices.Contains(s.OwnerIDs, userID)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// Result is the outcome of a resolved change request.
type Result struct {
	ChangeRequest ChangeRequest `json:"change_request"`
	// SkillVersion is the new skill version after an approval, 0 otherwise.
	SkillVersion int `json:"skill_version,omitempty"`
}
