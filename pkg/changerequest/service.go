package changerequest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/skillhub/pkg/logger"
	"github.com/dmitrymomot/skillhub/pkg/notifications"
)

// Notifier is satisfied by *notifications.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, eventType notifications.EventType, recipientIDs []string, payload any, opts ...notifications.DispatchOption)
}

// SkillEvents is satisfied by *pubsub.TopicPublisher.
type SkillEvents interface {
	SkillEvent(ctx context.Context, skillID, kind string, data any)
}

const maxTitleLength = 200

// Service runs the change-request workflow.
type Service struct {
	store    Store
	notifier Notifier
	events   SkillEvents
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for created and resolved timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithSkillEvents publishes a followers event whenever an approval bumps a skill version.
func WithSkillEvents(events SkillEvents) Option {
	return func(s *Service) {
		s.events = events
	}
}

// NewService creates a Service. A nil notifier disables notifications.
func NewService(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a change request against an existing skill and notifies the
// skill owners other than the requester.
func (s *Service) Create(ctx context.Context, actor Actor, skillID, title, description string) (*ChangeRequest, error) {
	title = strings.TrimSpace(title)
	switch {
	case actor.UserID == "":
		return nil, ErrForbidden
	case skillID == "", title == "", len(title) > maxTitleLength:
		return nil, ErrInvalidInput
	}

	cr := ChangeRequest{
		ID:          s.newID(),
		SkillID:     skillID,
		RequesterID: actor.UserID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      StatusOpen,
		CreatedAt:   s.now().UTC(),
	}

	var owners []string
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		skill, err := tx.GetSkill(ctx, skillID)
		if err != nil {
			return err
		}
		owners = skill.OwnerIDs
		return tx.InsertChangeRequest(ctx, cr)
	})
	if err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(owners))
	for _, id := range owners {
		if id != actor.UserID {
			recipients = append(recipients, id)
		}
	}
	s.notify(ctx, notifications.ChangeRequestCreated, recipients, cr, 0)

	return &cr, nil
}

// Approve resolves an OPEN request as APPROVED and bumps the skill version
// by one. Caller must own the skill or be an admin.
func (s *Service) Approve(ctx context.Context, id string, actor Actor) (*Result, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}

	var res Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// The unlocked read only learns which skill row to lock.
		probe, err := tx.GetChangeRequest(ctx, id, false)
		if err != nil {
			return err
		}

		skill, err := tx.LockSkill(ctx, probe.SkillID)
		if err != nil {
			return err
		}

		// Status must be read after the skill lock is held.
		cr, err := tx.GetChangeRequest(ctx, id, true)
		if err != nil {
			return err
		}

		if err := authorizeResolver(actor, skill); err != nil {
			return err
		}

		if err := s.resolve(cr, ActionApprove, actor); err != nil {
			return err
		}
		if err := tx.UpdateChangeRequest(ctx, *cr); err != nil {
			return err
		}

		version, err := tx.IncrementSkillVersion(ctx, skill.ID)
		if err != nil {
			return err
		}

		res = Result{ChangeRequest: *cr, SkillVersion: version}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "change request approved",
		logger.ChangeRequestID(id),
		logger.SkillID(res.ChangeRequest.SkillID),
		logger.UserID(actor.UserID),
		slog.Int("version", res.SkillVersion),
	)

	s.notify(ctx, notifications.ChangeRequestApproved, []string{res.ChangeRequest.RequesterID}, res.ChangeRequest, res.SkillVersion)
	if s.events != nil {
		s.events.SkillEvent(ctx, res.ChangeRequest.SkillID, string(notifications.NewRelease), map[string]any{
			"change_request_id": id,
			"version":           res.SkillVersion,
		})
	}

	return &res, nil
}

// Reject resolves an OPEN request as REJECTED. Caller must own the skill or
// be an admin. No shared counter changes, so only the request row is locked.
func (s *Service) Reject(ctx context.Context, id string, actor Actor) (*Result, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}

	var res Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cr, err := tx.GetChangeRequest(ctx, id, true)
		if err != nil {
			return err
		}

		skill, err := tx.GetSkill(ctx, cr.SkillID)
		if err != nil {
			return err
		}

		if err := authorizeResolver(actor, skill); err != nil {
			return err
		}

		if err := s.resolve(cr, ActionReject, actor); err != nil {
			return err
		}
		if err := tx.UpdateChangeRequest(ctx, *cr); err != nil {
			return err
		}

		res = Result{ChangeRequest: *cr}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notifications.ChangeRequestRejected, []string{res.ChangeRequest.RequesterID}, res.ChangeRequest, 0)

	return &res, nil
}

// Withdraw resolves an OPEN request as WITHDRAWN. Caller must be the
// requester or an admin. Resolver fields stay empty and nobody is notified.
func (s *Service) Withdraw(ctx context.Context, id string, actor Actor) (*Result, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}

	var res Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cr, err := tx.GetChangeRequest(ctx, id, true)
		if err != nil {
			return err
		}

		if !actor.IsAdmin && (actor.UserID == "" || actor.UserID != cr.RequesterID) {
			return ErrForbidden
		}

		next, err := lifecycle.Fire(cr.Status, ActionWithdraw)
		if err != nil {
			return invalidState(cr.Status, ActionWithdraw)
		}
		cr.Status = next

		if err := tx.UpdateChangeRequest(ctx, *cr); err != nil {
			return err
		}

		res = Result{ChangeRequest: *cr}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// Get returns a change request.
func (s *Service) Get(ctx context.Context, id string) (*ChangeRequest, error) {
	return s.store.Get(ctx, id)
}

// ListBySkill returns the skill's change requests, optionally filtered by status.
func (s *Service) ListBySkill(ctx context.Context, skillID string, status Status) ([]ChangeRequest, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidInput
	}
	return s.store.ListBySkill(ctx, skillID, status)
}

func authorizeResolver(actor Actor, skill *Skill) error {
	if actor.IsAdmin || skill.IsOwner(actor.UserID) {
		return nil
	}
	return ErrForbidden
}

func (s *Service) resolve(cr *ChangeRequest, action Action, actor Actor) error {
	next, err := lifecycle.Fire(cr.Status, action)
	if err != nil {
		return invalidState(cr.Status, action)
	}

	now := s.now().UTC()
	resolver := actor.UserID
	cr.Status = next
	cr.ResolvedByID = &resolver
	cr.ResolvedAt = &now
	return nil
}

func (s *Service) notify(ctx context.Context, eventType notifications.EventType, recipients []string, cr ChangeRequest, version int) {
	if s.notifier == nil || len(recipients) == 0 {
		return
	}

	payload := map[string]any{
		"change_request_id": cr.ID,
		"skill_id":          cr.SkillID,
		"title":             cr.Title,
		"status":            cr.Status,
	}
	if cr.ResolvedByID != nil {
		payload["resolved_by_id"] = *cr.ResolvedByID
	}
	if version > 0 {
		payload["version"] = version
	}

	s.notifier.Dispatch(ctx, eventType, recipients, payload, notifications.WithSkillID(cr.SkillID))
}
