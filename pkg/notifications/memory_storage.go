package notifications

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStorage is an in-process Storage for tests and single-node development.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[string][]Notification // userID -> notifications, insertion order
	preferences   map[string]Preferences
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string][]Notification),
		preferences:   make(map[string]Preferences),
	}
}

func (s *MemoryStorage) Preferences(_ context.Context, userIDs []string) (map[string]Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Preferences, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.preferences[id]; ok {
			out[id] = maps.Clone(p)
		}
	}
	return out, nil
}

func (s *MemoryStorage) SetPreferences(_ context.Context, userID string, prefs Preferences) error {
	for t := range prefs {
		if !t.Valid() {
			return ErrUnknownEventType
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.preferences[userID]
	if !ok {
		current = make(Preferences, len(prefs))
		s.preferences[userID] = current
	}
	maps.Copy(current, prefs)
	return nil
}

func (s *MemoryStorage) CreateBatch(_ context.Context, notifs []Notification) error {
	for _, n := range notifs {
		if err := validate(n); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifs {
		s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	}
	return nil
}

func (s *MemoryStorage) List(_ context.Context, userID string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.notifications[userID]
	out := make([]Notification, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		n := all[i]
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, n.Type) {
			continue
		}
		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		out = append(out, n)
	}

	// Stable so equal timestamps keep newest-inserted first.
	slices.SortStableFunc(out, func(a, b Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []Notification{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i := range list {
		if slices.Contains(ids, list[i].ID) {
			list[i].Read = true
		}
	}
	return nil
}

func (s *MemoryStorage) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i := range list {
		list[i].Read = true
	}
	return nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
