package changerequest

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrDuplicateID is returned when inserting a change request whose id exists.
var ErrDuplicateID = errors.New("change request id already exists")

// MemoryStore is an in-process Store. It emulates row locks with one mutex
// per skill and per change request, held until the transaction ends, and
// stages writes so a failed transaction leaves no trace.
type MemoryStore struct {
	mu       sync.Mutex
	skills   map[string]Skill
	requests map[string]ChangeRequest
	order    []string // request ids in insertion order

	rowLocks map[string]*sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		skills:   make(map[string]Skill),
		requests: make(map[string]ChangeRequest),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

// PutSkill inserts or replaces a skill. Skills are owned by the catalog, not
// by this workflow, so this is the seeding entry point.
func (s *MemoryStore) PutSkill(skill Skill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	skill.OwnerIDs = slices.Clone(skill.OwnerIDs)
	s.skills[skill.ID] = skill
}

// Skill returns the committed state of a skill.
func (s *MemoryStore) Skill(id string) (Skill, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sk, ok := s.skills[id]
	sk.OwnerIDs = slices.Clone(sk.OwnerIDs)
	return sk, ok
}

func (s *MemoryStore) Get(_ context.Context, id string) (*ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cr, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &cr, nil
}

func (s *MemoryStore) ListBySkill(_ context.Context, skillID string, status Status) ([]ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChangeRequest, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		cr := s.requests[s.order[i]]
		if cr.SkillID != skillID || (status != "" && cr.Status != status) {
			continue
		}
		out = append(out, cr)
	}
	slices.SortStableFunc(out, func(a, b ChangeRequest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{
		store:    s,
		held:     make(map[string]*sync.Mutex),
		requests: make(map[string]ChangeRequest),
		versions: make(map[string]int),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()
	return nil
}

func (s *MemoryStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[key] = l
	}
	return l
}

type memoryTx struct {
	store *MemoryStore

	held     map[string]*sync.Mutex
	lockSeq  []string
	requests map[string]ChangeRequest // staged inserts and updates
	inserted []string
	versions map[string]int // staged skill versions
}

func (t *memoryTx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	l := t.store.rowLock(key)
	l.Lock()
	t.held[key] = l
	t.lockSeq = append(t.lockSeq, key)
}

func (t *memoryTx) release() {
	for i := len(t.lockSeq) - 1; i >= 0; i-- {
		t.held[t.lockSeq[i]].Unlock()
	}
	clear(t.held)
	t.lockSeq = nil
}

func (t *memoryTx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.inserted {
		s.order = append(s.order, id)
	}
	for id, cr := range t.requests {
		s.requests[id] = cr
	}
	for id, v := range t.versions {
		sk := s.skills[id]
		sk.Version = v
		s.skills[id] = sk
	}
}

func (t *memoryTx) request(id string) (ChangeRequest, bool) {
	if cr, ok := t.requests[id]; ok {
		return cr, true
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	cr, ok := t.store.requests[id]
	return cr, ok
}

func (t *memoryTx) skill(id string) (Skill, bool) {
	t.store.mu.Lock()
	sk, ok := t.store.skills[id]
	t.store.mu.Unlock()
	if !ok {
		return Skill{}, false
	}
	if v, staged := t.versions[id]; staged {
		sk.Version = v
	}
	sk.OwnerIDs = slices.Clone(sk.OwnerIDs)
	return sk, true
}

func (t *memoryTx) GetChangeRequest(_ context.Context, id string, forUpdate bool) (*ChangeRequest, error) {
	if forUpdate {
		t.lock("change_request:" + id)
	}
	cr, ok := t.request(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &cr, nil
}

func (t *memoryTx) GetSkill(_ context.Context, id string) (*Skill, error) {
	sk, ok := t.skill(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &sk, nil
}

func (t *memoryTx) LockSkill(_ context.Context, id string) (*Skill, error) {
	t.lock("skill:" + id)
	sk, ok := t.skill(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &sk, nil
}

func (t *memoryTx) InsertChangeRequest(_ context.Context, cr ChangeRequest) error {
	if _, ok := t.skill(cr.SkillID); !ok {
		return ErrNotFound
	}
	if _, ok := t.request(cr.ID); ok {
		return ErrDuplicateID
	}
	t.requests[cr.ID] = cr
	t.inserted = append(t.inserted, cr.ID)
	return nil
}

func (t *memoryTx) UpdateChangeRequest(_ context.Context, cr ChangeRequest) error {
	t.lock("change_request:" + cr.ID)
	current, ok := t.request(cr.ID)
	if !ok {
		return ErrNotFound
	}
	current.Status = cr.Status
	current.ResolvedByID = cr.ResolvedByID
	current.ResolvedAt = cr.ResolvedAt
	t.requests[cr.ID] = current
	return nil
}

func (t *memoryTx) IncrementSkillVersion(_ context.Context, skillID string) (int, error) {
	t.lock("skill:" + skillID)
	sk, ok := t.skill(skillID)
	if !ok {
		return 0, ErrNotFound
	}
	t.versions[skillID] = sk.Version + 1
	return sk.Version + 1, nil
}
