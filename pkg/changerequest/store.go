package changerequest

import "context"

// Store is the transactional data store behind Service.
type Store interface {
	// InTx runs fn in one transaction. fn returning an error rolls back and
	// the error is returned unchanged. Row locks taken inside fn are held
	// until InTx returns.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Get returns a change request outside of any transaction.
	Get(ctx context.Context, id string) (*ChangeRequest, error)

	// ListBySkill returns the skill's change requests, newest first. An empty
	// status lists all of them.
	ListBySkill(ctx context.Context, skillID string, status Status) ([]ChangeRequest, error)
}

// Tx is the per-transaction view of the store. Missing rows yield ErrNotFound.
type Tx interface {
	// GetChangeRequest reads a change request, taking its row lock when forUpdate is set.
	GetChangeRequest(ctx context.Context, id string, forUpdate bool) (*ChangeRequest, error)

	// GetSkill reads a skill without locking it.
	GetSkill(ctx context.Context, id string) (*Skill, error)

	// LockSkill takes the exclusive row lock on the skill and returns its
	// current state.
	LockSkill(ctx context.Context, id string) (*Skill, error)

	InsertChangeRequest(ctx context.Context, cr ChangeRequest) error

	// UpdateChangeRequest writes status and resolver fields.
	UpdateChangeRequest(ctx context.Context, cr ChangeRequest) error

	// IncrementSkillVersion adds exactly one to the skill version and returns the new value.
	IncrementSkillVersion(ctx context.Context, skillID string) (int, error)
}
