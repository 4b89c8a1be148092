package changerequest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/skillhub/pkg/pg"
)

const changeRequestColumns = `id, skill_id, requester_id, title, description, status, resolved_by_id, resolved_at, created_at`

// PostgresStore is the pgx-backed Store. Transactions run at READ COMMITTED;
// LockSkill and GetChangeRequest(forUpdate) use SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore over pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*ChangeRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id = $1`, id)
	return scanChangeRequest(row)
}

func (s *PostgresStore) ListBySkill(ctx context.Context, skillID string, status Status) ([]ChangeRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+changeRequestColumns+` FROM change_requests
		 WHERE skill_id = $1 AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id DESC`,
		skillID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("query change requests: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChangeRequest, error) {
		cr, err := scanChangeRequest(row)
		if err != nil {
			return ChangeRequest{}, err
		}
		return *cr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan change requests: %w", err)
	}
	return out, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) GetChangeRequest(ctx context.Context, id string, forUpdate bool) (*ChangeRequest, error) {
	query := `SELECT ` + changeRequestColumns + ` FROM change_requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanChangeRequest(t.tx.QueryRow(ctx, query, id))
}

func (t *postgresTx) GetSkill(ctx context.Context, id string) (*Skill, error) {
	return t.loadSkill(ctx, `SELECT id, version FROM skills WHERE id = $1`, id)
}

func (t *postgresTx) LockSkill(ctx context.Context, id string) (*Skill, error) {
	return t.loadSkill(ctx, `SELECT id, version FROM skills WHERE id = $1 FOR UPDATE`, id)
}

func (t *postgresTx) loadSkill(ctx context.Context, query, id string) (*Skill, error) {
	var sk Skill
	if err := t.tx.QueryRow(ctx, query, id).Scan(&sk.ID, &sk.Version); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load skill: %w", err)
	}

	rows, err := t.tx.Query(ctx, `SELECT user_id FROM skill_owners WHERE skill_id = $1 ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("load skill owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan skill owners: %w", err)
	}
	sk.OwnerIDs = owners
	return &sk, nil
}

func (t *postgresTx) InsertChangeRequest(ctx context.Context, cr ChangeRequest) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO change_requests (`+changeRequestColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		cr.ID, cr.SkillID, cr.RequesterID, cr.Title, cr.Description, string(cr.Status),
		cr.ResolvedByID, cr.ResolvedAt, cr.CreatedAt,
	)
	switch {
	case err == nil:
		return nil
	case pg.IsForeignKeyViolationError(err):
		return ErrNotFound
	case pg.IsDuplicateKeyError(err):
		return ErrDuplicateID
	default:
		return fmt.Errorf("insert change request: %w", err)
	}
}

func (t *postgresTx) UpdateChangeRequest(ctx context.Context, cr ChangeRequest) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE change_requests SET status = $2, resolved_by_id = $3, resolved_at = $4 WHERE id = $1`,
		cr.ID, string(cr.Status), cr.ResolvedByID, cr.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update change request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) IncrementSkillVersion(ctx context.Context, skillID string) (int, error) {
	var version int
	err := t.tx.QueryRow(ctx,
		`UPDATE skills SET version = version + 1, updated_at = now() WHERE id = $1 RETURNING version`,
		skillID,
	).Scan(&version)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment skill version: %w", err)
	}
	return version, nil
}

func scanChangeRequest(row pgx.Row) (*ChangeRequest, error) {
	var (
		cr     ChangeRequest
		status string
	)
	err := row.Scan(&cr.ID, &cr.SkillID, &cr.RequesterID, &cr.Title, &cr.Description, &status,
		&cr.ResolvedByID, &cr.ResolvedAt, &cr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cr.Status = Status(status)
	return &cr, nil
}
