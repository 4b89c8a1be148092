package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/skillhub/pkg/pg"
)

// PostgresStorage keeps notifications in the notifications table and
// preferences in users.notification_preferences (jsonb).
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a PostgresStorage over pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) Preferences(ctx context.Context, userIDs []string) (map[string]Preferences, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, notification_preferences FROM users
		 WHERE id = ANY($1) AND notification_preferences IS NOT NULL`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Preferences, len(userIDs))
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan preferences: %w", err)
		}
		var p Preferences
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode preferences of %s: %w", id, err)
		}
		out[id] = p
	}
	return out, rows.Err()
}

func (s *PostgresStorage) SetPreferences(ctx context.Context, userID string, prefs Preferences) error {
	for t := range prefs {
		if !t.Valid() {
			return ErrUnknownEventType
		}
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO users (id, notification_preferences) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE
		 SET notification_preferences = COALESCE(users.notification_preferences, '{}'::jsonb) || EXCLUDED.notification_preferences`,
		userID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("store preferences: %w", err)
	}
	return nil
}

var notificationColumns = []string{"id", "user_id", "type", "payload", "skill_id", "read", "created_at"}

func (s *PostgresStorage) CreateBatch(ctx context.Context, notifs []Notification) error {
	for _, n := range notifs {
		if err := validate(n); err != nil {
			return err
		}
	}

	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"notifications"},
			notificationColumns,
			pgx.CopyFromSlice(len(notifs), func(i int) ([]any, error) {
				n := notifs[i]
				return []any{n.ID, n.UserID, string(n.Type), string(n.Payload), n.SkillID, n.Read, n.CreatedAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		return nil
	})
}

func (s *PostgresStorage) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.OnlyUnread {
		where = append(where, "read = false")
	}
	if len(opts.Types) > 0 {
		types := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			types[i] = string(t)
		}
		where = append(where, "type = ANY("+arg(types)+")")
	}
	if opts.Since != nil {
		where = append(where, "created_at >= "+arg(*opts.Since))
	}

	query := "SELECT " + strings.Join(notificationColumns, ", ") +
		" FROM notifications WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET " + arg(opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notification, error) {
		var (
			n         Notification
			typ       string
			payload   []byte
			createdAt time.Time
		)
		if err := row.Scan(&n.ID, &n.UserID, &typ, &payload, &n.SkillID, &n.Read, &createdAt); err != nil {
			return n, err
		}
		n.Type = EventType(typ)
		n.Payload = payload
		n.CreatedAt = createdAt
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStorage) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND id = ANY($2)`,
		userID, ids,
	)
	return err
}

func (s *PostgresStorage) MarkAllRead(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND read = false`,
		userID,
	)
	return err
}

func (s *PostgresStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND read = false`,
		userID,
	).Scan(&count)
	return count, err
}
