package pubsub

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/skillhub/pkg/pg"
)

// PostgresBackend implements Backend on LISTEN/NOTIFY.
// NOTIFY runs on the shared pool; every Listen opens its own connection that
// never returns to the pool, since a LISTEN is bound to the session that issued it.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a Postgres backend over pool.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// Notify implements Backend.
func (b *PostgresBackend) Notify(ctx context.Context, channel, payload string) error {
	_, err := b.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

// Listen implements Backend.
func (b *PostgresBackend) Listen(ctx context.Context, channel string) (Listener, error) {
	conn, err := pg.ConnectDedicated(ctx, b.pool)
	if err != nil {
		return nil, err
	}

	ident := pgx.Identifier{channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+ident); err != nil {
		return nil, errors.Join(err, conn.Close(context.Background()))
	}

	return &postgresListener{conn: conn, channel: channel, ident: ident}, nil
}

type postgresListener struct {
	conn    *pgx.Conn
	channel string
	ident   string
}

func (l *postgresListener) Receive(ctx context.Context) (string, error) {
	for {
		n, err := l.conn.WaitForNotification(ctx)
		if err != nil {
			return "", err
		}
		if n.Channel == l.channel {
			return n.Payload, nil
		}
	}
}

// Close issues UNLISTEN and closes the connection. A connection broken by a
// cancelled wait fails UNLISTEN; it is closed regardless and the server drops
// the registration with the session.
func (l *postgresListener) Close(ctx context.Context) error {
	if l.conn.IsClosed() {
		return nil
	}
	_, _ = l.conn.Exec(ctx, "UNLISTEN "+l.ident)
	return l.conn.Close(ctx)
}
