package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection  = errors.New("failed to open db connection")
	ErrFailedToOpenDedicatedConn = errors.New("failed to open dedicated db connection")
	ErrEmptyConnectionString     = errors.New("empty postgres connection string, use PG_CONN_URL env var")
	ErrHealthcheckFailed         = errors.New("healthcheck failed, connection is not available")
	ErrFailedToParseDBConfig     = errors.New("failed to parse db config")
	ErrFailedToApplyMigrations   = errors.New("failed to apply migrations")
	ErrMigrationsNotProvided     = errors.New("migrations filesystem not provided")
	ErrFailedToBeginTx           = errors.New("failed to begin transaction")
	ErrFailedToCommitTx          = errors.New("failed to commit transaction")
)

// IsNotFoundError reports whether err is pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, "23505")
}

// IsForeignKeyViolationError detects referential integrity violations (SQLSTATE 23503).
func IsForeignKeyViolationError(err error) bool {
	return hasCode(err, "23503")
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
