package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	// ErrNotFound indicates the record, or a row it references, does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the write would duplicate an existing key.
	ErrConflict = errors.New("record conflict")
)

// insertError maps constraint violations from an INSERT onto the package sentinels
// and wraps anything else with op.
func insertError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
