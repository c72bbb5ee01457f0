package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrVersionConflict is returned when a concurrent writer replaced the
	// document between read and write.
	ErrVersionConflict = errors.New("document version conflict")

	// ErrLockTimeout is returned when the document lock could not be taken
	// before the context ended.
	ErrLockTimeout = errors.New("document lock not acquired")
)

// WrapError wraps database errors with the failed operation. Serialization
// failures become ErrVersionConflict so Update retries them.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001": // serialization_failure
			return fmt.Errorf("%s: %w", operation, ErrVersionConflict)
		default:
			return fmt.Errorf("%s: database error [%s]: %w", operation, pgErr.Code, err)
		}
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// IsVersionConflict returns true if the error is an ErrVersionConflict error.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
