package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsConflict reports lock-wait timeouts, deadlocks and serialization
// failures. The caller may retry the whole transaction.
func IsConflict(err error) bool {
	switch code(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

func IsUniqueViolation(err error) bool {
	return code(err) == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return code(err) == codeForeignKeyViolation
}
