package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// StorageMessage returns the driver message for err, without wrapping
// prefixes, for reporting back to users.
func StorageMessage(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Detail != "" {
			return pqErr.Message + ": " + pqErr.Detail
		}
		return pqErr.Message
	}
	return err.Error()
}

// IsConnectionLost reports errors after which further statements on the same
// pool are pointless.
func IsConnectionLost(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}
