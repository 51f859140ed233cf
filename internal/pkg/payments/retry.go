package payments

import (
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	conflictMaxAttempts    = 4
	conflictInitialBackoff = 50 * time.Millisecond
)

// retryOnConflict runs fn, retrying up to three times after a transient
// write conflict with exponential backoff (50ms, 100ms, 200ms) before each
// retry. Every other error, and
// conflict errors after the final attempt, propagate to the caller so the
// webhook entry point can answer 500 and let the provider redeliver.
func retryOnConflict(fn func() error) error {
	backoff := conflictInitialBackoff
	var err error
	for attempt := 0; attempt < conflictMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = fn(); err == nil || !isWriteConflict(err) {
			return err
		}
	}
	return err
}

// isWriteConflict reports whether err is a concurrency-control rejection
// worth retrying: a MySQL deadlock (1213) or lock wait timeout (1205), or
// the in-process sentinel used by fakes.
func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errWriteConflict) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}
