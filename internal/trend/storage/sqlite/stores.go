// Package sqlite persists pipeline runs, per-year composite summaries,
// and selected disturbance events.
package sqlite

import (
	"strings"
	"time"
)

// retryOnBusy retries fn a few times when sqlite reports the database is
// locked by another writer. Non-busy errors fail immediately.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	backoff := 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil || !isSQLiteBusy(err) {
			return err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// isSQLiteBusy reports whether err looks like a SQLITE_BUSY/locked error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
