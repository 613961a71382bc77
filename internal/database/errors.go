package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// ErrNotFound is returned by Find when no row has the requested id.
var ErrNotFound = errors.New("record not found")

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// IsBusy reports whether err means another connection holds the write lock.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration // doubled after every attempt
}

// DefaultRetryPolicy retries up to five times starting at 100ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: 100 * time.Millisecond}
}

// WithRetry runs fn until it succeeds or fails with something other than a
// busy error. Context cancellation stops the backoff early.
func WithRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsBusy(err) {
			return err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}

		delay := policy.Delay * time.Duration(1<<attempt)
		logging.Debug("Database busy, retrying in %v (attempt %d/%d)", delay, attempt+1, policy.MaxAttempts)
		metrics.DBBusyRetries.Inc()

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database busy after %d attempts: %w", policy.MaxAttempts, err)
}
