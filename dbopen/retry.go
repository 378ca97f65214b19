package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Event writes come from many session loops at once; a handful of short
// retries covers the WAL writer lock.
const (
	maxRetries  = 3
	retryBackoff = 100 * time.Millisecond
)

// IsBusy reports whether err indicates an SQLite BUSY condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx executes fn inside a transaction, retrying on SQLITE_BUSY with a
// linear backoff.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	_, err := withRetry(ctx, "RunTx", func() (struct{}, error) {
		return struct{}{}, txOnce(ctx, db, fn)
	})
	return err
}

// Exec executes a statement, retrying on SQLITE_BUSY with a linear backoff.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return withRetry(ctx, "Exec", func() (sql.Result, error) {
		return db.ExecContext(ctx, query, args...)
	})
}

func withRetry[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var zero T
	for i := range maxRetries {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !IsBusy(err) || i == maxRetries-1 {
			return zero, err
		}
		if err := sleepCtx(ctx, time.Duration(i+1)*retryBackoff); err != nil {
			return zero, fmt.Errorf("dbopen: %s: context cancelled during retry: %w", op, err)
		}
	}
	return zero, fmt.Errorf("dbopen: %s: max retries exceeded", op)
}

func txOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
