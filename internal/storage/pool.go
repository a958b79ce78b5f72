// Package storage implements C1, the connection & transaction manager: it
// owns the process-wide connection pool and exposes the single "run this
// closure inside a transaction" primitive every other component builds on.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Pool wraps a *sql.DB with a shared connection pool, bounded concurrency,
// and transient-failure retry on transaction acquisition.
type Pool struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the pool against dsn using driverName ("mysql" in production).
func Open(driverName, dsn string, logger *slog.Logger) (*Pool, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s pool: %w", driverName, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{db: db, logger: logger}, nil
}

// FromDB wraps an already-open *sql.DB for callers that opened the handle
// themselves.
func FromDB(db *sql.DB, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{db: db, logger: logger}
}

// DB exposes the underlying handle for read-only queries, which may use
// the pool directly rather than an explicit transaction.
func (p *Pool) DB() *sql.DB { return p.db }

// Logger exposes the pool's logger so repositories can log warnings (e.g.
// replay conflicts) without each needing its own logger wiring.
func (p *Pool) Logger() *slog.Logger { return p.logger }

// Close releases the pool.
func (p *Pool) Close() error { return p.db.Close() }

// transientRetryMaxElapsed bounds how long WithTx retries a connection
// acquisition before giving up.
const transientRetryMaxElapsed = 10 * time.Second

func newTransientBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = transientRetryMaxElapsed
	return bo
}

// isRetryableConnError reports whether err is a transient connection-level
// failure worth retrying, as opposed to a logical failure from inside the
// caller's closure (which must never be retried, since the closure may have
// non-idempotent side effects queued for commit).
func isRetryableConnError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "driver: bad connection"),
		strings.Contains(s, "invalid connection"),
		strings.Contains(s, "broken pipe"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "lost connection"),
		strings.Contains(s, "gone away"):
		return true
	}
	return false
}

// WithTx is C1's sole operation: it obtains a connection, begins a
// transaction, runs fn, and commits on success. On any error from fn a
// rollback is attempted; a rollback failure is logged but never masks the
// original error, the connection is always released, and the original
// failure is re-raised. Connection acquisition itself is retried with
// exponential backoff for transient errors, guarding against brief
// pool/network blips without spinning.
func (p *Pool) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	var tx *sql.Tx
	acquireErr := backoff.Retry(func() error {
		var beginErr error
		tx, beginErr = p.db.BeginTx(ctx, nil)
		if beginErr != nil {
			if isRetryableConnError(beginErr) {
				return beginErr
			}
			return backoff.Permanent(beginErr)
		}
		return nil
	}, backoff.WithContext(newTransientBackoff(), ctx))
	if acquireErr != nil {
		return fmt.Errorf("begin transaction: %w", acquireErr)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				p.logger.Warn("rollback after panic failed", "error", rbErr)
			}
			panic(r)
		}
	}()

	if runErr := fn(tx); runErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			p.logger.Warn("transaction rollback failed", "original_error", runErr, "rollback_error", rbErr)
		}
		return runErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit transaction: %w", commitErr)
	}
	return nil
}
