// Package database provides database connection management and utilities.
package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// txKey is a context key type for storing database transactions.
type txKey struct{}

// Querier represents a database query executor (either *sql.DB or *sql.Tx).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager manages database transactions.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// sqlTxManager implements TxManager for SQL databases.
type sqlTxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager for the given database.
func NewTxManager(db *sql.DB) TxManager {
	return &sqlTxManager{db: db}
}

// WithTx executes the function within a database transaction. Errors that the
// store classifies as retryable (serialization failures, deadlocks, lock or
// statement timeouts) are surfaced as ErrTransient so callers know the whole
// operation can be retried safely.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyStoreError(err)
	}

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return classifyStoreError(rbErr)
		}
		return classifyStoreError(err)
	}

	if err := tx.Commit(); err != nil {
		return classifyStoreError(err)
	}

	return nil
}

// GetTx retrieves a transaction from context, or returns the DB connection.
func GetTx(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// InTx reports whether the context carries an active transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

// transientPgCodes are PostgreSQL error classes/codes for which retrying the
// whole transaction is safe: serialization failures, deadlocks, lock timeouts,
// statement cancellation and connection-level failures.
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement_timeout)
}

// classifyStoreError maps infrastructure failures to ErrTransient while leaving
// domain errors untouched.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if transientPgCodes[code] || strings.HasPrefix(code, "08") || strings.HasPrefix(code, "53") {
			return apperrors.Wrap(apperrors.ErrTransient, err.Error())
		}
		return err
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrTransient, err.Error())
	}

	return err
}
