package database

import (
	"context"
	"database/sql"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// ErrNoTransaction is returned when a transaction-scoped lock is requested
// outside an active transaction. The lock has no meaning without one: it is
// released by the store when the owning transaction commits or rolls back.
var ErrNoTransaction = apperrors.New("advisory lock requires an active transaction")

// AcquireXactLock acquires a PostgreSQL transaction-scoped advisory lock keyed
// by namespace and key. The call blocks until the lock is granted and the lock
// is released automatically when the transaction in ctx ends; there is no
// explicit unlock. Callers contending for the same (namespace, key) serialize,
// callers for different keys proceed in parallel.
func AcquireXactLock(ctx context.Context, db *sql.DB, namespace, key string) error {
	if !InTx(ctx) {
		return ErrNoTransaction
	}

	querier := GetTx(ctx, db)

	// hashtextextended folds the composite key into the bigint keyspace
	// pg_advisory_xact_lock expects.
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1 || '/' || $2, 0))`

	if _, err := querier.ExecContext(ctx, query, namespace, key); err != nil {
		return classifyStoreError(err)
	}

	return nil
}
