package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/careops/scheduling/internal/errors"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func TestNewTxManager(t *testing.T) {
	db, _ := newMockDB(t)

	txManager := NewTxManager(db)
	assert.NotNil(t, txManager)
	assert.IsType(t, &sqlTxManager{}, txManager)
}

func TestWithTx_Success(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	txManager := NewTxManager(db)

	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		tx := ctx.Value(txKey{})
		assert.NotNil(t, tx)
		assert.IsType(t, &sql.Tx{}, tx)
		return nil
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	txManager := NewTxManager(db)

	testError := assert.AnError
	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		return testError
	})

	assert.Equal(t, testError, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_TransientClassification(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	txManager := NewTxManager(db)

	deadlock := &pq.Error{Code: "40P01", Message: "deadlock detected"}
	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		return deadlock
	})

	assert.ErrorIs(t, err, apperrors.ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTx_WithTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	txManager := NewTxManager(db)

	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		querier := GetTx(ctx, db)
		assert.NotNil(t, querier)
		assert.IsType(t, &sql.Tx{}, querier)
		assert.True(t, InTx(ctx))
		return nil
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTx_WithoutTransaction(t *testing.T) {
	db, _ := newMockDB(t)

	querier := GetTx(context.Background(), db)
	assert.NotNil(t, querier)
	assert.IsType(t, &sql.DB{}, querier)
	assert.False(t, InTx(context.Background()))
}

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"lock timeout", &pq.Error{Code: "55P03"}, true},
		{"statement timeout", &pq.Error{Code: "57014"}, true},
		{"connection failure class", &pq.Error{Code: "08006"}, true},
		{"insufficient resources class", &pq.Error{Code: "53300"}, true},
		{"unique violation stays untouched", &pq.Error{Code: "23505"}, false},
		{"plain error stays untouched", assert.AnError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyStoreError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.transient, apperrors.Is(got, apperrors.ErrTransient))
		})
	}
}
