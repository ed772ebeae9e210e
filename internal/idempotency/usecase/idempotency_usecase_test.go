package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/careops/scheduling/internal/idempotency/domain"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// MockRecordRepository is a mock implementation of RecordRepository
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) InsertPending(ctx context.Context, record *domain.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordRepository) GetByKey(
	ctx context.Context,
	tenantID uuid.UUID,
	key string,
) (*domain.Record, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Record), args.Error(1)
}

func (m *MockRecordRepository) Complete(
	ctx context.Context,
	id uuid.UUID,
	responseStatus int,
	responseBody string,
) error {
	args := m.Called(ctx, id, responseStatus, responseBody)
	return args.Error(0)
}

func (m *MockRecordRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRecordRepository) Retry(ctx context.Context, record *domain.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRecordRepository) SweepStale(
	ctx context.Context,
	pendingTTL time.Duration,
	limit int,
) (int64, error) {
	args := m.Called(ctx, pendingTTL, limit)
	return args.Get(0).(int64), args.Error(1)
}

func testConfig() Config {
	return Config{
		PendingTTL:    5 * time.Minute,
		SweepInterval: time.Minute,
		SweepLimit:    100,
	}
}

func existingRecord(status domain.RecordStatus, method, path string, body []byte) *domain.Record {
	record := &domain.Record{
		ID:             uuid.Must(uuid.NewV7()),
		TenantID:       uuid.Must(uuid.NewV7()),
		IdempotencyKey: "key-1",
		RequestMethod:  method,
		RequestPath:    path,
		RequestHash:    HashRequestBody(body),
		Status:         status,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if status == domain.RecordStatusCompleted {
		responseStatus := http.StatusCreated
		responseBody := `{"id":"abc"}`
		processedAt := time.Now()
		record.ResponseStatus = &responseStatus
		record.ResponseBody = &responseBody
		record.ProcessedAt = &processedAt
	}
	return record
}

func TestIdempotencyUseCase_Begin(t *testing.T) {
	body := []byte(`{"clinician_id":"c1"}`)

	t.Run("Success_ClaimsNewKey", func(t *testing.T) {
		recordRepo := &MockRecordRepository{}
		uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

		recordRepo.On("InsertPending", mock.Anything, mock.MatchedBy(func(r *domain.Record) bool {
			return r.IdempotencyKey == "key-1" &&
				r.RequestMethod == http.MethodPost &&
				r.RequestHash == HashRequestBody(body)
		})).Return(nil)

		result, err := uc.Begin(
			context.Background(), uuid.Must(uuid.NewV7()), "key-1",
			http.MethodPost, "/v1/appointments", body)

		require.NoError(t, err)
		assert.False(t, result.Replay)
		assert.Equal(t, domain.RecordStatusPending, result.Record.Status)
	})

	t.Run("Success_ReplaysCompletedRecord", func(t *testing.T) {
		existing := existingRecord(domain.RecordStatusCompleted, http.MethodPost, "/v1/appointments", body)
		recordRepo := &MockRecordRepository{}
		uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

		recordRepo.On("InsertPending", mock.Anything, mock.Anything).Return(domain.ErrDuplicateKey)
		recordRepo.On("GetByKey", mock.Anything, existing.TenantID, "key-1").Return(existing, nil)

		result, err := uc.Begin(
			context.Background(), existing.TenantID, "key-1",
			http.MethodPost, "/v1/appointments", body)

		require.NoError(t, err)
		assert.True(t, result.Replay)
		assert.Equal(t, http.StatusCreated, *result.Record.ResponseStatus)
		assert.Equal(t, `{"id":"abc"}`, *result.Record.ResponseBody)
	})

	t.Run("Success_ReclaimsFailedRecord", func(t *testing.T) {
		existing := existingRecord(domain.RecordStatusFailed, http.MethodPost, "/v1/appointments", body)
		recordRepo := &MockRecordRepository{}
		uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

		recordRepo.On("InsertPending", mock.Anything, mock.Anything).Return(domain.ErrDuplicateKey)
		recordRepo.On("GetByKey", mock.Anything, existing.TenantID, "key-1").Return(existing, nil)
		recordRepo.On("Retry", mock.Anything, mock.MatchedBy(func(r *domain.Record) bool {
			return r.ID == existing.ID
		})).Return(nil)

		result, err := uc.Begin(
			context.Background(), existing.TenantID, "key-1",
			http.MethodPost, "/v1/appointments", body)

		require.NoError(t, err)
		assert.False(t, result.Replay)
		assert.Equal(t, domain.RecordStatusPending, result.Record.Status)
	})

	t.Run("Error_PendingRecordInProgress", func(t *testing.T) {
		existing := existingRecord(domain.RecordStatusPending, http.MethodPost, "/v1/appointments", body)
		recordRepo := &MockRecordRepository{}
		uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

		recordRepo.On("InsertPending", mock.Anything, mock.Anything).Return(domain.ErrDuplicateKey)
		recordRepo.On("GetByKey", mock.Anything, existing.TenantID, "key-1").Return(existing, nil)

		_, err := uc.Begin(
			context.Background(), existing.TenantID, "key-1",
			http.MethodPost, "/v1/appointments", body)

		require.ErrorIs(t, err, apperrors.ErrInProgress)
	})

	t.Run("Error_KeyReuseWithDifferentBody", func(t *testing.T) {
		existing := existingRecord(domain.RecordStatusCompleted, http.MethodPost, "/v1/appointments", body)
		recordRepo := &MockRecordRepository{}
		uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

		recordRepo.On("InsertPending", mock.Anything, mock.Anything).Return(domain.ErrDuplicateKey)
		recordRepo.On("GetByKey", mock.Anything, existing.TenantID, "key-1").Return(existing, nil)

		_, err := uc.Begin(
			context.Background(), existing.TenantID, "key-1",
			http.MethodPost, "/v1/appointments", []byte(`{"clinician_id":"c2"}`))

		require.ErrorIs(t, err, domain.ErrKeyReuse)
	})

	t.Run("Error_RetryRaceFallsBackToInProgress", func(t *testing.T) {
		existing := existingRecord(domain.RecordStatusFailed, http.MethodPost, "/v1/appointments", body)
		recordRepo := &MockRecordRepository{}
		uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

		recordRepo.On("InsertPending", mock.Anything, mock.Anything).Return(domain.ErrDuplicateKey)
		recordRepo.On("GetByKey", mock.Anything, existing.TenantID, "key-1").Return(existing, nil)
		recordRepo.On("Retry", mock.Anything, mock.Anything).Return(domain.ErrRecordNotFound)

		_, err := uc.Begin(
			context.Background(), existing.TenantID, "key-1",
			http.MethodPost, "/v1/appointments", body)

		require.ErrorIs(t, err, apperrors.ErrInProgress)
	})

	t.Run("Error_InsertFailure", func(t *testing.T) {
		recordRepo := &MockRecordRepository{}
		uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

		recordRepo.On("InsertPending", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := uc.Begin(
			context.Background(), uuid.Must(uuid.NewV7()), "key-1",
			http.MethodPost, "/v1/appointments", body)

		require.Error(t, err)
	})
}

func TestIdempotencyUseCase_Complete(t *testing.T) {
	recordRepo := &MockRecordRepository{}
	uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)
	recordID := uuid.Must(uuid.NewV7())

	recordRepo.On("Complete", mock.Anything, recordID, http.StatusCreated, `{"id":"abc"}`).Return(nil)

	err := uc.Complete(context.Background(), recordID, http.StatusCreated, `{"id":"abc"}`)
	require.NoError(t, err)
	recordRepo.AssertExpectations(t)
}

func TestIdempotencyUseCase_Fail(t *testing.T) {
	recordRepo := &MockRecordRepository{}
	uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)
	recordID := uuid.Must(uuid.NewV7())

	recordRepo.On("MarkFailed", mock.Anything, recordID).Return(nil)

	err := uc.Fail(context.Background(), recordID)
	require.NoError(t, err)
	recordRepo.AssertExpectations(t)
}

func TestIdempotencyUseCase_SweepStale(t *testing.T) {
	recordRepo := &MockRecordRepository{}
	uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

	recordRepo.On("SweepStale", mock.Anything, 5*time.Minute, 100).Return(int64(3), nil)

	swept, err := uc.SweepStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), swept)
}

func TestIdempotencyUseCase_StartSweeper_ContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	recordRepo := &MockRecordRepository{}
	uc := NewIdempotencyUseCase(testConfig(), recordRepo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := uc.StartSweeper(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecord_Stale(t *testing.T) {
	now := time.Now()

	pending := &domain.Record{Status: domain.RecordStatusPending, CreatedAt: now.Add(-10 * time.Minute)}
	assert.True(t, pending.Stale(now, 5*time.Minute))

	fresh := &domain.Record{Status: domain.RecordStatusPending, CreatedAt: now.Add(-time.Minute)}
	assert.False(t, fresh.Stale(now, 5*time.Minute))

	completed := &domain.Record{Status: domain.RecordStatusCompleted, CreatedAt: now.Add(-10 * time.Minute)}
	assert.False(t, completed.Stale(now, 5*time.Minute))
}
