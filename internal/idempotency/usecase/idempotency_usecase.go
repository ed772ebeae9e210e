// Package usecase implements the idempotency ledger logic: claiming keys,
// storing responses for replay, and sweeping abandoned claims.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/idempotency/domain"
	"github.com/careops/scheduling/internal/metrics"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// Config holds idempotency ledger configuration.
type Config struct {
	PendingTTL    time.Duration
	SweepInterval time.Duration
	SweepLimit    int
}

// RecordRepository defines idempotency record repository operations.
type RecordRepository interface {
	InsertPending(ctx context.Context, record *domain.Record) error
	GetByKey(ctx context.Context, tenantID uuid.UUID, key string) (*domain.Record, error)
	Complete(ctx context.Context, id uuid.UUID, responseStatus int, responseBody string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, record *domain.Record) error
	SweepStale(ctx context.Context, pendingTTL time.Duration, limit int) (int64, error)
}

// BeginResult is the outcome of claiming an idempotency key.
type BeginResult struct {
	// Record is the ledger entry for the key. On replay it carries the stored
	// response; otherwise it is the pending claim owned by this request.
	Record *domain.Record
	// Replay is true when a completed record exists and its response must be
	// returned without executing the handler.
	Replay bool
}

// UseCase defines the interface for idempotency use cases.
type UseCase interface {
	Begin(ctx context.Context, tenantID uuid.UUID, key, method, path string, body []byte) (*BeginResult, error)
	Complete(ctx context.Context, recordID uuid.UUID, responseStatus int, responseBody string) error
	Fail(ctx context.Context, recordID uuid.UUID) error
	SweepStale(ctx context.Context) (int64, error)
	StartSweeper(ctx context.Context) error
}

// IdempotencyUseCase implements the ledger state machine. Exactly one request
// per (tenant, key) executes; concurrent duplicates are told to retry later,
// and completed duplicates get the stored response replayed.
type IdempotencyUseCase struct {
	config          Config
	recordRepo      RecordRepository
	businessMetrics metrics.BusinessMetrics
	logger          *slog.Logger
}

// NewIdempotencyUseCase creates a new IdempotencyUseCase.
func NewIdempotencyUseCase(
	config Config,
	recordRepo RecordRepository,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *IdempotencyUseCase {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &IdempotencyUseCase{
		config:          config,
		recordRepo:      recordRepo,
		businessMetrics: businessMetrics,
		logger:          logger,
	}
}

// HashRequestBody returns the hex sha256 digest used to detect key reuse
// across different request bodies.
func HashRequestBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin claims the key for this request or resolves what an existing claim
// means for it. A failed prior claim is reclaimed in place; a pending one
// yields ErrInProgress; a completed one with a matching request shape yields
// a replay; any shape mismatch yields ErrKeyReuse.
func (uc *IdempotencyUseCase) Begin(
	ctx context.Context,
	tenantID uuid.UUID,
	key, method, path string,
	body []byte,
) (*BeginResult, error) {
	hash := HashRequestBody(body)

	record := &domain.Record{
		ID:             uuid.Must(uuid.NewV7()),
		TenantID:       tenantID,
		IdempotencyKey: key,
		RequestMethod:  method,
		RequestPath:    path,
		RequestHash:    hash,
		Status:         domain.RecordStatusPending,
	}

	err := uc.recordRepo.InsertPending(ctx, record)
	if err == nil {
		uc.businessMetrics.RecordOperation(ctx, "idempotency", "begin", "claimed")
		return &BeginResult{Record: record}, nil
	}
	if !apperrors.Is(err, domain.ErrDuplicateKey) {
		return nil, err
	}

	existing, err := uc.recordRepo.GetByKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}

	if !existing.MatchesRequest(method, path, hash) {
		uc.businessMetrics.RecordOperation(ctx, "idempotency", "begin", "key_reuse")
		return nil, domain.ErrKeyReuse
	}

	switch existing.Status {
	case domain.RecordStatusCompleted:
		if !existing.Replayable() {
			return nil, apperrors.New("completed idempotency record has no stored response")
		}
		uc.businessMetrics.RecordOperation(ctx, "idempotency", "begin", "replay")
		return &BeginResult{Record: existing, Replay: true}, nil

	case domain.RecordStatusFailed:
		retried := *existing
		retried.RequestMethod = method
		retried.RequestPath = path
		retried.RequestHash = hash
		if err := uc.recordRepo.Retry(ctx, &retried); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.ErrInProgress
			}
			return nil, err
		}
		uc.businessMetrics.RecordOperation(ctx, "idempotency", "begin", "reclaimed")
		retried.Status = domain.RecordStatusPending
		return &BeginResult{Record: &retried}, nil

	default:
		uc.businessMetrics.RecordOperation(ctx, "idempotency", "begin", "in_progress")
		return nil, apperrors.ErrInProgress
	}
}

// Complete stores the handler's response on the pending record.
func (uc *IdempotencyUseCase) Complete(
	ctx context.Context,
	recordID uuid.UUID,
	responseStatus int,
	responseBody string,
) error {
	if err := uc.recordRepo.Complete(ctx, recordID, responseStatus, responseBody); err != nil {
		return err
	}
	uc.businessMetrics.RecordOperation(ctx, "idempotency", "complete", "success")
	return nil
}

// Fail releases the pending claim after a handler error so the key can be
// retried with a fresh execution.
func (uc *IdempotencyUseCase) Fail(ctx context.Context, recordID uuid.UUID) error {
	if err := uc.recordRepo.MarkFailed(ctx, recordID); err != nil {
		return err
	}
	uc.businessMetrics.RecordOperation(ctx, "idempotency", "fail", "success")
	return nil
}

// SweepStale flips pending claims older than the pending TTL to failed.
func (uc *IdempotencyUseCase) SweepStale(ctx context.Context) (int64, error) {
	swept, err := uc.recordRepo.SweepStale(ctx, uc.config.PendingTTL, uc.config.SweepLimit)
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		if uc.logger != nil {
			uc.logger.Info("swept stale idempotency records", slog.Int64("count", swept))
		}
		uc.businessMetrics.RecordOperation(ctx, "idempotency", "sweep", "swept")
	}

	return swept, nil
}

// StartSweeper runs the stale-claim sweeper until the context is cancelled.
func (uc *IdempotencyUseCase) StartSweeper(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting idempotency sweeper",
			slog.Duration("interval", uc.config.SweepInterval),
			slog.Duration("pending_ttl", uc.config.PendingTTL),
		)
	}

	ticker := time.NewTicker(uc.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping idempotency sweeper")
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.SweepStale(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to sweep stale records", slog.Any("error", err))
				}
			}
		}
	}
}
