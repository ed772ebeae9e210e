// Package domain contains the idempotency ledger entities.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/errors"
)

// RecordStatus represents the lifecycle state of an idempotency record.
type RecordStatus string

const (
	// RecordStatusPending marks a request whose handler is still running.
	RecordStatusPending RecordStatus = "pending"
	// RecordStatusCompleted marks a request with a stored response ready for replay.
	RecordStatusCompleted RecordStatus = "completed"
	// RecordStatusFailed marks a request whose handler died or errored; the
	// key may be retried with a fresh execution.
	RecordStatusFailed RecordStatus = "failed"
)

// Idempotency domain errors.
var (
	// ErrRecordNotFound is returned when no record exists for a key.
	ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "idempotency record not found")
	// ErrKeyReuse is returned when a key is replayed with a different request
	// method, path or body.
	ErrKeyReuse = errors.Wrap(errors.ErrInvalidInput, "idempotency key reused with a different request")
	// ErrDuplicateKey is returned when a record for the key already exists.
	ErrDuplicateKey = errors.Wrap(errors.ErrConflict, "idempotency record already exists")
)

// Record is one entry in the idempotency ledger. A record is unique per
// (tenant, key); the stored response is replayed byte for byte on completed
// records.
type Record struct {
	ID             uuid.UUID    `json:"id"`
	TenantID       uuid.UUID    `json:"tenant_id"`
	IdempotencyKey string       `json:"idempotency_key"`
	RequestMethod  string       `json:"request_method"`
	RequestPath    string       `json:"request_path"`
	RequestHash    string       `json:"request_hash"`
	Status         RecordStatus `json:"status"`
	ResponseStatus *int         `json:"response_status"`
	ResponseBody   *string      `json:"response_body"`
	ProcessedAt    *time.Time   `json:"processed_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// MatchesRequest reports whether a stored record belongs to the same request
// shape as the incoming one.
func (r *Record) MatchesRequest(method, path, hash string) bool {
	return r.RequestMethod == method && r.RequestPath == path && r.RequestHash == hash
}

// Replayable reports whether the record holds a stored response.
func (r *Record) Replayable() bool {
	return r.Status == RecordStatusCompleted && r.ResponseStatus != nil && r.ResponseBody != nil
}

// Stale reports whether a pending record has outlived the pending TTL and
// should be swept to failed.
func (r *Record) Stale(now time.Time, pendingTTL time.Duration) bool {
	return r.Status == RecordStatusPending && now.Sub(r.CreatedAt) > pendingTTL
}
