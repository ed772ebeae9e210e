// Package domain defines the core outbox domain entities and types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEventStatus represents the status of an outbox event.
type OutboxEventStatus string

const (
	// OutboxEventStatusPending marks an event awaiting delivery. A pending
	// event with an unexpired lease is temporarily owned by one worker.
	OutboxEventStatusPending OutboxEventStatus = "pending"
	// OutboxEventStatusProcessed is the terminal success state.
	OutboxEventStatusProcessed OutboxEventStatus = "processed"
	// OutboxEventStatusFailed is the dead-letter state, entered when attempts
	// reach the configured maximum.
	OutboxEventStatusFailed OutboxEventStatus = "failed"
)

// AggregateTypeAppointment identifies appointment aggregates in the event stream.
const AggregateTypeAppointment = "appointment"

// OutboxEvent is an immutable fact written in the same database transaction as
// the business mutation it describes, making the mutation and its downstream
// side effects atomic. Delivery is at-least-once: consumers must be idempotent
// on (AggregateID, EventType, content).
type OutboxEvent struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       string
	Status        OutboxEventStatus
	Attempts      int
	LeasedAt      *time.Time
	LastError     *string
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Claimable reports whether the event may be claimed at the given instant:
// it is pending and either never leased or its lease has expired.
func (e *OutboxEvent) Claimable(now time.Time, leaseTTL time.Duration) bool {
	if e.Status != OutboxEventStatusPending {
		return false
	}
	return e.LeasedAt == nil || e.LeasedAt.Add(leaseTTL).Before(now)
}
