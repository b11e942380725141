// Package audit provides the append-only trail of financial and state-change
// events emitted by the marketplace. Writes must never block or fail the
// business transaction that triggered them: sink errors are logged by the
// caller and otherwise swallowed.
package audit

import "context"

// Transaction types recorded by the marketplace.
const (
	TxBookingCreated   = "booking_created"
	TxBookingConfirmed = "booking_confirmed"
	TxBookingRejected  = "booking_rejected"
	TxBookingCompleted = "booking_completed"
)

// Record is a single immutable audit event. AmountCents is set only for
// events that carry money (confirmation and settlement); creation carries
// none. Details is a small structured payload for downstream consumers so
// they can log or aggregate without querying the primary database.
type Record struct {
	ActorID         uint64            `json:"actor_id"`
	TransactionType string            `json:"transaction_type"`
	EntityType      string            `json:"entity_type"`
	EntityID        uint64            `json:"entity_id"`
	AmountCents     *uint32           `json:"amount_cents,omitempty"`
	Details         map[string]string `json:"details,omitempty"`
	RecordedAt      string            `json:"recorded_at"`
}

// Sink receives audit records. Implementations must be safe for concurrent
// use. Returning an error is permitted; callers are expected to log it and
// continue.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}
