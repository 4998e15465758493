// Package queue carries checks from submission to the processing workers.
// The transport must give each delivered message an exclusive lease so a
// check is never active in two pipeline runs at once.
package queue

import (
	"context"

	"eligibility/internal/domain"
)

// Message is one unit of processing work.
type Message struct {
	// ID is the transport receipt handle used to delete or release the
	// message. Opaque to callers.
	ID          string
	CheckID     string
	Type        domain.BenefitType
	CallbackURL string
	// Deliveries counts how often this message has been handed to a consumer,
	// including the current delivery.
	Deliveries int64
}

// Producer enqueues work. The submission path only needs this half.
type Producer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// Queue is the full transport surface the consumer drains.
type Queue interface {
	Producer

	// Dequeue leases up to max messages to this consumer. An empty slice with
	// a nil error means no work is available.
	Dequeue(ctx context.Context, max int64) ([]Message, error)

	// Delete acknowledges and removes a leased message.
	Delete(ctx context.Context, msgID string) error

	// ResetVisibility releases a leased message for immediate redelivery.
	ResetVisibility(ctx context.Context, msgID string) error
}
