package types

import "time"

// VendRetryMessage is the payload enqueued for an order parked in
// vending_failed. The worker re-drives vending for the order ID; because
// vending is idempotent on order ID, duplicate deliveries are harmless.
type VendRetryMessage struct {
	// MessageID is a unique identifier for this message (tracing only;
	// idempotency is keyed on OrderID, not MessageID).
	MessageID string `json:"message_id"`
	// TraceID propagates the originating request ID across the queue hop.
	TraceID string `json:"trace_id,omitempty"`
	OrderID string `json:"order_id"`
	// Attempt counts prior vending attempts for this order, starting at 1
	// for the first retry after the synchronous attempt failed.
	Attempt int `json:"attempt"`
	// Reason is a short operator-facing note ("timeout", "upstream_500").
	Reason     string    `json:"reason,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// MaxVendRetryAttempts bounds automatic redrives; beyond this the order
// stays in vending_failed for manual reconciliation.
const MaxVendRetryAttempts = 5
