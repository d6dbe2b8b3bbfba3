package relay

import "fmt"

/* DeliveryStrategy decides how a validated event reaches the destination
 * Sync waits for the forward, Async acks first and forwards in the background,
 * Queued hands the event to a durable queue that owns the retries
 */
type DeliveryStrategy int

const (
	Sync DeliveryStrategy = iota + 1
	Async
	Queued
)

// String returns the string representation of the strategy
func (d DeliveryStrategy) String() string {
	switch d {
	case Sync:
		return "sync"
	case Async:
		return "async"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// NewDeliveryStrategy creates a DeliveryStrategy from a string
func NewDeliveryStrategy(s string) DeliveryStrategy {
	switch s {
	case "sync":
		return Sync
	case "async":
		return Async
	case "queued":
		return Queued
	default:
		return Queued // the only strategy with durable retries
	}
}

// Validate checks if the strategy is valid
func (d DeliveryStrategy) Validate() error {
	if d < Sync || d > Queued {
		return fmt.Errorf("invalid delivery strategy: %d", d)
	}
	return nil
}

/* FailurePolicy decides what Zoom sees when a synchronous forward fails
 * Acknowledge answers 200 so Zoom does not retry (risk: silent drop)
 * Propagate answers non-2xx so Zoom retries (risk: duplicate processing)
 */
type FailurePolicy int

const (
	AcknowledgeFailures FailurePolicy = iota + 1
	PropagateFailures
)

// String returns the string representation of the policy
func (p FailurePolicy) String() string {
	switch p {
	case AcknowledgeFailures:
		return "acknowledge"
	case PropagateFailures:
		return "propagate"
	default:
		return "unknown"
	}
}

// NewFailurePolicy creates a FailurePolicy from a string
func NewFailurePolicy(s string) FailurePolicy {
	switch s {
	case "propagate":
		return PropagateFailures
	default:
		return AcknowledgeFailures
	}
}

// Validate checks if the policy is valid
func (p FailurePolicy) Validate() error {
	if p != AcknowledgeFailures && p != PropagateFailures {
		return fmt.Errorf("invalid failure policy: %d", p)
	}
	return nil
}
