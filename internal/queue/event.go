// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingEvent is the envelope published for every customer-facing
// booking notification. It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type BookingEvent struct {
	Event      string         `json:"event"`
	EntityKind string         `json:"entity_kind"`
	EntityID   uint64         `json:"entity_id"`
	OccurredAt string         `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}
