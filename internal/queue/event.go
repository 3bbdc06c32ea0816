// Package queue defines message payloads exchanged over the message broker.
package queue

// CatchRecordedEvent is published when an angler logs a new catch. It carries
// enough information for downstream consumers to build activity feeds or
// notifications without querying the primary database.
type CatchRecordedEvent struct {
	CatchID    uint64   `json:"catch_id"`
	UserID     uint64   `json:"user_id"`
	Species    string   `json:"species"`
	WeightKg   *float64 `json:"weight_kg,omitempty"`
	Location   string   `json:"location"`
	CaughtAt   string   `json:"caught_at"`
	RecordedAt string   `json:"recorded_at"`
}
