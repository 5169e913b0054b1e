package store

import (
	"encoding/json"
	"time"
)

// TickRecord is the stored outcome of the most recent tick for one URL.
//
// TickRecord is the storage representation used by the REST API and SSE.
// It is decoupled from the poller's generic types so that the CLI can keep
// values as raw JSON.
type TickRecord struct {
	// URL is the polled URL. Records are keyed by it.
	URL string `json:"url"`

	// Tick is the 1-based sequence number of the tick.
	Tick uint64 `json:"tick"`

	// Value is the decoded body (or the selected field) of the last
	// successful tick. A failed tick keeps the previous value.
	Value json.RawMessage `json:"value"`

	// ElapsedMs is the time from tick start to decode, in milliseconds.
	ElapsedMs int64 `json:"elapsed_ms"`

	// CheckedAt is when the tick finished.
	CheckedAt time.Time `json:"checked_at"`

	// Error is the failure message of the latest tick, nil if it succeeded.
	Error *string `json:"error"`

	// Successes and Failures count ticks seen by the store for this URL.
	// They are maintained by the store; values set by callers are ignored.
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
}

// Failed reports whether the record describes a failed tick.
func (r TickRecord) Failed() bool {
	return r.Error != nil
}

// Store defines the interface for storing and subscribing to tick records.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows ticks to be pushed to connected clients (e.g., via
// Server-Sent Events).
type Store interface {
	// Update stores a tick record and notifies all subscribers.
	Update(rec TickRecord)

	// Latest returns the record stored for url, if any.
	Latest(url string) (TickRecord, bool)

	// GetAll returns all currently stored records ordered by URL.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []TickRecord

	// Subscribe returns a channel that receives every stored record.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan TickRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan TickRecord)
}
