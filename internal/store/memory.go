package store

import (
	"bytes"
	"sort"
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by URL; each Update replaces the previous record but
// carries its counters forward, and a failed tick keeps the last good value.
// Subscribers receive records via buffered channels. Sends are non-blocking;
// if a subscriber's buffer is full the record is dropped for that subscriber.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]TickRecord

	subMu       sync.RWMutex
	subscribers map[chan TickRecord]struct{}
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]TickRecord),
		subscribers: make(map[chan TickRecord]struct{}),
	}
}

// Update stores rec and notifies all subscribers with the stored version.
func (m *MemoryStore) Update(rec TickRecord) {
	m.mu.Lock()
	prev, ok := m.records[rec.URL]
	if ok {
		rec.Successes, rec.Failures = prev.Successes, prev.Failures
		if rec.Failed() && rec.Value == nil {
			rec.Value = prev.Value
		}
	} else {
		rec.Successes, rec.Failures = 0, 0
	}
	if rec.Failed() {
		rec.Failures++
	} else {
		rec.Successes++
	}
	// callers may reuse their buffers
	rec.Value = bytes.Clone(rec.Value)
	m.records[rec.URL] = rec
	m.mu.Unlock()

	m.notifySubscribers(rec)
}

// Latest returns the record stored for url.
func (m *MemoryStore) Latest(url string) (TickRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[url]
	return rec, ok
}

// GetAll returns a snapshot of all stored records, ordered by URL.
func (m *MemoryStore) GetAll() []TickRecord {
	m.mu.RLock()
	records := make([]TickRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].URL < records[j].URL
	})
	return records
}

// Subscribe creates a new subscription and returns a channel for receiving records.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan TickRecord {
	ch := make(chan TickRecord, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan TickRecord) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryStore) notifySubscribers(rec TickRecord) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- rec:
		default:
			// slow subscriber, drop
		}
	}
}
