// Package store keeps the latest tick record per polled URL and fans new
// records out to subscribers.
//
// The main components are:
//
//   - [Store]: interface for storage and subscriptions
//   - [MemoryStore]: in-memory implementation with non-blocking pub/sub
//   - [TickRecord]: JSON-ready outcome of one tick
//
// The jsonpoll CLI writes a record after every tick and the API server reads
// them back for /api/latest and /api/sse.
package store
