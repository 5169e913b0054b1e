// Package server provides the HTTP API the jsonpoll CLI serves while watching
// a URL.
//
//   - REST API: "/api/latest" returns the latest tick record(s)
//   - Server-Sent Events: "/api/sse" streams records as ticks complete
//   - "/metrics": Prometheus collectors from the poller's registry
//   - "/healthz": liveness probe
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
