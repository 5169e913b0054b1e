// Package poller provides the transport and scheduling halves of the
// jsonpoll engine.
//
// The main components are:
//
//   - [Client]: the long-lived HTTP transport handle with a tuned
//     connection pool, per-request timeouts and connection counters
//   - [Scheduler]: a single sequential tick loop anchored to tick start times
//
// Users of the jsonpoll library should not need to interact with this
// package directly. Configuration is done through the main jsonpoll package.
package poller
