// Package session owns the per-link reliability primitives.
//
// Ownership boundary:
// - link timing config and reconnect policy
// - retry/backoff
// - the outbound FIFO buffer
// - request futures
package session
