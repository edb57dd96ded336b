// Package channel implements the link protocol between a controller and
// its nodes over a broadcast transport.
//
// Ownership boundary:
// - three-way handshake (SYN, SYN-ACK, ACK) and link status
// - inbound filter pipeline (domain, addressing, origin, connection)
// - outbound FIFO buffer while the link is not connected
// - request/response correlation with per-request deadlines
// - handler registry and dispatch
// - controller heartbeat and reconnect policy
//
// Every protocol reaction on a link (inbound delivery, timer fire, API call)
// runs under the link's mutex. Handlers and status callbacks run after the
// mutex is released, in the order the reactions produced them, so they may
// call back into the same link.
package channel
