// Package protocol owns the channel wire contract.
//
// Ownership boundary:
// - message shape and reserved protocol types
// - sender namespacing of application types
// - boundary decode, validation and classification
// - wire codecs (protocol/codec)
//
// Link behavior (handshake, buffering, correlation) lives in
// internal/channel; this package never holds connection state.
package protocol
