// Package ws exposes the daemon state and control commands over a
// websocket endpoint.
//
// A hub fans out state envelopes to every connected client; each client
// gets a buffered send queue and is dropped if it cannot keep up. Inbound
// frames carry control commands (manual trigger, fallback, ducking) that
// are dispatched to the daemon.
package ws
