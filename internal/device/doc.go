// Package device is the transport layer for a TigerScale: the local HTTP API
// used for polling and commands, and the WebSocket push channel that streams
// live weight.
//
// Snapshots decoded here are partial by nature. A nil field means the
// message did not carry it, never that the value is zero.
package device
