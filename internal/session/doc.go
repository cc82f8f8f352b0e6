// Package session wires a scale's HTTP client, push channel, state
// reconciler and command dispatcher into one running unit, and tracks link
// health and Prometheus metrics for it.
package session
