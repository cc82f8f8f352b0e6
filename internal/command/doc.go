// Package command issues user-initiated commands to the scale and reports
// each result as an Outcome: ok, a local validation failure, a transport
// failure, or a rejection by the scale. Nothing is retried or queued.
//
// It also provides Hold, the press-and-hold gesture that guards tare.
package command
