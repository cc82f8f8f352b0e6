// Package publish forwards the scale state to an MQTT broker so home
// automation can react to weight and tag changes.
package publish
