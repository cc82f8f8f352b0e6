// Package ui renders TigerScale CLI output with Lipgloss: command headers,
// success and failure boxes, status panels, and the typed confirmation
// guarding destructive commands.
//
// Components follow a "render once and exit" pattern. The interactive
// screens live in wizard/tui and reuse the palette defined here.
//
// # Logging Integration
//
// Logging is controlled via the TIGERSCALE_LOG_LEVEL environment variable.
// When unset, zap logging is silent so the curated output stays clean.
package ui
