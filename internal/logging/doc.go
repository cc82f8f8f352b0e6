// Package logging provides structured logging for the TigerScale tools.
//
// The package wraps a single zap logger. Command-line tools stay silent by
// default: nothing is logged unless a level is passed to Initialize or the
// TIGERSCALE_LOG_LEVEL environment variable is set.
//
// # Log Levels
//
//   - Debug: poll results, push frames, HTTP exchanges, timer activity
//   - Info: session lifecycle, command dispatch and outcomes
//   - Warn: push channel drops, rejected commands
//   - Error: emulator and metrics server failures
//
// # Structured Logging
//
//	logging.Info("Command dispatched",
//	    zap.String("command", "tare"),
//	    zap.String("command_id", id),
//	)
//
// # Specialized Logging
//
//	logging.LogPushFrame(addr, "received", payload)
//	logging.LogHTTPExchange("GET", "/api/status", 200, elapsed)
//
// # Output
//
// Console encoding with coloured levels and ISO8601 timestamps. The
// interactive dashboard owns the terminal, so it initialises the logger with
// a file path instead of stdout:
//
//	logging.Initialize("debug", "/tmp/tigerscale.log")
package logging
