// Package tui implements the full-screen terminal interface for TigerScale.
//
// Built on Bubble Tea, it follows the Elm architecture: each screen is a
// model with Update and View, and AppModel routes messages between them.
//
// # Screens
//
//   - Discovery: browse mDNS for scales or type an address by hand
//   - Dashboard: live weight, tag, calibration, API key and cloud push
//     state of one scale, with hold-to-tare and the device commands
//   - Calibration: the three-step wizard that corrects the calibration
//     factor against a reference of known weight
//
// Every screen renders inside RenderApplicationContainer, which provides
// the header, the content area and a footer with context-sensitive help.
//
// # Live updates
//
// A session polls the scale and listens on its push channel from its own
// goroutines. Their callbacks reach the Bubble Tea loop through a bridge:
// a buffered channel drained by a command that AppModel re-arms after
// every delivery. Redraw requests are dropped when the buffer is full;
// command results never are.
//
// # Hold to tare
//
// Terminals report key presses but not releases. Holding t makes the
// terminal repeat it, so the dashboard treats the key as held for as long
// as repeats keep arriving and releases the control when they stop or
// another key is pressed.
//
// # Usage
//
//	err := tui.Run(tui.Options{ScanTimeout: 5 * time.Second})
package tui
