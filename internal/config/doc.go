// Package config provides user configuration management for TigerScale.
//
// A YAML file stores client-side metadata: nicknames for scales, polling
// and hold preferences, and extra reference weights for the calibration
// wizard. The configuration follows OS-specific conventions for storage
// location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/tigerscale/config.yaml or $HOME/.config/tigerscale/config.yaml
//   - macOS: $HOME/.config/tigerscale/config.yaml
//   - Windows: %LOCALAPPDATA%\tigerscale\config.yaml
//
// # Example
//
//	version: 1
//	devices:
//	  192.168.1.40:
//	    nickname: workshop
//	preferences:
//	  poll_interval_ms: 1000
//	  discover_timeout: 5
//	  hold_ms: 1000
//	references:
//	  - id: sunlu_cardboard
//	    label: Sunlu Cardboard
//	    grams: 205
//
// # Security
//
// The API key and calibration factor live on the scale and are never
// written here.
package config
