package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/muurk/tigerscale/internal/calibration"
)

// Registry represents the entire user configuration file.
// It stores client-side metadata only; the scale itself is authoritative
// for its calibration factor and API key.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by host or host:port
	Preferences *Preferences       `yaml:"preferences,omitempty"`
	References  []Reference        `yaml:"references,omitempty"` // Extra calibration weights
}

// Device represents user-defined metadata for a single scale.
type Device struct {
	Nickname string    `yaml:"nickname,omitempty"`  // User-friendly name
	LastAddr string    `yaml:"last_addr,omitempty"` // Last address the scale answered on
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	PollIntervalMs  int    `yaml:"poll_interval_ms"`         // Status poll period
	DiscoverTimeout int    `yaml:"discover_timeout"`         // mDNS discovery timeout in seconds
	DefaultDevice   string `yaml:"default_device,omitempty"` // Used when --device is not given
	HoldMs          int    `yaml:"hold_ms"`                  // Hold-to-tare duration
}

// Reference is a user-defined calibration weight, e.g. a spool brand the
// built-in list does not know.
type Reference struct {
	ID    string  `yaml:"id"`
	Label string  `yaml:"label,omitempty"`
	Grams float64 `yaml:"grams"`
}

const (
	defaultPollIntervalMs  = 1000
	defaultDiscoverTimeout = 5
	defaultHoldMs          = 1000
)

// DefaultPreferences returns the preferences used when the file has none.
func DefaultPreferences() *Preferences {
	return &Preferences{
		PollIntervalMs:  defaultPollIntervalMs,
		DiscoverTimeout: defaultDiscoverTimeout,
		HoldMs:          defaultHoldMs,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: DefaultPreferences(),
	}
}

// PollInterval returns the poll period, falling back to the default for
// unset or nonsensical values.
func (p *Preferences) PollInterval() time.Duration {
	if p == nil || p.PollIntervalMs <= 0 {
		return defaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// DiscoverTimeoutDuration returns the mDNS scan timeout.
func (p *Preferences) DiscoverTimeoutDuration() time.Duration {
	if p == nil || p.DiscoverTimeout <= 0 {
		return defaultDiscoverTimeout * time.Second
	}
	return time.Duration(p.DiscoverTimeout) * time.Second
}

// HoldDuration returns how long the tare button must be held.
func (p *Preferences) HoldDuration() time.Duration {
	if p == nil || p.HoldMs <= 0 {
		return defaultHoldMs * time.Millisecond
	}
	return time.Duration(p.HoldMs) * time.Millisecond
}

// GetDevice retrieves device metadata by address.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(addr string) *Device {
	return r.Devices[addr]
}

// EnsureDevice ensures a device entry exists in the registry.
func (r *Registry) EnsureDevice(addr string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[addr]; exists {
		return device
	}

	device := &Device{}
	r.Devices[addr] = device
	return device
}

// UpdateDeviceLastSeen records a successful contact with the scale at addr.
func (r *Registry) UpdateDeviceLastSeen(addr string, at time.Time) {
	device := r.EnsureDevice(addr)
	device.LastSeen = at
	device.LastAddr = addr
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(addr, nickname string) {
	device := r.EnsureDevice(addr)
	device.Nickname = strings.TrimSpace(nickname)
}

// ResolveDevice maps a nickname to its address. Anything that is not a
// known nickname is returned unchanged.
func (r *Registry) ResolveDevice(name string) string {
	for addr, d := range r.Devices {
		if d != nil && d.Nickname != "" && strings.EqualFold(d.Nickname, name) {
			return addr
		}
	}
	return name
}

// CalibrationReferences converts the user references for the calibration
// catalog.
func (r *Registry) CalibrationReferences() []calibration.Reference {
	refs := make([]calibration.Reference, 0, len(r.References))
	for _, ref := range r.References {
		label := ref.Label
		if label == "" {
			label = ref.ID
		}
		refs = append(refs, calibration.Reference{
			ID:    strings.TrimSpace(ref.ID),
			Label: label,
			Grams: ref.Grams,
		})
	}
	return refs
}

// Catalog builds the calibration catalog: built-ins, then the user's
// references, then the custom entry.
func (r *Registry) Catalog() (*calibration.Catalog, error) {
	return calibration.NewCatalog(r.CalibrationReferences()...)
}

// Validate checks the references and preferences.
func (r *Registry) Validate() error {
	if r.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", r.Version)
	}
	if p := r.Preferences; p != nil {
		if p.PollIntervalMs < 0 || p.DiscoverTimeout < 0 || p.HoldMs < 0 {
			return fmt.Errorf("preferences must not be negative")
		}
	}
	if _, err := r.Catalog(); err != nil {
		return fmt.Errorf("invalid calibration reference: %w", err)
	}
	return nil
}
