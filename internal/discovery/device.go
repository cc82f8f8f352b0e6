package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Device represents a TigerScale discovered on the network
type Device struct {
	// Name is the mDNS name without domain (e.g., "tigerscale")
	Name string

	// Hostname is the mDNS hostname (e.g., "tigerscale.local.")
	Hostname string

	// IP is the preferred address, IPv4 when advertised
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	kind := "TigerScale"
	if d.Simulated() {
		kind = "TigerScale simulator"
	}
	return fmt.Sprintf("%s %s at %s", kind, d.Name, d.Addr())
}

// Addr returns host:port, bracketing IPv6 addresses
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// BaseURL returns the HTTP base URL for the device
func (d *Device) BaseURL() string {
	return "http://" + d.Addr()
}

// Simulated reports whether the device announced itself as a simulator
func (d *Device) Simulated() bool {
	return d.GetMetadata("sim") == "1"
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

// ParseAddress turns "host" or "host:port", as typed by a user, into a
// device. The port defaults to DefaultPort.
func ParseAddress(value string) (*Device, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("address is empty")
	}

	host, port := value, DefaultPort
	if h, p, err := net.SplitHostPort(value); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return nil, fmt.Errorf("host is empty")
	}

	return &Device{
		Name:         host,
		Hostname:     host,
		IP:           host,
		Port:         port,
		DiscoveredAt: time.Now(),
	}, nil
}
