package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/logging"
)

const (
	// InstanceName is the mDNS name the scale firmware registers ("tigerscale.local")
	InstanceName = "tigerscale"

	// ServiceType is the mDNS service type TigerScale devices advertise
	ServiceType = "_http._tcp"

	// Domain is the mDNS domain (typically "local.")
	Domain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the default HTTP port for TigerScale devices
	DefaultPort = 80
)

// namePattern matches TigerScale hostnames and instance names
// (e.g. "tigerscale.local.", "tigerscale-kitchen.local", "tigerscale").
var namePattern = regexp.MustCompile(`^(?i)(tigerscale(?:-[a-z0-9]+)*)(?:\.local\.?)?$`)

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForDevices discovers all TigerScale devices on the local network until
// the scanner timeout elapses or ctx is done.
func (s *Scanner) ScanForDevices(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		devices []*Device
		seen    = make(map[string]bool)
		done    = make(chan struct{})
		entries = make(chan *zeroconf.ServiceEntry)
	)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			device := s.parseServiceEntry(entry)
			if device == nil {
				continue
			}
			mu.Lock()
			if !seen[device.Addr()] {
				seen[device.Addr()] = true
				devices = append(devices, device)
				logging.Debug("Discovered TigerScale", zap.String("device", device.String()))
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once the browse context is done.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Device(nil), devices...), nil
}

// parseServiceEntry converts a zeroconf service entry to a Device
// Returns nil if the entry is not a TigerScale
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	name := matchName(entry.HostName)
	if name == "" {
		name = matchName(entry.Instance)
	}
	if name == "" {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Device{
		Name:         name,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

func matchName(s string) string {
	m := namePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// ScanForDevices is a convenience function to scan for devices with a custom timeout
func ScanForDevices(ctx context.Context, timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForDevices(ctx)
}
