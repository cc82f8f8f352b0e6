// Package discovery locates TigerScale devices on the local network over
// mDNS (DNS-SD).
//
// The firmware registers itself as "tigerscale.local" with an "_http._tcp"
// service on port 80. The simulator advertises the same service with a
// "sim=1" TXT record so both show up in a scan.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d.Name, d.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
