package discovery

import "testing"

func TestDevice_String(t *testing.T) {
	device := &Device{
		Name:     "tigerscale",
		Hostname: "tigerscale.local.",
		IP:       "192.168.4.16",
		Port:     80,
	}

	expected := "TigerScale tigerscale at 192.168.4.16:80"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}

	device.Metadata = map[string]string{"sim": "1"}
	expected = "TigerScale simulator tigerscale at 192.168.4.16:80"
	if device.String() != expected {
		t.Errorf("Device.String() = %v, want %v", device.String(), expected)
	}
}

func TestDevice_BaseURL(t *testing.T) {
	tests := []struct {
		name     string
		device   *Device
		expected string
	}{
		{
			name:     "standard HTTP port",
			device:   &Device{IP: "192.168.4.16", Port: 80},
			expected: "http://192.168.4.16:80",
		},
		{
			name:     "custom port",
			device:   &Device{IP: "10.0.0.5", Port: 8080},
			expected: "http://10.0.0.5:8080",
		},
		{
			name:     "IPv6",
			device:   &Device{IP: "fe80::1", Port: 80},
			expected: "http://[fe80::1]:80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.BaseURL(); got != tt.expected {
				t.Errorf("Device.BaseURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDevice_GetMetadata(t *testing.T) {
	var empty Device
	if got := empty.GetMetadata("path"); got != "" {
		t.Errorf("GetMetadata on nil metadata = %q, want empty", got)
	}
	if empty.Simulated() {
		t.Error("Simulated() = true without metadata")
	}

	device := &Device{Metadata: map[string]string{"path": "/", "sim": "1"}}
	if got := device.GetMetadata("path"); got != "/" {
		t.Errorf("GetMetadata(path) = %q, want /", got)
	}
	if got := device.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
	if !device.Simulated() {
		t.Error("Simulated() = false, want true")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in       string
		wantIP   string
		wantPort int
		wantErr  bool
	}{
		{"192.168.4.1", "192.168.4.1", 80, false},
		{" tigerscale.local ", "tigerscale.local", 80, false},
		{"10.0.0.7:8080", "10.0.0.7", 8080, false},
		{"[fe80::1]:81", "fe80::1", 81, false},
		{"10.0.0.7:0", "", 0, true},
		{"10.0.0.7:http", "", 0, true},
		{":80", "", 0, true},
		{"", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dev, err := ParseAddress(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if dev.IP != tt.wantIP || dev.Port != tt.wantPort {
				t.Errorf("got %s:%d, want %s:%d", dev.IP, dev.Port, tt.wantIP, tt.wantPort)
			}
		})
	}
}
