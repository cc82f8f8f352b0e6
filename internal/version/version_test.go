package version

import (
	"strings"
	"testing"
)

func TestShortRevision(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0123456789abcdef", "0123456"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortRevision(tt.in); got != tt.want {
			t.Errorf("shortRevision(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBanner(t *testing.T) {
	got := Banner("tigerscale")
	if !strings.HasPrefix(got, "tigerscale ") {
		t.Errorf("Banner() = %q, want prefix %q", got, "tigerscale ")
	}
	if !strings.Contains(got, Commit) {
		t.Errorf("Banner() = %q, should contain commit %q", got, Commit)
	}
}

func TestGet_NonEmpty(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.GoVersion == "" {
		t.Errorf("Get() = %+v, want populated fields", info)
	}
}
