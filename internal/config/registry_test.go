package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		configDir, err := GetConfigDir()
		if err != nil {
			t.Fatalf("GetConfigDir() error = %v", err)
		}
		if want := filepath.Join("/tmp/xdg", "tigerscale"); configDir != want {
			t.Errorf("GetConfigDir() = %v, want %v", configDir, want)
		}
	}

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
	if !strings.Contains(configPath, "tigerscale") {
		t.Errorf("GetConfigPath() = %v, should contain 'tigerscale'", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if got := reg.Preferences.PollInterval(); got != time.Second {
		t.Errorf("PollInterval() = %v, want 1s", got)
	}
	if got := reg.Preferences.DiscoverTimeoutDuration(); got != 5*time.Second {
		t.Errorf("DiscoverTimeoutDuration() = %v, want 5s", got)
	}
	if got := reg.Preferences.HoldDuration(); got != time.Second {
		t.Errorf("HoldDuration() = %v, want 1s", got)
	}
}

func TestPreferences_Fallbacks(t *testing.T) {
	var nilPrefs *Preferences
	if got := nilPrefs.PollInterval(); got != time.Second {
		t.Errorf("nil PollInterval() = %v, want 1s", got)
	}

	p := &Preferences{PollIntervalMs: 250, HoldMs: 1500}
	if got := p.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 250ms", got)
	}
	if got := p.HoldDuration(); got != 1500*time.Millisecond {
		t.Errorf("HoldDuration() = %v, want 1.5s", got)
	}
	if got := p.DiscoverTimeoutDuration(); got != 5*time.Second {
		t.Errorf("DiscoverTimeoutDuration() = %v, want default 5s", got)
	}
}

func TestRegistryDevices(t *testing.T) {
	reg := NewRegistry()

	if reg.GetDevice("10.0.0.2") != nil {
		t.Error("GetDevice() on empty registry should be nil")
	}

	d1 := reg.EnsureDevice("10.0.0.2")
	d2 := reg.EnsureDevice("10.0.0.2")
	if d1 != d2 {
		t.Error("EnsureDevice() should return the existing entry")
	}

	seen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg.UpdateDeviceLastSeen("10.0.0.2", seen)
	if d := reg.GetDevice("10.0.0.2"); !d.LastSeen.Equal(seen) || d.LastAddr != "10.0.0.2" {
		t.Errorf("after UpdateDeviceLastSeen device = %+v", d)
	}

	reg.SetDeviceNickname("10.0.0.2", "  Workshop ")
	if got := reg.GetDevice("10.0.0.2").Nickname; got != "Workshop" {
		t.Errorf("Nickname = %q, want Workshop", got)
	}

	if got := reg.ResolveDevice("workshop"); got != "10.0.0.2" {
		t.Errorf("ResolveDevice(workshop) = %q, want 10.0.0.2", got)
	}
	if got := reg.ResolveDevice("10.0.0.9"); got != "10.0.0.9" {
		t.Errorf("ResolveDevice(unknown) = %q, want unchanged", got)
	}
}

func TestRegistryCatalog(t *testing.T) {
	reg := NewRegistry()
	reg.References = []Reference{{ID: "sunlu", Grams: 205}}

	catalog, err := reg.Catalog()
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	ref, ok := catalog.Lookup("sunlu")
	if !ok {
		t.Fatal("Lookup(sunlu) not found")
	}
	if ref.Label != "sunlu" || ref.Grams != 205 {
		t.Errorf("reference = %+v, want label defaulted to id", ref)
	}
	all := catalog.All()
	if !all[len(all)-1].Custom() {
		t.Error("custom reference should be last")
	}
}

func TestRegistryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Registry)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Registry) {}},
		{name: "wrong version", mutate: func(r *Registry) { r.Version = 2 }, wantErr: true},
		{name: "negative poll", mutate: func(r *Registry) { r.Preferences.PollIntervalMs = -1 }, wantErr: true},
		{name: "empty id", mutate: func(r *Registry) { r.References = []Reference{{Grams: 300}} }, wantErr: true},
		{name: "reserved id", mutate: func(r *Registry) { r.References = []Reference{{ID: "custom", Grams: 300}} }, wantErr: true},
		{name: "too light", mutate: func(r *Registry) { r.References = []Reference{{ID: "tiny", Grams: 199.9}} }, wantErr: true},
		{name: "duplicate builtin", mutate: func(r *Registry) { r.References = []Reference{{ID: "bambu_grey", Grams: 210}} }, wantErr: true},
		{name: "duplicate user", mutate: func(r *Registry) {
			r.References = []Reference{{ID: "a", Grams: 250}, {ID: "a", Grams: 260}}
		}, wantErr: true},
		{name: "exactly minimum", mutate: func(r *Registry) { r.References = []Reference{{ID: "min", Grams: 200}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			tt.mutate(reg)
			err := reg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.SetDeviceNickname("192.168.1.40", "Workshop")
	reg.Preferences.DefaultDevice = "workshop"
	reg.Preferences.HoldMs = 1500
	reg.References = []Reference{{ID: "sunlu", Label: "Sunlu", Grams: 205}}

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# TigerScale Configuration File") {
		t.Error("saved file is missing its header comment")
	}
	if strings.Contains(string(data), "api") {
		t.Error("saved file should not mention API keys")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if got := loaded.GetDevice("192.168.1.40"); got == nil || got.Nickname != "Workshop" {
		t.Errorf("loaded device = %+v", got)
	}
	if loaded.Preferences.DefaultDevice != "workshop" || loaded.Preferences.HoldMs != 1500 {
		t.Errorf("loaded preferences = %+v", loaded.Preferences)
	}
	if len(loaded.References) != 1 || loaded.References[0] != reg.References[0] {
		t.Errorf("loaded references = %+v", loaded.References)
	}
}

func TestLoadRegistryFrom(t *testing.T) {
	dir := t.TempDir()

	reg, err := LoadRegistryFrom(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file error = %v", err)
	}
	if reg.Version != 1 || reg.Preferences == nil {
		t.Errorf("missing file registry = %+v, want defaults", reg)
	}

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "minimal", content: "version: 1\n"},
		{name: "bad version", content: "version: 3\n", wantErr: true},
		{name: "bad yaml", content: "version: [1\n", wantErr: true},
		{name: "light reference", content: "version: 1\nreferences:\n  - id: x\n    grams: 50\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			reg, err := LoadRegistryFrom(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadRegistryFrom() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (reg.Devices == nil || reg.Preferences == nil) {
				t.Error("maps and preferences should be initialized")
			}
		})
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfig(path); err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if len(reg.References) != 1 {
		t.Errorf("example references = %d, want 1", len(reg.References))
	}
}
