package simulator

import (
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, store Store) {
	t.Helper()

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on empty store error = %v", err)
	}
	if got != DefaultPrefs() {
		t.Errorf("Load() on empty store = %+v, want defaults", got)
	}

	want := Prefs{CalibrationFactor: 421.5, APIKey: "abc", WiFiSSID: "Garage"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got, _ := store.Load(); got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got, _ := store.Load(); got != DefaultPrefs() {
		t.Errorf("Load() after Clear = %+v, want defaults", got)
	}
	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestBoltStore(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	testStore(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")

	store, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	want := Prefs{CalibrationFactor: 419, APIKey: "k", WiFiSSID: "TigerNet"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	store, err = OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = store.Close() }()
	if got, _ := store.Load(); got != want {
		t.Errorf("Load() after reopen = %+v, want %+v", got, want)
	}
}
