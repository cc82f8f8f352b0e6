package simulator

import (
	"errors"
	"testing"
	"time"

	"github.com/muurk/tigerscale/internal/clock"
)

func newTestScale(t *testing.T, cfg ScaleConfig) (*Scale, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg.Clock = clk
	s, err := NewScale(cfg, NewMemoryStore())
	if err != nil {
		t.Fatalf("NewScale() error = %v", err)
	}
	return s, clk
}

func TestScale_BootDefaults(t *testing.T) {
	s, _ := newTestScale(t, ScaleConfig{})
	st := s.Status()

	if st.Weight != 0 {
		t.Errorf("Weight = %v, want 0 after boot tare", st.Weight)
	}
	if st.CalibrationFactor != DefaultCalibrationFactor {
		t.Errorf("CalibrationFactor = %v, want %v", st.CalibrationFactor, DefaultCalibrationFactor)
	}
	if st.Cloud != "up" || st.WiFi != "TigerNet" {
		t.Errorf("Cloud/WiFi = %q/%q, want up/TigerNet", st.Cloud, st.WiFi)
	}
	if st.APIValid || st.APIKey != "" {
		t.Errorf("API key state = %q/%v, want empty/false", st.APIKey, st.APIValid)
	}
}

func TestScale_CalibrationRoundTrip(t *testing.T) {
	s, _ := newTestScale(t, ScaleConfig{})

	s.Place(200)
	if got := s.Status().Weight; got != 210 {
		t.Fatalf("uncalibrated Weight = %v, want 210", got)
	}

	// new = current * displayed / reference
	if err := s.SetCalibrationFactor(400 * 210 / 200.0); err != nil {
		t.Fatalf("SetCalibrationFactor() error = %v", err)
	}
	if got := s.Status().Weight; got != 200 {
		t.Errorf("calibrated Weight = %v, want 200", got)
	}

	if err := s.SetCalibrationFactor(0); !errors.Is(err, ErrInvalidFactor) {
		t.Errorf("SetCalibrationFactor(0) error = %v, want ErrInvalidFactor", err)
	}
}

func TestScale_Tare(t *testing.T) {
	s, _ := newTestScale(t, ScaleConfig{TrueFactor: 400})

	var frames []Frame
	s.OnFrame(func(f Frame) { frames = append(frames, f) })

	s.Place(1000)
	s.Tare()
	s.Place(1250)

	if got := s.Status().Weight; got != 250 {
		t.Errorf("Weight = %v, want 250", got)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[1].Weight != 0 {
		t.Errorf("frame after tare = %v, want 0", frames[1].Weight)
	}
}

func TestScale_Uptime(t *testing.T) {
	s, clk := newTestScale(t, ScaleConfig{})
	clk.Advance(90*time.Second + 500*time.Millisecond)
	if got := s.Status().UptimeSeconds; got != 90 {
		t.Errorf("UptimeSeconds = %d, want 90", got)
	}
}

func TestScale_TagHex(t *testing.T) {
	s, _ := newTestScale(t, ScaleConfig{AutoPushDelay: -1})
	s.PresentTag("1234567890")

	st := s.Status()
	if st.UID != "1234567890" || st.UIDHex != "499602D2" {
		t.Errorf("UID/UIDHex = %q/%q, want 1234567890/499602D2", st.UID, st.UIDHex)
	}
	if st.SendToCloud != "" {
		t.Errorf("SendToCloud = %q with auto push disabled, want empty", st.SendToCloud)
	}
}

func TestScale_AutoPush(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   []string
	}{
		{
			name:   "valid key",
			apiKey: "key",
			want:   []string{"3", "2", "1", "send", "success", "success", ""},
		},
		{
			name: "no key",
			want: []string{"3", "2", "1", "send", "error", "error", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestScale(t, ScaleConfig{})
			if tt.apiKey != "" {
				if _, _, err := s.SetAPIKey(tt.apiKey); err != nil {
					t.Fatalf("SetAPIKey() error = %v", err)
				}
			}

			s.PresentTag("42")
			var got []string
			got = append(got, s.Status().SendToCloud)
			for i := 1; i < len(tt.want); i++ {
				s.Tick()
				got = append(got, s.Status().SendToCloud)
			}

			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("sendToCloud sequence = %q, want %q", got, tt.want)
				}
			}
		})
	}
}

func TestScale_SetAPIKey(t *testing.T) {
	s, _ := newTestScale(t, ScaleConfig{ValidKeys: map[string]string{"good": "Alice"}})

	valid, name, err := s.SetAPIKey("  good ")
	if err != nil || !valid || name != "Alice" {
		t.Errorf("SetAPIKey(good) = %v, %q, %v; want true, Alice, nil", valid, name, err)
	}
	if st := s.Status(); st.APIKey != "good" || !st.APIValid || st.DisplayName != "Alice" {
		t.Errorf("Status after good key = %+v", st)
	}

	valid, name, err = s.SetAPIKey("bad")
	if err != nil || valid || name != "" {
		t.Errorf("SetAPIKey(bad) = %v, %q, %v; want false, empty, nil", valid, name, err)
	}

	if _, _, err := s.SetAPIKey("   "); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("SetAPIKey(blank) error = %v, want ErrMissingAPIKey", err)
	}

	if err := s.DeleteAPIKey(); err != nil {
		t.Fatalf("DeleteAPIKey() error = %v", err)
	}
	if st := s.Status(); st.APIKey != "" || st.APIValid || st.DisplayName != "" {
		t.Errorf("Status after delete = %+v", st)
	}
}

func TestScale_PushWeight(t *testing.T) {
	s, _ := newTestScale(t, ScaleConfig{AutoPushDelay: -1})

	if err := s.PushWeight(0); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("PushWeight(0) error = %v, want ErrInvalidWeight", err)
	}
	if err := s.PushWeight(100); !errors.Is(err, ErrNoTag) {
		t.Errorf("PushWeight without tag error = %v, want ErrNoTag", err)
	}

	s.PresentTag("7")
	if err := s.PushWeight(100); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("PushWeight without key error = %v, want ErrInvalidAPIKey", err)
	}

	if _, _, err := s.SetAPIKey("key"); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}
	if err := s.PushWeight(100); err != nil {
		t.Fatalf("PushWeight() error = %v", err)
	}
	st := s.Status()
	if st.UID != "" {
		t.Errorf("UID = %q after push, want consumed", st.UID)
	}
	if st.SendToCloud != "success" {
		t.Errorf("SendToCloud = %q, want success", st.SendToCloud)
	}
}

func TestScale_ResetWiFi(t *testing.T) {
	s, clk := newTestScale(t, ScaleConfig{})
	clk.Advance(time.Minute)

	if err := s.ResetWiFi(); err != nil {
		t.Fatalf("ResetWiFi() error = %v", err)
	}
	st := s.Status()
	if st.WiFi != "" || st.Cloud != "down" {
		t.Errorf("WiFi/Cloud = %q/%q, want empty/down", st.WiFi, st.Cloud)
	}
	if st.UptimeSeconds != 0 {
		t.Errorf("UptimeSeconds = %d, want 0 after reboot", st.UptimeSeconds)
	}
}

func TestScale_FactoryReset(t *testing.T) {
	store := NewMemoryStore()
	s, err := NewScale(ScaleConfig{}, store)
	if err != nil {
		t.Fatalf("NewScale() error = %v", err)
	}
	if err := s.SetCalibrationFactor(420); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.SetAPIKey("key"); err != nil {
		t.Fatal(err)
	}

	if err := s.FactoryReset(); err != nil {
		t.Fatalf("FactoryReset() error = %v", err)
	}
	st := s.Status()
	if st.CalibrationFactor != DefaultCalibrationFactor || st.APIKey != "" || st.APIValid {
		t.Errorf("Status after factory reset = %+v", st)
	}
	if prefs, _ := store.Load(); prefs != DefaultPrefs() {
		t.Errorf("stored prefs = %+v, want defaults", prefs)
	}
}

func TestScale_PrefsSurviveRestart(t *testing.T) {
	store := NewMemoryStore()
	s, _ := NewScale(ScaleConfig{}, store)
	if err := s.SetCalibrationFactor(433.25); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.SetAPIKey("key"); err != nil {
		t.Fatal(err)
	}

	restarted, err := NewScale(ScaleConfig{}, store)
	if err != nil {
		t.Fatalf("NewScale() error = %v", err)
	}
	st := restarted.Status()
	if st.CalibrationFactor != 433.25 || st.APIKey != "key" || !st.APIValid {
		t.Errorf("Status after restart = %+v", st)
	}
}
