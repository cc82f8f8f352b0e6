package simulator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/tigerscale/internal/device"
)

func newTestServer(t *testing.T, cfg *Config) (*Server, *httptest.Server, *device.Client) {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.hub.closeAll()
		_ = s.store.Close()
	})
	return s, ts, device.NewClientWithURL(ts.URL)
}

func simPost(t *testing.T, url, body string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST %s status = %d", url, resp.StatusCode)
	}
}

func TestServer_CommandsThroughClient(t *testing.T) {
	cfg := &Config{Scale: ScaleConfig{ValidKeys: map[string]string{"good": "Alice"}, AutoPushDelay: -1}}
	_, ts, client := newTestServer(t, cfg)
	ctx := context.Background()

	simPost(t, ts.URL+"/sim/load", `{"grams": 200}`)

	snap, err := client.FetchStatus(ctx)
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if snap.Weight == nil || *snap.Weight != 210 {
		t.Fatalf("weight = %v, want 210", snap.Weight)
	}
	if snap.CalibrationFactor == nil || *snap.CalibrationFactor != DefaultCalibrationFactor {
		t.Fatalf("calibrationFactor = %v, want %v", snap.CalibrationFactor, DefaultCalibrationFactor)
	}

	if err := client.SetCalibrationFactor(ctx, 420); err != nil {
		t.Fatalf("SetCalibrationFactor() error = %v", err)
	}
	if snap, _ := client.FetchStatus(ctx); snap.Weight == nil || *snap.Weight != 200 {
		t.Errorf("weight after calibration = %v, want 200", snap.Weight)
	}

	if err := client.Tare(ctx); err != nil {
		t.Fatalf("Tare() error = %v", err)
	}
	if snap, _ := client.FetchStatus(ctx); snap.Weight == nil || *snap.Weight != 0 {
		t.Errorf("weight after tare = %v, want 0", snap.Weight)
	}

	res, err := client.SetAPIKey(ctx, "bad")
	if err != nil || res.Valid {
		t.Errorf("SetAPIKey(bad) = %+v, %v; want invalid", res, err)
	}
	res, err = client.SetAPIKey(ctx, "good")
	if err != nil || !res.Valid || res.DisplayName != "Alice" {
		t.Errorf("SetAPIKey(good) = %+v, %v; want valid Alice", res, err)
	}

	// No tag yet: rejected by the device.
	err = client.PushWeight(ctx, 200)
	if !device.IsHTTPError(err) {
		t.Errorf("PushWeight without tag error = %v, want HTTP error", err)
	}

	simPost(t, ts.URL+"/sim/tag", `{"uid": "1234567890"}`)
	snap, _ = client.FetchStatus(ctx)
	if snap.TagIDHex == nil || *snap.TagIDHex != "499602D2" {
		t.Errorf("uid_hex = %v, want 499602D2", snap.TagIDHex)
	}
	if err := client.PushWeight(ctx, 200); err != nil {
		t.Errorf("PushWeight() error = %v", err)
	}

	ok, err := client.DeleteAPIKey(ctx)
	if err != nil || !ok {
		t.Errorf("DeleteAPIKey() = %v, %v; want true", ok, err)
	}

	if err := client.ResetWiFi(ctx); err != nil {
		t.Errorf("ResetWiFi() error = %v", err)
	}
	if snap, _ := client.FetchStatus(ctx); snap.Cloud == nil || *snap.Cloud != "down" {
		t.Errorf("cloud after WiFi reset = %v, want down", snap.Cloud)
	}

	if err := client.FactoryReset(ctx); err != nil {
		t.Errorf("FactoryReset() error = %v", err)
	}
	if snap, _ := client.FetchStatus(ctx); snap.CalibrationFactor == nil || *snap.CalibrationFactor != DefaultCalibrationFactor {
		t.Errorf("factor after factory reset = %v, want default", snap.CalibrationFactor)
	}
}

func TestServer_CalibrationAcceptsLegacyField(t *testing.T) {
	s, ts, _ := newTestServer(t, &Config{})

	simPost(t, ts.URL+"/api/calibration", `{"factor": 415}`)
	if got := s.Scale().Status().CalibrationFactor; got != 415 {
		t.Errorf("factor = %v, want 415", got)
	}

	resp, err := http.Post(ts.URL+"/api/calibration", "application/json", strings.NewReader(`{"value": -1}`))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative factor status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_StatusNotCached(t *testing.T) {
	_, ts, _ := newTestServer(t, &Config{})

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestServer_PushFrames(t *testing.T) {
	s, ts, client := newTestServer(t, &Config{Scale: ScaleConfig{TrueFactor: DefaultCalibrationFactor}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan device.Snapshot, 8)
	sub := device.NewPushSubscriber(client.PushURL())
	done := make(chan error, 1)
	go func() {
		done <- sub.Run(ctx, func(snap device.Snapshot) { frames <- snap })
	}()

	deadline := time.Now().Add(5 * time.Second)
	for s.PushClients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("push client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	simPost(t, ts.URL+"/sim/load", `{"grams": 123.4}`)

	select {
	case snap := <-frames:
		if snap.Weight == nil || *snap.Weight != 123.4 {
			t.Errorf("frame weight = %v, want 123.4", snap.Weight)
		}
		if snap.TagID == nil || *snap.TagID != "" {
			t.Errorf("frame uid = %v, want empty string", snap.TagID)
		}
		if snap.CalibrationFactor != nil {
			t.Errorf("frame carries calibrationFactor %v, want absent", *snap.CalibrationFactor)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no push frame received")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestServer_Metrics(t *testing.T) {
	_, ts, client := newTestServer(t, &Config{})

	if _, err := client.FetchStatus(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`tigerscale_sim_http_requests_total{code="200",route="/api/status"} 1`,
		"tigerscale_sim_push_clients 0",
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNew_BoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.db")

	s, err := New(&Config{StorePath: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Scale().SetCalibrationFactor(418); err != nil {
		t.Fatal(err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	s, err = New(&Config{StorePath: path})
	if err != nil {
		t.Fatalf("New() after restart error = %v", err)
	}
	defer func() { _ = s.Shutdown(context.Background()) }()
	if got := s.Scale().Status().CalibrationFactor; got != 418 {
		t.Errorf("factor after restart = %v, want 418", got)
	}
}
