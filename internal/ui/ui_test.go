package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muurk/tigerscale/internal/command"
	"github.com/muurk/tigerscale/internal/device"
	"github.com/muurk/tigerscale/internal/session"
	"github.com/muurk/tigerscale/internal/state"
)

func TestConfirmDangerousOperation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "agree", input: "I AGREE\n", want: true},
		{name: "agree with spaces", input: "  I AGREE  \n", want: true},
		{name: "agree without newline", input: "I AGREE", want: true},
		{name: "lowercase", input: "i agree\n", want: false},
		{name: "yes", input: "yes\n", want: false},
		{name: "eof", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmDangerousOperation(strings.NewReader(tt.input), &out, "TEST", []string{"it breaks"}, "")
			if got != tt.want {
				t.Errorf("ConfirmDangerousOperation(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "it breaks") {
				t.Error("warning text not rendered")
			}
		})
	}
}

func TestPresetConfirmations(t *testing.T) {
	var out bytes.Buffer
	if !FactoryResetConfirmation(strings.NewReader("I AGREE\n"), &out)() {
		t.Error("FactoryResetConfirmation() = false, want true")
	}
	if !strings.Contains(out.String(), "FACTORY RESET") {
		t.Error("factory reset title not rendered")
	}

	out.Reset()
	if ResetWiFiConfirmation(strings.NewReader("\n"), &out)() {
		t.Error("ResetWiFiConfirmation() = true on empty answer")
	}
	if !AssumeYes()() {
		t.Error("AssumeYes() = false")
	}

	out.Reset()
	if DeleteAPIKeyConfirmation(strings.NewReader("y\n"), &out)() {
		t.Error("DeleteAPIKeyConfirmation() = true without the agree phrase")
	}
	if !strings.Contains(out.String(), "DELETE API KEY") {
		t.Error("delete API key title not rendered")
	}
	if !DeleteAPIKeyConfirmation(strings.NewReader("I AGREE\n"), &out)() {
		t.Error("DeleteAPIKeyConfirmation() = false, want true")
	}
}

func TestResultFromOutcome(t *testing.T) {
	timeout := &device.DeviceError{Type: device.ErrTypeTimeout, Message: "Request timed out", Err: context.DeadlineExceeded}

	tests := []struct {
		name     string
		outcome  command.Outcome
		wantType ResultType
		wantTips bool
	}{
		{name: "ok", outcome: command.Outcome{Command: command.Tare, Kind: command.KindOK, ID: "abc"}, wantType: ResultSuccess},
		{name: "validation", outcome: command.Invalid(command.SetAPIKey, command.EmptyAPIKey), wantType: ResultWarning},
		{name: "rejected", outcome: command.Outcome{Command: command.SetAPIKey, Kind: command.KindRejected}, wantType: ResultFailure},
		{name: "transport", outcome: command.Outcome{Command: command.Tare, Kind: command.KindTransport, Err: timeout}, wantType: ResultFailure, wantTips: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResultFromOutcome(tt.outcome)
			if r.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", r.Type, tt.wantType)
			}
			if r.Title != tt.outcome.Message() {
				t.Errorf("Title = %q, want %q", r.Title, tt.outcome.Message())
			}
			if (len(r.Troubleshooting) > 0) != tt.wantTips {
				t.Errorf("Troubleshooting = %v, wantTips %v", r.Troubleshooting, tt.wantTips)
			}
			if r.SetWidth(80).Render() == "" {
				t.Error("Render() returned empty string")
			}
		})
	}
}

func TestTroubleshootingTips(t *testing.T) {
	tips := TroubleshootingTips(&device.DeviceError{Type: device.ErrTypeTimeout})
	if len(tips) == 0 {
		t.Fatal("no tips for a timeout")
	}
	for _, tip := range tips {
		if strings.HasPrefix(tip, "•") || strings.HasPrefix(tip, " ") {
			t.Errorf("tip %q keeps its bullet", tip)
		}
	}

	if tips := TroubleshootingTips(errors.New("plain")); len(tips) != 0 {
		t.Errorf("tips for a plain error = %v, want none", tips)
	}
}

func TestStatusView(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	view := StatusView{
		Addr: "192.168.1.40:80",
		State: state.ClientState{
			Weight: 1234.4, WeightKnown: true,
			TagID: "1234567890", TagKnown: true, TagIDHex: "499602D2",
			CalibrationFactor: 420.5, FactorKnown: true,
			APIKey: "k", APIKeyValid: true, APIKeyStatus: state.APIKeyValid, DisplayName: "Alice",
			CloudStatus:   state.CloudUp,
			UptimeSeconds: 3661, UptimeKnown: true,
			CloudPush: state.CloudPushDisplay{Phase: state.PushPending, Seconds: 2},
			WiFi:      "TigerNet",
			IP:        "192.168.1.40",
		},
		Health: session.Health{LastSuccess: now.Add(-3 * time.Second), PushConnected: true},
		Now:    now,
	}

	want := map[string]string{
		"Weight":      "1,234 g",
		"Tag":         "1234567890 [0x499602D2]",
		"Calibration": "420.50",
		"API key":     "valid (Alice)",
		"Cloud":       "up",
		"Cloud push":  "sending in 2s",
		"Uptime":      "01:01:01",
		"WiFi":        "TigerNet",
		"Link":        "online, updated 3 seconds ago, push connected",
	}
	for _, row := range view.Rows() {
		if w, ok := want[row.Key]; ok && row.Value != w {
			t.Errorf("row %s = %q, want %q", row.Key, row.Value, w)
		}
	}

	compact := view.RenderCompact()
	wantCompact := "1,234 g | tag 1234567890 | factor 420.50 | key valid | cloud up | sending in 2s"
	if compact != wantCompact {
		t.Errorf("RenderCompact() = %q, want %q", compact, wantCompact)
	}

	if !strings.Contains(view.RenderDetailed(80), "192.168.1.40:80") {
		t.Error("RenderDetailed() missing the address")
	}
}

func TestStatusView_Unknown(t *testing.T) {
	view := StatusView{}
	rows := view.Rows()

	got := make(map[string]string)
	for _, r := range rows {
		got[r.Key] = r.Value
	}
	if got["Weight"] != "…" || got["Tag"] != "waiting for tag" || got["Calibration"] != "-" {
		t.Errorf("unknown rows = %v", got)
	}
	if got["Uptime"] != state.UptimePlaceholder {
		t.Errorf("Uptime = %q, want placeholder", got["Uptime"])
	}
	if got["Link"] != "never reached" {
		t.Errorf("Link = %q, want never reached", got["Link"])
	}
	if _, ok := got["WiFi"]; ok {
		t.Error("WiFi row shown without a value")
	}
}
