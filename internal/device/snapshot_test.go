package device

import (
	"encoding/json"
	"testing"
)

func TestDecodeSnapshot_PushFrame(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"weight":12.5,"uid":""}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}

	if snap.Weight == nil || *snap.Weight != 12.5 {
		t.Errorf("Weight = %v, want 12.5", snap.Weight)
	}
	if snap.TagID == nil || *snap.TagID != "" {
		t.Errorf("TagID = %v, want present and empty", snap.TagID)
	}
	if snap.CalibrationFactor != nil || snap.APIKey != nil || snap.UptimeSeconds != nil {
		t.Error("fields absent from a push frame must stay nil")
	}
}

func TestDecodeSnapshot_NullIsAbsent(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"weight":null,"displayName":null}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if !snap.IsEmpty() {
		t.Errorf("snapshot with only nulls should be empty, got %+v", snap)
	}
}

func TestDecodeSnapshot_Aliases(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"apiKeyValid":true,"uptime_ms":5000}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if snap.APIKeyValid == nil || !*snap.APIKeyValid {
		t.Errorf("APIKeyValid = %v, want true from apiKeyValid alias", snap.APIKeyValid)
	}
	if snap.UptimeSeconds == nil || *snap.UptimeSeconds != 5 {
		t.Errorf("UptimeSeconds = %v, want 5 from uptime_ms", snap.UptimeSeconds)
	}
}

func TestDecodeSnapshot_TypeDrift(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, s Snapshot)
	}{
		{
			name:  "numeric string weight",
			input: `{"weight":"42.5"}`,
			check: func(t *testing.T, s Snapshot) {
				if s.Weight == nil || *s.Weight != 42.5 {
					t.Errorf("Weight = %v, want 42.5", s.Weight)
				}
			},
		},
		{
			name:  "garbage weight dropped",
			input: `{"weight":"heavy","uid":"1"}`,
			check: func(t *testing.T, s Snapshot) {
				if s.Weight != nil {
					t.Errorf("Weight = %v, want nil", *s.Weight)
				}
				if s.TagID == nil || *s.TagID != "1" {
					t.Errorf("TagID = %v, want 1", s.TagID)
				}
			},
		},
		{
			name:  "numeric countdown",
			input: `{"sendToCloud":3}`,
			check: func(t *testing.T, s Snapshot) {
				if s.SendToCloud == nil || *s.SendToCloud != "3" {
					t.Errorf("SendToCloud = %v, want \"3\"", s.SendToCloud)
				}
			},
		},
		{
			name:  "numeric bool",
			input: `{"apiValid":0}`,
			check: func(t *testing.T, s Snapshot) {
				if s.APIKeyValid == nil || *s.APIKeyValid {
					t.Errorf("APIKeyValid = %v, want false", s.APIKeyValid)
				}
			},
		},
		{
			name:  "string bool",
			input: `{"apiValid":"true"}`,
			check: func(t *testing.T, s Snapshot) {
				if s.APIKeyValid == nil || !*s.APIKeyValid {
					t.Errorf("APIKeyValid = %v, want true", s.APIKeyValid)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := DecodeSnapshot([]byte(tt.input))
			if err != nil {
				t.Fatalf("DecodeSnapshot() error = %v", err)
			}
			tt.check(t, snap)
		})
	}
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	for _, input := range []string{``, `null`, `[1,2]`, `{"weight":`} {
		if _, err := DecodeSnapshot([]byte(input)); !IsParseError(err) {
			t.Errorf("DecodeSnapshot(%q) error = %v, want parse error", input, err)
		}
	}
}

func TestSnapshot_MarshalOmitsAbsent(t *testing.T) {
	data, err := json.Marshal(Snapshot{Weight: Ptr(10.0)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"weight":10}` {
		t.Errorf("Marshal() = %s, want {\"weight\":10}", data)
	}
}
