package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Snapshot is a point-in-time, possibly partial, view of the scale. A nil
// field was absent from the message it was decoded from. The poll endpoint
// normally fills every field; push frames carry only weight and uid.
type Snapshot struct {
	Weight            *float64 `json:"weight,omitempty"`
	TagID             *string  `json:"uid,omitempty"`
	TagIDHex          *string  `json:"uid_hex,omitempty"`
	CalibrationFactor *float64 `json:"calibrationFactor,omitempty"`
	APIKey            *string  `json:"apiKey,omitempty"`
	APIKeyValid       *bool    `json:"apiValid,omitempty"`
	DisplayName       *string  `json:"displayName,omitempty"`
	Cloud             *string  `json:"cloud,omitempty"`
	UptimeSeconds     *float64 `json:"uptime_s,omitempty"`
	SendToCloud       *string  `json:"sendToCloud,omitempty"`
	WiFi              *string  `json:"wifi,omitempty"`
	IP                *string  `json:"ip,omitempty"`
}

// Ptr returns a pointer to v. Handy for building snapshots by hand.
func Ptr[T any](v T) *T {
	return &v
}

// DecodeSnapshot parses a status body or push frame.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, NewParseError("failed to decode device snapshot", err)
	}
	return s, nil
}

// UnmarshalJSON accepts the field aliases the firmware has used over time
// (apiValid/apiKeyValid, uptime_s/uptime_ms) and tolerates type drift: a
// field whose value has the wrong type is dropped, not fatal. JSON null is
// treated as absent.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("snapshot must be a JSON object")
	}

	*s = Snapshot{
		Weight:            rawNumber(raw["weight"]),
		TagID:             rawString(raw["uid"]),
		TagIDHex:          rawString(raw["uid_hex"]),
		CalibrationFactor: rawNumber(raw["calibrationFactor"]),
		APIKey:            rawString(raw["apiKey"]),
		DisplayName:       rawString(raw["displayName"]),
		Cloud:             rawString(raw["cloud"]),
		SendToCloud:       rawText(raw["sendToCloud"]),
		WiFi:              rawString(raw["wifi"]),
		IP:                rawString(raw["ip"]),
	}

	s.APIKeyValid = rawBool(raw["apiValid"])
	if s.APIKeyValid == nil {
		s.APIKeyValid = rawBool(raw["apiKeyValid"])
	}

	s.UptimeSeconds = rawNumber(raw["uptime_s"])
	if s.UptimeSeconds == nil {
		if ms := rawNumber(raw["uptime_ms"]); ms != nil {
			secs := *ms / 1000
			s.UptimeSeconds = &secs
		}
	}

	return nil
}

// IsEmpty reports whether no field is present.
func (s Snapshot) IsEmpty() bool {
	return s == Snapshot{}
}

func isNull(msg json.RawMessage) bool {
	trimmed := bytes.TrimSpace(msg)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func rawString(msg json.RawMessage) *string {
	if isNull(msg) {
		return nil
	}
	var v string
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil
	}
	return &v
}

// rawNumber accepts a JSON number or a numeric string. Non-finite values are
// dropped.
func rawNumber(msg json.RawMessage) *float64 {
	if isNull(msg) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(msg, &v); err != nil {
		var text string
		if err := json.Unmarshal(msg, &text); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil
		}
		v = parsed
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// rawText accepts a string or a number and returns its textual form.
func rawText(msg json.RawMessage) *string {
	if isNull(msg) {
		return nil
	}
	if s := rawString(msg); s != nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(msg, &n); err != nil {
		return nil
	}
	text := strconv.FormatFloat(n, 'f', -1, 64)
	return &text
}

func rawBool(msg json.RawMessage) *bool {
	if isNull(msg) {
		return nil
	}
	var v bool
	if err := json.Unmarshal(msg, &v); err == nil {
		return &v
	}
	var n float64
	if err := json.Unmarshal(msg, &n); err == nil {
		b := n != 0
		return &b
	}
	if s := rawString(msg); s != nil {
		if b, err := strconv.ParseBool(strings.TrimSpace(*s)); err == nil {
			return &b
		}
	}
	return nil
}

// APIKeyResult is the device's answer to a set-api-key command.
type APIKeyResult struct {
	Valid       bool   `json:"success"`
	DisplayName string `json:"displayName,omitempty"`
}

// ack is the generic {"status":"ok"} / {"error":"..."} body.
type ack struct {
	Status  string `json:"status,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}
