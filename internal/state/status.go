package state

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// CloudStatus is the scale's link to the TigerTag cloud.
type CloudStatus int

const (
	// CloudDown is the default: no confirmation means disconnected.
	CloudDown CloudStatus = iota
	CloudUp
)

func (c CloudStatus) String() string {
	if c == CloudUp {
		return "up"
	}
	return "down"
}

// APIKeyStatus summarises the API key configured on the scale.
type APIKeyStatus int

const (
	APIKeyNone APIKeyStatus = iota
	APIKeyValid
	APIKeyInvalid
)

func (s APIKeyStatus) String() string {
	switch s {
	case APIKeyValid:
		return "valid"
	case APIKeyInvalid:
		return "invalid"
	default:
		return "none"
	}
}

// UptimePlaceholder is shown when the uptime cannot be formatted.
const UptimePlaceholder = "--:--:--"

// DeriveCloudStatus maps the raw "cloud" field to up or down. Only "up" and
// "ok" (any case) count as up.
func DeriveCloudStatus(raw string) CloudStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "ok":
		return CloudUp
	default:
		return CloudDown
	}
}

// DeriveAPIKeyStatus maps the stored key and its validity flag to a status.
// The flag is ignored when no key is stored.
func DeriveAPIKeyStatus(apiKey string, valid bool) APIKeyStatus {
	if strings.TrimSpace(apiKey) == "" {
		return APIKeyNone
	}
	if valid {
		return APIKeyValid
	}
	return APIKeyInvalid
}

// FormatUptime renders seconds as HH:MM:SS. Hours are not capped at 99.
func FormatUptime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return UptimePlaceholder
	}
	total := int64(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatFactor renders a calibration factor with two decimals.
func FormatFactor(factor float64, known bool) string {
	if !known {
		return "-"
	}
	return strconv.FormatFloat(factor, 'f', 2, 64)
}

// FormatWeight renders grams rounded to the nearest gram, with thousands
// separators.
func FormatWeight(grams float64, known bool) string {
	if !known {
		return "…"
	}
	return humanize.Comma(int64(math.Round(grams))) + " g"
}

// TagLabel is what the UI shows for the presented RFID tag.
func TagLabel(tagID string, known bool) string {
	if !known || tagID == "" {
		return "waiting for tag"
	}
	return tagID
}
