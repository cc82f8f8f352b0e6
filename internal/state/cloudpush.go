package state

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PushPhase is the stage of the scale's automatic push of a weight to the
// cloud.
type PushPhase int

const (
	PushIdle PushPhase = iota
	// PushPending is the countdown before the scale sends; Seconds holds
	// the remaining time.
	PushPending
	PushSending
	PushSuccess
	PushError
)

func (p PushPhase) String() string {
	switch p {
	case PushPending:
		return "pending"
	case PushSending:
		return "sending"
	case PushSuccess:
		return "success"
	case PushError:
		return "error"
	default:
		return "idle"
	}
}

// How long a finished push stays on screen before the indicator clears.
const (
	PushSuccessDisplay = 1500 * time.Millisecond
	PushErrorDisplay   = 2000 * time.Millisecond
)

// CloudPushDisplay is the state of the send-progress indicator.
type CloudPushDisplay struct {
	Phase   PushPhase
	Seconds int
}

// Label is the indicator text; empty when idle.
func (d CloudPushDisplay) Label() string {
	switch d.Phase {
	case PushPending:
		return fmt.Sprintf("sending in %ds", d.Seconds)
	case PushSending:
		return "sending…"
	case PushSuccess:
		return "sent"
	case PushError:
		return "send error"
	default:
		return ""
	}
}

// ParseCloudPush interprets the raw sendToCloud value. ok is false for
// values the indicator does not know, which must leave it unchanged.
func ParseCloudPush(raw string) (CloudPushDisplay, bool) {
	v := strings.TrimSpace(raw)
	switch v {
	case "", "0":
		return CloudPushDisplay{Phase: PushIdle}, true
	case "send":
		return CloudPushDisplay{Phase: PushSending}, true
	case "success":
		return CloudPushDisplay{Phase: PushSuccess}, true
	case "error":
		return CloudPushDisplay{Phase: PushError}, true
	}

	if !isDigits(v) {
		return CloudPushDisplay{}, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return CloudPushDisplay{}, false
	}
	if n == 0 {
		return CloudPushDisplay{Phase: PushIdle}, true
	}
	return CloudPushDisplay{Phase: PushPending, Seconds: n}, true
}

// clearAfter is how long a phase is displayed before reverting to idle.
// Zero means it stays until the scale reports something else.
func (d CloudPushDisplay) clearAfter() time.Duration {
	switch d.Phase {
	case PushSuccess:
		return PushSuccessDisplay
	case PushError:
		return PushErrorDisplay
	default:
		return 0
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
