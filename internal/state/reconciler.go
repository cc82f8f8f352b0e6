package state

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/clock"
	"github.com/muurk/tigerscale/internal/device"
	"github.com/muurk/tigerscale/internal/logging"
)

// Source identifies what produced an update.
type Source int

const (
	SourcePoll Source = iota
	SourcePush
	SourceCommand
	// SourceTimer marks the cloud-push indicator clearing itself.
	SourceTimer
)

func (s Source) String() string {
	switch s {
	case SourcePoll:
		return "poll"
	case SourcePush:
		return "push"
	case SourceCommand:
		return "command"
	case SourceTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Field is a family of ClientState fields that change together.
type Field int

const (
	FieldWeight Field = iota
	FieldTag
	FieldCalibrationFactor
	FieldAPIKey
	FieldDisplayName
	FieldCloudStatus
	FieldUptime
	FieldCloudPush
	FieldWiFi
	FieldIP
)

var fieldNames = map[Field]string{
	FieldWeight:            "weight",
	FieldTag:               "tag",
	FieldCalibrationFactor: "calibrationFactor",
	FieldAPIKey:            "apiKey",
	FieldDisplayName:       "displayName",
	FieldCloudStatus:       "cloud",
	FieldUptime:            "uptime",
	FieldCloudPush:         "cloudPush",
	FieldWiFi:              "wifi",
	FieldIP:                "ip",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// ClientState is the merged view of the scale. The Known flags tell an unset
// value apart from a zero one.
type ClientState struct {
	Weight      float64
	WeightKnown bool

	TagID    string
	TagKnown bool
	TagIDHex string

	CalibrationFactor float64
	FactorKnown       bool

	APIKey       string
	APIKeyValid  bool
	APIKeyStatus APIKeyStatus
	DisplayName  string

	CloudStatus CloudStatus

	UptimeSeconds float64
	UptimeKnown   bool

	CloudPush CloudPushDisplay

	WiFi string
	IP   string

	// UpdatedAt is when the last snapshot was applied, changed or not.
	UpdatedAt time.Time
}

// Change is delivered to subscribers once per changed field family.
type Change struct {
	Field  Field
	Source Source
	State  ClientState
}

type subscriber struct {
	id int
	fn func(Change)
}

// Reconciler owns the ClientState for one session and merges snapshots from
// the poll and push channels into it. Absent fields never overwrite and
// unchanged fields are not reported. There is no ordering between channels:
// the last write wins.
type Reconciler struct {
	clk clock.Clock

	mu        sync.Mutex
	state     ClientState
	pushRaw   *string
	pushTimer clock.Timer
	pushGen   int
	closed    bool
	subs      []subscriber
	nextSubID int
}

// NewReconciler creates an empty state. Pass clock.New() outside of tests.
func NewReconciler(clk clock.Clock) *Reconciler {
	if clk == nil {
		clk = clock.New()
	}
	return &Reconciler{clk: clk}
}

// Subscribe registers fn for every change. Callbacks run on the goroutine
// that applied the update, after the state lock is released.
func (r *Reconciler) Subscribe(fn func(Change)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	r.subs = append(r.subs, subscriber{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// State returns a copy of the current state.
func (r *Reconciler) State() ClientState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Apply merges snap and returns the field families that changed.
func (r *Reconciler) Apply(src Source, snap device.Snapshot) []Field {
	r.mu.Lock()
	r.state.UpdatedAt = r.clk.Now()

	var changed []Field
	mark := func(f Field) { changed = append(changed, f) }

	st := &r.state

	if snap.Weight != nil && (!st.WeightKnown || st.Weight != *snap.Weight) {
		st.Weight = *snap.Weight
		st.WeightKnown = true
		mark(FieldWeight)
	}

	if snap.TagID != nil || snap.TagIDHex != nil {
		tagChanged := false
		if snap.TagID != nil && (!st.TagKnown || st.TagID != *snap.TagID) {
			st.TagID = *snap.TagID
			st.TagKnown = true
			tagChanged = true
		}
		if snap.TagIDHex != nil && st.TagIDHex != *snap.TagIDHex {
			st.TagIDHex = *snap.TagIDHex
			tagChanged = true
		}
		if tagChanged {
			mark(FieldTag)
		}
	}

	if f := snap.CalibrationFactor; f != nil {
		if *f > 0 && !math.IsInf(*f, 0) && !math.IsNaN(*f) {
			if !st.FactorKnown || st.CalibrationFactor != *f {
				st.CalibrationFactor = *f
				st.FactorKnown = true
				mark(FieldCalibrationFactor)
			}
		} else {
			logging.Debug("Ignoring non-positive calibration factor",
				zap.Float64("factor", *f), zap.Stringer("source", src))
		}
	}

	if snap.APIKey != nil || snap.APIKeyValid != nil {
		key, valid := st.APIKey, st.APIKeyValid
		if snap.APIKey != nil {
			key = *snap.APIKey
		}
		if snap.APIKeyValid != nil {
			valid = *snap.APIKeyValid
		}
		if r.setAPIKeyLocked(key, valid) {
			mark(FieldAPIKey)
		}
	}

	if snap.DisplayName != nil && st.DisplayName != *snap.DisplayName {
		st.DisplayName = *snap.DisplayName
		mark(FieldDisplayName)
	}

	if snap.Cloud != nil {
		if status := DeriveCloudStatus(*snap.Cloud); status != st.CloudStatus {
			st.CloudStatus = status
			mark(FieldCloudStatus)
		}
	}

	if snap.UptimeSeconds != nil && (!st.UptimeKnown || st.UptimeSeconds != *snap.UptimeSeconds) {
		st.UptimeSeconds = *snap.UptimeSeconds
		st.UptimeKnown = true
		mark(FieldUptime)
	}

	if snap.SendToCloud != nil && r.applyCloudPushLocked(*snap.SendToCloud) {
		mark(FieldCloudPush)
	}

	if snap.WiFi != nil && st.WiFi != *snap.WiFi {
		st.WiFi = *snap.WiFi
		mark(FieldWiFi)
	}

	if snap.IP != nil && st.IP != *snap.IP {
		st.IP = *snap.IP
		mark(FieldIP)
	}

	r.notifyUnlock(src, changed)
	return changed
}

// ApplyAPIKeyResult records the scale's answer to a set-api-key command.
func (r *Reconciler) ApplyAPIKeyResult(key string, result device.APIKeyResult) []Field {
	r.mu.Lock()

	var changed []Field
	if r.setAPIKeyLocked(key, result.Valid) {
		changed = append(changed, FieldAPIKey)
	}

	name := ""
	if result.Valid {
		name = result.DisplayName
	}
	if r.state.DisplayName != name {
		r.state.DisplayName = name
		changed = append(changed, FieldDisplayName)
	}

	r.notifyUnlock(SourceCommand, changed)
	return changed
}

// ClearAPIKey records a confirmed deletion of the API key.
func (r *Reconciler) ClearAPIKey() []Field {
	r.mu.Lock()

	var changed []Field
	if r.setAPIKeyLocked("", false) {
		changed = append(changed, FieldAPIKey)
	}
	if r.state.DisplayName != "" {
		r.state.DisplayName = ""
		changed = append(changed, FieldDisplayName)
	}

	r.notifyUnlock(SourceCommand, changed)
	return changed
}

// Close cancels the pending indicator timer. The state stays readable.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopPushTimerLocked()
}

// setAPIKeyLocked stores the merged key and flag and re-derives the status.
func (r *Reconciler) setAPIKeyLocked(key string, valid bool) bool {
	st := &r.state
	status := DeriveAPIKeyStatus(key, valid)
	if st.APIKey == key && st.APIKeyValid == valid && st.APIKeyStatus == status {
		return false
	}
	st.APIKey = key
	st.APIKeyValid = valid
	st.APIKeyStatus = status
	return true
}

// applyCloudPushLocked reacts to a change of the raw sendToCloud value.
func (r *Reconciler) applyCloudPushLocked(raw string) bool {
	if r.pushRaw != nil && *r.pushRaw == raw {
		return false
	}

	display, ok := ParseCloudPush(raw)
	if !ok {
		logging.Debug("Unknown sendToCloud value", zap.String("value", raw))
		return false
	}
	r.pushRaw = &raw
	r.stopPushTimerLocked()

	if d := display.clearAfter(); d > 0 && !r.closed {
		r.pushGen++
		gen := r.pushGen
		r.pushTimer = r.clk.AfterFunc(d, func() { r.clearCloudPush(gen) })
	}

	if r.state.CloudPush == display {
		return false
	}
	r.state.CloudPush = display
	return true
}

func (r *Reconciler) stopPushTimerLocked() {
	if r.pushTimer != nil {
		r.pushTimer.Stop()
		r.pushTimer = nil
	}
	r.pushGen++
}

func (r *Reconciler) clearCloudPush(gen int) {
	r.mu.Lock()
	if gen != r.pushGen || r.closed {
		r.mu.Unlock()
		return
	}
	r.pushTimer = nil

	var changed []Field
	if r.state.CloudPush.Phase != PushIdle {
		r.state.CloudPush = CloudPushDisplay{Phase: PushIdle}
		changed = append(changed, FieldCloudPush)
	}
	r.notifyUnlock(SourceTimer, changed)
}

// notifyUnlock releases the lock and then delivers one Change per field.
func (r *Reconciler) notifyUnlock(src Source, changed []Field) {
	if len(changed) == 0 {
		r.mu.Unlock()
		return
	}
	snapshot := r.state
	subs := make([]subscriber, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, f := range changed {
		for _, s := range subs {
			s.fn(Change{Field: f, Source: src, State: snapshot})
		}
	}
}
