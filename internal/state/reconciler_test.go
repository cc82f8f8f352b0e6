package state

import (
	"testing"
	"time"

	"github.com/muurk/tigerscale/internal/clock"
	"github.com/muurk/tigerscale/internal/device"
)

func newTestReconciler() (*Reconciler, *clock.Fake) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewReconciler(clk), clk
}

func fullSnapshot() device.Snapshot {
	return device.Snapshot{
		Weight:            device.Ptr(500.0),
		TagID:             device.Ptr("1234"),
		CalibrationFactor: device.Ptr(400.0),
		APIKey:            device.Ptr("abc"),
		APIKeyValid:       device.Ptr(true),
		DisplayName:       device.Ptr("Jane"),
		Cloud:             device.Ptr("ok"),
		UptimeSeconds:     device.Ptr(10.0),
		SendToCloud:       device.Ptr(""),
	}
}

func TestReconciler_SparseMerge(t *testing.T) {
	r, _ := newTestReconciler()
	r.Apply(SourcePoll, fullSnapshot())

	changed := r.Apply(SourcePush, device.Snapshot{Weight: device.Ptr(510.0)})
	if len(changed) != 1 || changed[0] != FieldWeight {
		t.Errorf("changed = %v, want [weight]", changed)
	}

	st := r.State()
	if st.Weight != 510 {
		t.Errorf("Weight = %v, want 510", st.Weight)
	}
	if st.CalibrationFactor != 400 || !st.FactorKnown {
		t.Errorf("CalibrationFactor = %v (known %v), want 400", st.CalibrationFactor, st.FactorKnown)
	}
	if st.TagID != "1234" || st.APIKeyStatus != APIKeyValid || st.CloudStatus != CloudUp {
		t.Errorf("absent fields were overwritten: %+v", st)
	}
}

func TestReconciler_Idempotent(t *testing.T) {
	r, _ := newTestReconciler()

	var events int
	r.Subscribe(func(Change) { events++ })

	first := r.Apply(SourcePoll, fullSnapshot())
	if len(first) == 0 {
		t.Fatal("first snapshot should change state")
	}
	after := events

	if changed := r.Apply(SourcePoll, fullSnapshot()); len(changed) != 0 {
		t.Errorf("second identical snapshot changed %v", changed)
	}
	if events != after {
		t.Errorf("events = %d after repeat, want %d", events, after)
	}
}

func TestReconciler_ChangeEventsCarryState(t *testing.T) {
	r, _ := newTestReconciler()

	var got []Change
	cancel := r.Subscribe(func(c Change) { got = append(got, c) })

	r.Apply(SourcePush, device.Snapshot{Weight: device.Ptr(12.0), TagID: device.Ptr("")})
	if len(got) != 2 {
		t.Fatalf("got %d changes, want 2", len(got))
	}
	if got[0].Field != FieldWeight || got[0].Source != SourcePush || got[0].State.Weight != 12 {
		t.Errorf("first change = %+v", got[0])
	}
	if got[1].Field != FieldTag || !got[1].State.TagKnown {
		t.Errorf("second change = %+v", got[1])
	}

	cancel()
	r.Apply(SourcePush, device.Snapshot{Weight: device.Ptr(13.0)})
	if len(got) != 2 {
		t.Errorf("cancelled subscriber still notified")
	}
}

func TestReconciler_RejectsNonPositiveFactor(t *testing.T) {
	r, _ := newTestReconciler()
	r.Apply(SourcePoll, device.Snapshot{CalibrationFactor: device.Ptr(400.0)})

	for _, f := range []float64{0, -3} {
		if changed := r.Apply(SourcePoll, device.Snapshot{CalibrationFactor: device.Ptr(f)}); len(changed) != 0 {
			t.Errorf("factor %v changed %v", f, changed)
		}
	}
	if r.State().CalibrationFactor != 400 {
		t.Errorf("CalibrationFactor = %v, want 400", r.State().CalibrationFactor)
	}
}

func TestReconciler_APIKeyStatusFromMergedValues(t *testing.T) {
	r, _ := newTestReconciler()
	r.Apply(SourcePoll, device.Snapshot{APIKey: device.Ptr("abc"), APIKeyValid: device.Ptr(true)})

	// Only the flag arrives; the key from the earlier snapshot still counts.
	r.Apply(SourcePoll, device.Snapshot{APIKeyValid: device.Ptr(false)})
	if got := r.State().APIKeyStatus; got != APIKeyInvalid {
		t.Errorf("APIKeyStatus = %v, want invalid", got)
	}

	r.Apply(SourcePoll, device.Snapshot{APIKey: device.Ptr("")})
	if got := r.State().APIKeyStatus; got != APIKeyNone {
		t.Errorf("APIKeyStatus = %v, want none", got)
	}
}

func TestReconciler_APIKeyCommandResults(t *testing.T) {
	r, _ := newTestReconciler()

	r.ApplyAPIKeyResult("key-1", device.APIKeyResult{Valid: true, DisplayName: "Jane"})
	st := r.State()
	if st.APIKeyStatus != APIKeyValid || st.DisplayName != "Jane" || st.APIKey != "key-1" {
		t.Errorf("after valid result: %+v", st)
	}

	r.ApplyAPIKeyResult("key-2", device.APIKeyResult{Valid: false})
	st = r.State()
	if st.APIKeyStatus != APIKeyInvalid || st.DisplayName != "" {
		t.Errorf("after rejected result: %+v", st)
	}

	var sources []Source
	r.Subscribe(func(c Change) { sources = append(sources, c.Source) })
	r.ClearAPIKey()
	if r.State().APIKeyStatus != APIKeyNone {
		t.Errorf("APIKeyStatus = %v after clear, want none", r.State().APIKeyStatus)
	}
	for _, s := range sources {
		if s != SourceCommand {
			t.Errorf("source = %v, want command", s)
		}
	}
}

func TestReconciler_CloudStatusDerivedOnce(t *testing.T) {
	r, _ := newTestReconciler()
	if r.State().CloudStatus != CloudDown {
		t.Fatal("cloud should start down")
	}

	if changed := r.Apply(SourcePoll, device.Snapshot{Cloud: device.Ptr("up")}); len(changed) != 1 {
		t.Errorf("changed = %v, want [cloud]", changed)
	}
	// "ok" and "up" derive the same status: no visible change.
	if changed := r.Apply(SourcePoll, device.Snapshot{Cloud: device.Ptr("ok")}); len(changed) != 0 {
		t.Errorf("changed = %v, want none", changed)
	}
}

func TestReconciler_CloudPushSuccessClears(t *testing.T) {
	r, clk := newTestReconciler()

	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("3")})
	if got := r.State().CloudPush; got.Phase != PushPending || got.Seconds != 3 {
		t.Errorf("CloudPush = %+v, want pending 3", got)
	}

	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("send")})
	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("success")})
	if got := r.State().CloudPush.Phase; got != PushSuccess {
		t.Fatalf("Phase = %v, want success", got)
	}

	var cleared []Change
	r.Subscribe(func(c Change) { cleared = append(cleared, c) })

	clk.Advance(1499 * time.Millisecond)
	if got := r.State().CloudPush.Phase; got != PushSuccess {
		t.Errorf("Phase = %v before 1.5s, want success", got)
	}

	clk.Advance(time.Millisecond)
	if got := r.State().CloudPush.Phase; got != PushIdle {
		t.Errorf("Phase = %v after 1.5s, want idle", got)
	}
	if len(cleared) != 1 || cleared[0].Source != SourceTimer {
		t.Errorf("clear events = %+v", cleared)
	}

	// The device still reporting "success" does not re-trigger the indicator.
	if changed := r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("success")}); len(changed) != 0 {
		t.Errorf("unchanged raw value produced %v", changed)
	}
}

func TestReconciler_CloudPushErrorClearsAfterTwoSeconds(t *testing.T) {
	r, clk := newTestReconciler()

	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("error")})
	clk.Advance(1999 * time.Millisecond)
	if got := r.State().CloudPush.Phase; got != PushError {
		t.Errorf("Phase = %v, want error", got)
	}
	clk.Advance(time.Millisecond)
	if got := r.State().CloudPush.Phase; got != PushIdle {
		t.Errorf("Phase = %v, want idle", got)
	}
}

func TestReconciler_NewPushValueCancelsClear(t *testing.T) {
	r, clk := newTestReconciler()

	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("success")})
	clk.Advance(time.Second)
	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("5")})

	clk.Advance(time.Second)
	if got := r.State().CloudPush; got.Phase != PushPending || got.Seconds != 5 {
		t.Errorf("CloudPush = %+v, want pending 5 to survive the old timer", got)
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clk.Pending())
	}
}

func TestReconciler_UnknownPushValueIgnored(t *testing.T) {
	r, _ := newTestReconciler()

	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("send")})
	if changed := r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("???")}); len(changed) != 0 {
		t.Errorf("unknown value changed %v", changed)
	}
	if got := r.State().CloudPush.Phase; got != PushSending {
		t.Errorf("Phase = %v, want sending", got)
	}
}

func TestReconciler_CloseCancelsTimer(t *testing.T) {
	r, clk := newTestReconciler()

	r.Apply(SourcePoll, device.Snapshot{SendToCloud: device.Ptr("success")})
	r.Close()
	clk.Advance(5 * time.Second)

	if got := r.State().CloudPush.Phase; got != PushSuccess {
		t.Errorf("Phase = %v, want success to stay after Close", got)
	}
	if clk.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clk.Pending())
	}
}

func TestReconciler_UpdatedAt(t *testing.T) {
	r, clk := newTestReconciler()
	clk.Advance(time.Minute)
	r.Apply(SourcePoll, device.Snapshot{})

	if got := r.State().UpdatedAt; !got.Equal(clk.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", got, clk.Now())
	}
}
