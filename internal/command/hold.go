package command

import (
	"sync"
	"time"

	"github.com/muurk/tigerscale/internal/clock"
)

// Default hold-to-confirm timings.
const (
	DefaultHoldDuration  = 1000 * time.Millisecond
	DefaultFlashDuration = 500 * time.Millisecond
)

// HoldState is the visible state of a hold-to-confirm control.
type HoldState int

const (
	HoldIdle HoldState = iota
	HoldHolding
	// HoldConfirmed is the short success flash after the action ran.
	HoldConfirmed
)

func (s HoldState) String() string {
	switch s {
	case HoldHolding:
		return "holding"
	case HoldConfirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

// HoldOption configures a Hold.
type HoldOption func(*Hold)

// WithHoldDuration sets how long the control must be held.
func WithHoldDuration(d time.Duration) HoldOption {
	return func(h *Hold) { h.holdFor = d }
}

// WithFlashDuration sets how long the success flash lasts.
func WithFlashDuration(d time.Duration) HoldOption {
	return func(h *Hold) { h.flashFor = d }
}

// WithOnChange registers a callback for every state change. It runs
// outside the Hold's lock.
func WithOnChange(fn func(HoldState)) HoldOption {
	return func(h *Hold) { h.onChange = fn }
}

// Hold guards an action behind a press-and-hold gesture. Releasing early
// cancels it; holding for the full duration runs the action exactly once.
type Hold struct {
	clk      clock.Clock
	action   func()
	holdFor  time.Duration
	flashFor time.Duration
	onChange func(HoldState)

	mu       sync.Mutex
	state    HoldState
	timer    clock.Timer
	gen      int
	engaged  time.Time
	disposed bool
}

// NewHold creates an idle control that runs action on confirmation.
func NewHold(clk clock.Clock, action func(), opts ...HoldOption) *Hold {
	if clk == nil {
		clk = clock.New()
	}
	h := &Hold{
		clk:      clk,
		action:   action,
		holdFor:  DefaultHoldDuration,
		flashFor: DefaultFlashDuration,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current state.
func (h *Hold) State() HoldState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Duration returns how long the control must be held.
func (h *Hold) Duration() time.Duration {
	return h.holdFor
}

// Progress returns how much of the hold has elapsed, from 0 to 1.
func (h *Hold) Progress() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case HoldConfirmed:
		return 1
	case HoldHolding:
		if h.holdFor <= 0 {
			return 1
		}
		p := float64(h.clk.Now().Sub(h.engaged)) / float64(h.holdFor)
		if p > 1 {
			p = 1
		}
		return p
	default:
		return 0
	}
}

// Engage starts the hold. It is ignored unless the control is idle.
func (h *Hold) Engage() bool {
	h.mu.Lock()
	if h.disposed || h.state != HoldIdle {
		h.mu.Unlock()
		return false
	}
	h.state = HoldHolding
	h.engaged = h.clk.Now()
	h.gen++
	gen := h.gen
	h.timer = h.clk.AfterFunc(h.holdFor, func() { h.expire(gen) })
	h.mu.Unlock()

	h.notify(HoldHolding)
	return true
}

// Release ends the hold. Releasing before the duration elapsed cancels the
// action; it reports whether anything was cancelled.
func (h *Hold) Release() bool {
	h.mu.Lock()
	if h.state != HoldHolding {
		h.mu.Unlock()
		return false
	}
	h.stopLocked()
	h.state = HoldIdle
	h.mu.Unlock()

	h.notify(HoldIdle)
	return true
}

// Dispose cancels all timers. The control ignores every later call.
func (h *Hold) Dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disposed = true
	h.stopLocked()
	h.state = HoldIdle
}

func (h *Hold) expire(gen int) {
	h.mu.Lock()
	if gen != h.gen || h.disposed || h.state != HoldHolding {
		h.mu.Unlock()
		return
	}
	h.state = HoldConfirmed
	h.gen++
	flashGen := h.gen
	h.timer = h.clk.AfterFunc(h.flashFor, func() { h.endFlash(flashGen) })
	h.mu.Unlock()

	h.notify(HoldConfirmed)
	if h.action != nil {
		h.action()
	}
}

func (h *Hold) endFlash(gen int) {
	h.mu.Lock()
	if gen != h.gen || h.disposed {
		h.mu.Unlock()
		return
	}
	h.state = HoldIdle
	h.timer = nil
	h.mu.Unlock()

	h.notify(HoldIdle)
}

func (h *Hold) stopLocked() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.gen++
}

func (h *Hold) notify(s HoldState) {
	if h.onChange != nil {
		h.onChange(s)
	}
}
