package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/clock"
	"github.com/muurk/tigerscale/internal/command"
	"github.com/muurk/tigerscale/internal/device"
	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/state"
)

// DefaultPollInterval matches the scale's own web page.
const DefaultPollInterval = time.Second

// offlineAfter is the number of consecutive failed polls after which the
// scale is reported offline.
const offlineAfter = 3

// Options configures a Session.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// DisablePush turns off the WebSocket channel; polling alone still
	// keeps the state current.
	DisablePush bool
	// Clock drives the reconciler's timers. Defaults to the wall clock.
	Clock clock.Clock
}

// Health describes the link to the scale. Poll and push failures are never
// reported as errors; they only show up here.
type Health struct {
	LastSuccess         time.Time
	ConsecutiveFailures int
	LastError           error
	PushConnected       bool
}

// Online reports whether the scale answered recently.
func (h Health) Online() bool {
	return !h.LastSuccess.IsZero() && h.ConsecutiveFailures < offlineAfter
}

// Session ties one scale to its state: it polls, listens to the push
// channel, and dispatches commands whose results feed back into the state.
type Session struct {
	Client   *device.Client
	State    *state.Reconciler
	Commands *command.Dispatcher
	Metrics  *Metrics

	push         *device.PushSubscriber
	pollInterval time.Duration
	disablePush  bool
	clk          clock.Clock

	mu     sync.Mutex
	health Health
	subs   []func(Health)
}

// New creates a session for client. Nothing runs until Run is called.
func New(client *device.Client, opts Options) *Session {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	reconciler := state.NewReconciler(clk)
	s := &Session{
		Client:       client,
		State:        reconciler,
		Commands:     command.NewDispatcher(client, reconciler),
		Metrics:      NewMetrics(),
		pollInterval: interval,
		disablePush:  opts.DisablePush,
		clk:          clk,
	}

	reconciler.Subscribe(s.Metrics.observeChange)
	s.Commands.OnOutcome(s.Metrics.observeOutcome)

	s.push = device.NewPushSubscriber(client.PushURL())
	s.push.OnConnection = s.setPushConnected
	return s
}

// OnHealth registers fn for health updates after every poll and every push
// connection change.
func (s *Session) OnHealth(fn func(Health)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Health returns the current link health.
func (s *Session) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// Run polls and listens until ctx is cancelled, then stops both loops and
// the reconciler's timers.
func (s *Session) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pollLoop(ctx)
	}()

	if !s.disablePush {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.push.Run(ctx, s.handlePush)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	s.State.Close()
	logging.Debug("Session stopped", zap.String("device", s.Client.Addr()))
	return nil
}

// PollOnce fetches the full status and applies it.
func (s *Session) PollOnce(ctx context.Context) error {
	snap, err := s.Client.FetchStatus(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.Metrics.Polls.WithLabelValues("error").Inc()
		s.recordPoll(err)
		logging.Debug("Status poll failed",
			zap.String("device", s.Client.Addr()),
			zap.Bool("retryable", device.IsRetryable(err)),
			zap.Error(err),
		)
		return err
	}

	s.Metrics.Polls.WithLabelValues("ok").Inc()
	s.State.Apply(state.SourcePoll, snap)
	s.recordPoll(nil)
	return nil
}

func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		_ = s.PollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) handlePush(snap device.Snapshot) {
	s.Metrics.PushFrames.Inc()
	s.State.Apply(state.SourcePush, snap)
}

func (s *Session) recordPoll(err error) {
	s.mu.Lock()
	if err != nil {
		s.health.ConsecutiveFailures++
		s.health.LastError = err
	} else {
		s.health.ConsecutiveFailures = 0
		s.health.LastError = nil
		s.health.LastSuccess = s.clk.Now()
	}
	h, subs := s.health, s.copySubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(h)
	}
}

func (s *Session) setPushConnected(connected bool) {
	s.Metrics.PushConnected.Set(boolGauge(connected))

	s.mu.Lock()
	s.health.PushConnected = connected
	h, subs := s.health, s.copySubsLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(h)
	}
}

func (s *Session) copySubsLocked() []func(Health) {
	subs := make([]func(Health), len(s.subs))
	copy(subs, s.subs)
	return subs
}
