package command

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/device"
	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/state"
)

// Device is the command surface of the scale.
type Device interface {
	Tare(ctx context.Context) error
	SetCalibrationFactor(ctx context.Context, factor float64) error
	SetAPIKey(ctx context.Context, key string) (device.APIKeyResult, error)
	DeleteAPIKey(ctx context.Context) (bool, error)
	ResetWiFi(ctx context.Context) error
	FactoryReset(ctx context.Context) error
	PushWeight(ctx context.Context, grams int) error
}

var _ Device = (*device.Client)(nil)

// StateSink receives confirmed command results that the scale would
// otherwise only report on the next poll.
type StateSink interface {
	ApplyAPIKeyResult(key string, result device.APIKeyResult) []state.Field
	ClearAPIKey() []state.Field
}

var _ StateSink = (*state.Reconciler)(nil)

// Confirm asks the user to approve a destructive command.
type Confirm func() bool

// Dispatcher issues commands to the scale. It never retries, queues or
// deduplicates: two calls make two requests. Methods block until the scale
// answers, so callers run them off the UI goroutine.
type Dispatcher struct {
	dev  Device
	sink StateSink

	mu        sync.Mutex
	subs      []outcomeSub
	nextSubID int
}

type outcomeSub struct {
	id int
	fn func(Outcome)
}

// NewDispatcher creates a dispatcher. sink may be nil.
func NewDispatcher(dev Device, sink StateSink) *Dispatcher {
	return &Dispatcher{dev: dev, sink: sink}
}

// OnOutcome registers fn for every outcome, validation failures included.
func (d *Dispatcher) OnOutcome(fn func(Outcome)) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSubID
	d.nextSubID++
	d.subs = append(d.subs, outcomeSub{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// Tare zeroes the scale.
func (d *Dispatcher) Tare(ctx context.Context) Outcome {
	return d.run(ctx, Tare, func(ctx context.Context, o *Outcome) {
		o.Err = d.dev.Tare(ctx)
	})
}

// SetCalibrationFactor sends factor to the scale. Non-positive or
// non-finite values are refused without a request.
func (d *Dispatcher) SetCalibrationFactor(ctx context.Context, factor float64) Outcome {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return d.publish(Invalid(SetCalibrationFactor, InvalidFactor))
	}
	return d.run(ctx, SetCalibrationFactor, func(ctx context.Context, o *Outcome) {
		o.Factor = factor
		o.Err = d.dev.SetCalibrationFactor(ctx, factor)
	})
}

// SetAPIKey stores key on the scale. The scale checks it against the cloud:
// a refused key is a rejection and marks the key invalid, a transport
// failure changes nothing.
func (d *Dispatcher) SetAPIKey(ctx context.Context, key string) Outcome {
	key = strings.TrimSpace(key)
	if key == "" {
		return d.publish(Invalid(SetAPIKey, EmptyAPIKey))
	}
	return d.run(ctx, SetAPIKey, func(ctx context.Context, o *Outcome) {
		result, err := d.dev.SetAPIKey(ctx, key)
		if err != nil {
			o.Err = err
			return
		}
		if d.sink != nil {
			d.sink.ApplyAPIKeyResult(key, result)
		}
		if !result.Valid {
			o.Kind = KindRejected
			return
		}
		o.DisplayName = strings.TrimSpace(result.DisplayName)
	})
}

// DeleteAPIKey removes the stored API key once confirm approves.
func (d *Dispatcher) DeleteAPIKey(ctx context.Context, confirm Confirm) Outcome {
	if confirm == nil || !confirm() {
		return d.publish(Invalid(DeleteAPIKey, NotConfirmed))
	}
	return d.run(ctx, DeleteAPIKey, func(ctx context.Context, o *Outcome) {
		affirmed, err := d.dev.DeleteAPIKey(ctx)
		if err != nil {
			o.Err = err
			return
		}
		if !affirmed {
			o.Kind = KindRejected
			return
		}
		if d.sink != nil {
			d.sink.ClearAPIKey()
		}
	})
}

// ResetWiFi erases the WiFi credentials once confirm approves.
func (d *Dispatcher) ResetWiFi(ctx context.Context, confirm Confirm) Outcome {
	if confirm == nil || !confirm() {
		return d.publish(Invalid(ResetWiFi, NotConfirmed))
	}
	return d.run(ctx, ResetWiFi, func(ctx context.Context, o *Outcome) {
		o.Err = d.dev.ResetWiFi(ctx)
	})
}

// FactoryReset erases everything stored on the scale once confirm approves.
func (d *Dispatcher) FactoryReset(ctx context.Context, confirm Confirm) Outcome {
	if confirm == nil || !confirm() {
		return d.publish(Invalid(FactoryReset, NotConfirmed))
	}
	return d.run(ctx, FactoryReset, func(ctx context.Context, o *Outcome) {
		o.Err = d.dev.FactoryReset(ctx)
	})
}

// PushWeight sends grams, rounded to the nearest gram, to the cloud for the
// tag currently on the scale.
func (d *Dispatcher) PushWeight(ctx context.Context, grams float64) Outcome {
	if math.IsNaN(grams) || math.IsInf(grams, 0) || math.Round(grams) <= 0 {
		return d.publish(Invalid(PushWeight, InvalidPushWeight))
	}
	rounded := int(math.Round(grams))
	return d.run(ctx, PushWeight, func(ctx context.Context, o *Outcome) {
		o.Err = d.dev.PushWeight(ctx, rounded)
	})
}

// run executes one request. call fills in the outcome; a non-nil Err makes
// it a transport failure.
func (d *Dispatcher) run(ctx context.Context, name Name, call func(context.Context, *Outcome)) Outcome {
	o := Outcome{ID: uuid.NewString(), Command: name, Kind: KindOK}

	logging.Debug("Dispatching command", zap.String("id", o.ID), zap.String("command", string(name)))
	start := time.Now()

	call(ctx, &o)
	if o.Err != nil {
		o.Kind = KindTransport
		logging.Warn("Command failed",
			zap.String("id", o.ID),
			zap.String("command", string(name)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(o.Err),
		)
	} else {
		logging.Info("Command completed",
			zap.String("id", o.ID),
			zap.String("command", string(name)),
			zap.Stringer("outcome", o.Kind),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	return d.publish(o)
}

func (d *Dispatcher) publish(o Outcome) Outcome {
	if o.Kind == KindValidation {
		logging.Debug("Command refused locally",
			zap.String("command", string(o.Command)),
			zap.Stringer("reason", o.Validation),
		)
	}

	d.mu.Lock()
	subs := make([]outcomeSub, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	for _, s := range subs {
		s.fn(o)
	}
	return o
}
