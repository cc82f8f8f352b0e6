package calibration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/command"
	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/state"
)

// Step is a wizard step.
type Step int

const (
	// StepReferenceTare: the scale must be empty; confirming tares it.
	StepReferenceTare Step = iota
	// StepMeasureReference: the reference is on the scale; its known
	// weight is entered and submitted.
	StepMeasureReference
	// StepDone: the new factor was acknowledged by the scale.
	StepDone
	// StepClosed: the wizard was dismissed and accepts nothing further.
	StepClosed
)

func (s Step) String() string {
	switch s {
	case StepReferenceTare:
		return "reference-tare"
	case StepMeasureReference:
		return "measure-reference"
	case StepDone:
		return "done"
	case StepClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transition is published on every step change.
type Transition struct {
	From Step
	To   Step
}

// StateReader gives the wizard the live weight and calibration factor.
type StateReader interface {
	State() state.ClientState
}

// Commander sends the two commands the wizard needs.
type Commander interface {
	Tare(ctx context.Context) command.Outcome
	SetCalibrationFactor(ctx context.Context, factor float64) command.Outcome
}

var _ Commander = (*command.Dispatcher)(nil)

// Wizard walks the user through calibrating the scale against a reference
// of known weight. Every action returns a command.Outcome; none panics or
// returns a bare error.
type Wizard struct {
	catalog *Catalog
	reader  StateReader
	cmd     Commander

	mu        sync.Mutex
	step      Step
	selected  string
	input     string
	newFactor float64
	subs      []func(Transition)
}

// NewWizard creates a wizard at StepReferenceTare.
func NewWizard(catalog *Catalog, reader StateReader, cmd Commander) *Wizard {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Wizard{catalog: catalog, reader: reader, cmd: cmd}
}

// Catalog returns the references offered by the wizard.
func (w *Wizard) Catalog() *Catalog {
	return w.catalog
}

// OnTransition registers fn for every step change. It runs outside the
// wizard's lock. Subscriptions end when the wizard is closed.
func (w *Wizard) OnTransition(fn func(Transition)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// SelectedReference returns the chosen reference, if any.
func (w *Wizard) SelectedReference() (Reference, bool) {
	w.mu.Lock()
	id := w.selected
	w.mu.Unlock()
	if id == "" {
		return Reference{}, false
	}
	return w.catalog.Lookup(id)
}

// ReferenceInput returns the reference weight as currently entered.
func (w *Wizard) ReferenceInput() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input
}

// NewFactor returns the factor acknowledged by the scale. It is only
// meaningful at StepDone.
func (w *Wizard) NewFactor() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.newFactor
}

// ConfirmTare tares the empty scale and moves on to measuring the reference.
// On failure the wizard stays where it is.
func (w *Wizard) ConfirmTare(ctx context.Context) command.Outcome {
	if w.Step() != StepReferenceTare {
		return command.Invalid(command.Tare, command.OutOfStep)
	}

	outcome := w.cmd.Tare(ctx)
	if !outcome.OK() {
		return outcome
	}
	w.transition(StepReferenceTare, StepMeasureReference)
	return outcome
}

// SelectReference picks a catalog entry. A known reference pre-fills its
// weight; the custom entry clears the input for typing.
func (w *Wizard) SelectReference(id string) error {
	ref, ok := w.catalog.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown reference %q", id)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = ref.ID
	if ref.Custom() {
		w.input = ""
	} else {
		w.input = strconv.FormatFloat(ref.Grams, 'f', -1, 64)
	}
	return nil
}

// SetReferenceInput replaces the typed reference weight.
func (w *Wizard) SetReferenceInput(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.input = text
}

// Submit validates the reference weight against the live reading, computes
// the new factor and sends it. The checks run in a fixed order: the input
// must be a positive number, at least MinReferenceGrams, the current
// weight and factor must be known, and the result must be positive. Only
// an acknowledged factor moves the wizard to StepDone.
func (w *Wizard) Submit(ctx context.Context) command.Outcome {
	w.mu.Lock()
	step, input := w.step, w.input
	w.mu.Unlock()

	if step != StepMeasureReference {
		return command.Invalid(command.SetCalibrationFactor, command.OutOfStep)
	}

	reference, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || !positiveFinite(reference) {
		return command.Invalid(command.SetCalibrationFactor, command.InvalidWeight)
	}
	if reference < MinReferenceGrams {
		return command.Invalid(command.SetCalibrationFactor, command.TooLight)
	}

	st := w.reader.State()
	if !st.WeightKnown || !st.FactorKnown {
		return command.Invalid(command.SetCalibrationFactor, command.DataUnavailable)
	}

	factor, err := ComputeNewFactor(st.CalibrationFactor, st.Weight, reference)
	if err != nil {
		if !errors.Is(err, ErrReferenceTooLight) {
			return command.Invalid(command.SetCalibrationFactor, command.InvalidFactor)
		}
		return command.Invalid(command.SetCalibrationFactor, command.TooLight)
	}

	logging.Debug("Computed calibration factor",
		zap.Float64("current", st.CalibrationFactor),
		zap.Float64("displayed", st.Weight),
		zap.Float64("reference", reference),
		zap.Float64("new", factor),
	)

	outcome := w.cmd.SetCalibrationFactor(ctx, factor)
	if !outcome.OK() {
		return outcome
	}

	w.mu.Lock()
	w.newFactor = factor
	w.mu.Unlock()
	w.transition(StepMeasureReference, StepDone)
	return outcome
}

// Back returns from StepMeasureReference to StepReferenceTare and clears
// the typed weight.
func (w *Wizard) Back() bool {
	w.mu.Lock()
	if w.step != StepMeasureReference {
		w.mu.Unlock()
		return false
	}
	w.input = ""
	w.mu.Unlock()

	return w.transition(StepMeasureReference, StepReferenceTare)
}

// Restart starts a new calibration from StepDone, forgetting the previous
// selection and weight.
func (w *Wizard) Restart() bool {
	w.mu.Lock()
	if w.step != StepDone {
		w.mu.Unlock()
		return false
	}
	w.selected = ""
	w.input = ""
	w.newFactor = 0
	w.mu.Unlock()

	return w.transition(StepDone, StepReferenceTare)
}

// Close dismisses the wizard. Results of commands still in flight no longer
// move it.
func (w *Wizard) Close() {
	w.mu.Lock()
	from := w.step
	if from == StepClosed {
		w.mu.Unlock()
		return
	}
	w.step = StepClosed
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()

	for _, fn := range subs {
		fn(Transition{From: from, To: StepClosed})
	}
}

// transition moves from one step to another if the wizard is still at
// from. A command that completes after the user navigated away is ignored.
func (w *Wizard) transition(from, to Step) bool {
	w.mu.Lock()
	if w.step != from {
		w.mu.Unlock()
		return false
	}
	w.step = to
	subs := make([]func(Transition), len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	logging.Debug("Calibration step", zap.Stringer("from", from), zap.Stringer("to", to))
	for _, fn := range subs {
		fn(Transition{From: from, To: to})
	}
	return true
}
