package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/tigerscale/internal/calibration"
	"github.com/muurk/tigerscale/internal/clock"
	"github.com/muurk/tigerscale/internal/command"
	"github.com/muurk/tigerscale/internal/session"
	"github.com/muurk/tigerscale/internal/state"
)

// calibrationOutcomeMsg carries the result of a wizard action.
type calibrationOutcomeMsg struct {
	outcome command.Outcome
}

// calibrationHoldTickMsg animates the tare hold on the calibration screen.
// It is separate from holdTickMsg so the dashboard's hold keeps its own.
type calibrationHoldTickMsg struct{}

type calibrationKeyMap struct {
	Tare    key.Binding
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Restart key.Binding
	Back    key.Binding
}

func (k calibrationKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tare, k.Up, k.Down, k.Enter, k.Restart, k.Back}
}

func (k calibrationKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tare}, {k.Up, k.Down, k.Enter}, {k.Restart, k.Back}}
}

// CalibrationModel drives the calibration wizard: tare the empty scale,
// put a reference of known weight on it, and send the corrected factor.
type CalibrationModel struct {
	Width  int
	Height int

	ctx     context.Context
	sess    *session.Session
	wizard  *calibration.Wizard
	clk     clock.Clock
	hold    *command.Hold
	refs    []calibration.Reference
	cursor  int
	input   textinput.Model
	bar     progress.Model
	busy    bool
	outcome *command.Outcome
	notice  string
	closed  bool

	// shown is the step the input was last prepared for.
	shown       calibration.Step
	lastTareKey time.Time

	help help.Model
	keys calibrationKeyMap
}

// NewCalibrationModel starts a wizard against the session's scale. The
// reference tare sits behind the same hold-to-confirm gesture as the
// dashboard's tare; its result arrives through br.
func NewCalibrationModel(ctx context.Context, sess *session.Session, catalog *calibration.Catalog, br *bridge, clk clock.Clock, holdFor time.Duration) CalibrationModel {
	if clk == nil {
		clk = clock.New()
	}
	if holdFor <= 0 {
		holdFor = command.DefaultHoldDuration
	}

	wizard := calibration.NewWizard(catalog, sess.State, sess.Commands)
	wizard.OnTransition(func(calibration.Transition) { br.notify(stateChangedMsg{}) })

	hold := command.NewHold(clk,
		func() { br.send(calibrationOutcomeMsg{outcome: wizard.ConfirmTare(ctx)}) },
		command.WithHoldDuration(holdFor),
		command.WithOnChange(func(command.HoldState) { br.notify(stateChangedMsg{}) }),
	)

	bar := progress.New(progress.WithSolidFill(string(PrimaryColor)), progress.WithoutPercentage())
	bar.Width = 30

	input := textinput.New()
	input.Placeholder = "reference weight in grams"
	input.CharLimit = 12
	input.Width = 24

	return CalibrationModel{
		ctx:    ctx,
		sess:   sess,
		wizard: wizard,
		clk:    clk,
		hold:   hold,
		refs:   wizard.Catalog().All(),
		input:  input,
		bar:    bar,
		help:   help.New(),
		keys: calibrationKeyMap{
			Tare:    key.NewBinding(key.WithKeys("t", " "), key.WithHelp("hold t", "tare")),
			Up:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "previous")),
			Down:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "next")),
			Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "continue")),
			Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "calibrate again")),
			Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		},
	}
}

// Init initializes the wizard screen
func (m CalibrationModel) Init() tea.Cmd {
	return nil
}

// Close stops the tare hold's timers
func (m CalibrationModel) Close() {
	if m.hold != nil {
		m.hold.Dispose()
	}
}

// IsClosed reports whether the wizard was dismissed
func (m CalibrationModel) IsClosed() bool { return m.closed }

// Step returns the wizard's current step
func (m CalibrationModel) Step() calibration.Step { return m.wizard.Step() }

// Update handles messages for the calibration screen
func (m CalibrationModel) Update(msg tea.Msg) (CalibrationModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case calibrationOutcomeMsg:
		m.busy = false
		o := msg.outcome
		m.outcome = &o
		m.notice = ""
		m = m.syncStep()
		cmd := m.focusCmd()
		return m, cmd

	case calibrationHoldTickMsg:
		return m.updateHoldTick()

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch m.wizard.Step() {
		case calibration.StepReferenceTare:
			return m.updateTare(msg)
		case calibration.StepMeasureReference:
			return m.updateMeasure(msg)
		case calibration.StepDone:
			return m.updateDone(msg)
		}
	}
	return m, nil
}

func (m CalibrationModel) updateTare(msg tea.KeyMsg) (CalibrationModel, tea.Cmd) {
	if key.Matches(msg, m.keys.Tare) {
		m.lastTareKey = m.clk.Now()
		if m.hold.Engage() {
			m.notice = ""
			m.outcome = nil
			return m, calibrationHoldTick()
		}
		return m, nil
	}

	released := m.hold.Release()
	switch {
	case key.Matches(msg, m.keys.Back):
		m.close()
	case released:
		m.notice = "Tare cancelled."
	case key.Matches(msg, m.keys.Enter):
		m.notice = fmt.Sprintf("Hold t for %s to tare the empty scale.", m.hold.Duration())
	}
	return m, nil
}

// updateHoldTick releases the hold once the tare key stopped repeating.
func (m CalibrationModel) updateHoldTick() (CalibrationModel, tea.Cmd) {
	switch m.hold.State() {
	case command.HoldHolding:
		if m.clk.Now().Sub(m.lastTareKey) > releaseGap {
			if m.hold.Release() {
				m.notice = "Tare cancelled. Keep t held until the bar is full."
			}
			return m, nil
		}
		return m, calibrationHoldTick()
	case command.HoldConfirmed:
		return m, calibrationHoldTick()
	}
	return m, nil
}

func calibrationHoldTick() tea.Cmd {
	return tea.Tick(holdTickInterval, func(time.Time) tea.Msg { return calibrationHoldTickMsg{} })
}

func (m CalibrationModel) updateMeasure(msg tea.KeyMsg) (CalibrationModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m.selectCursor(), nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.refs)-1 {
			m.cursor++
		}
		return m.selectCursor(), nil
	case key.Matches(msg, m.keys.Enter):
		m.wizard.SetReferenceInput(m.input.Value())
		return m.run(m.wizard.Submit)
	case key.Matches(msg, m.keys.Back):
		m.wizard.Back()
		m.outcome = nil
		return m.syncStep(), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.wizard.SetReferenceInput(m.input.Value())
	return m, cmd
}

func (m CalibrationModel) updateDone(msg tea.KeyMsg) (CalibrationModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Restart):
		m.wizard.Restart()
		m.outcome = nil
		m.cursor = 0
		return m.syncStep(), nil
	case key.Matches(msg, m.keys.Enter), key.Matches(msg, m.keys.Back):
		m.close()
	}
	return m, nil
}

func (m *CalibrationModel) close() {
	m.hold.Dispose()
	m.wizard.Close()
	m.input.Blur()
	m.closed = true
}

// selectCursor selects the highlighted reference, pre-filling its weight.
func (m CalibrationModel) selectCursor() CalibrationModel {
	if m.cursor < 0 || m.cursor >= len(m.refs) {
		return m
	}
	if err := m.wizard.SelectReference(m.refs[m.cursor].ID); err == nil {
		m.input.SetValue(m.wizard.ReferenceInput())
		m.input.CursorEnd()
	}
	return m
}

// syncStep prepares the input when the wizard moved to another step.
// Entering the measure step pre-fills the highlighted reference.
func (m CalibrationModel) syncStep() CalibrationModel {
	step := m.wizard.Step()
	if step == m.shown {
		return m
	}
	m.shown = step
	if step != calibration.StepMeasureReference {
		m.input.Blur()
		return m
	}
	return m.selectCursor()
}

func (m *CalibrationModel) focusCmd() tea.Cmd {
	if m.wizard.Step() == calibration.StepMeasureReference && !m.input.Focused() {
		return m.input.Focus()
	}
	return nil
}

// run executes a wizard action off the update loop
func (m CalibrationModel) run(action func(context.Context) command.Outcome) (CalibrationModel, tea.Cmd) {
	m.busy = true
	m.outcome = nil
	ctx := m.ctx
	return m, func() tea.Msg {
		return calibrationOutcomeMsg{outcome: action(ctx)}
	}
}

// View renders the calibration screen
func (m CalibrationModel) View() string {
	return RenderApplicationContainer(m.renderContent(), m.help.View(m.keys), m.Width, m.Height)
}

func (m CalibrationModel) renderContent() string {
	st := m.sess.State.State()

	var b strings.Builder
	b.WriteString(RenderTitle("  CALIBRATION"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Current reading: %s    Factor: %s\n\n",
		WeightStyle.UnsetPadding().Render(state.FormatWeight(st.Weight, st.WeightKnown)),
		state.FormatFactor(st.CalibrationFactor, st.FactorKnown)))

	switch m.wizard.Step() {
	case calibration.StepReferenceTare:
		b.WriteString("  Step 1 of 2: remove everything from the scale.\n\n")
		b.WriteString(m.renderHold())
		b.WriteString("\n")

	case calibration.StepMeasureReference:
		b.WriteString("  Step 2 of 2: put the reference on the scale and pick it below.\n")
		b.WriteString(fmt.Sprintf("  The reference must weigh at least %.0f g.\n\n", calibration.MinReferenceGrams))
		for i, ref := range m.refs {
			label := ref.Label
			if !ref.Custom() {
				label = fmt.Sprintf("%s (%.0f g)", ref.Label, ref.Grams)
			}
			b.WriteString(RenderMenuItem(label, i == m.cursor))
			b.WriteString("\n")
		}
		b.WriteString("\n  Reference weight: ")
		b.WriteString(m.input.View())
		b.WriteString(" g\n")

	case calibration.StepDone:
		b.WriteString("  " + RenderSuccess(fmt.Sprintf("New calibration factor %s saved on the scale.",
			state.FormatFactor(m.wizard.NewFactor(), true))))
		b.WriteString("\n\n  Check the reading against your reference. Press r to calibrate again.\n")
	}

	b.WriteString("\n")
	switch {
	case m.busy:
		b.WriteString("  " + SubtitleStyle.Render("Waiting for the scale..."))
	case m.notice != "":
		b.WriteString("  " + SubtitleStyle.Render(m.notice))
	case m.outcome != nil && !m.outcome.OK():
		b.WriteString("  " + renderOutcome(*m.outcome))
	}
	b.WriteString("\n")
	return b.String()
}

func (m CalibrationModel) renderHold() string {
	var label string
	switch m.hold.State() {
	case command.HoldHolding:
		label = "Keep holding to tare"
	case command.HoldConfirmed:
		label = RenderSuccess("Tare sent")
	default:
		label = SubtitleStyle.Render(fmt.Sprintf("Hold t for %s to tare the empty scale", m.hold.Duration()))
	}
	return "  " + m.bar.ViewAs(m.hold.Progress()) + "  " + label
}
