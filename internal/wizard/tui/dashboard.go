package tui

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/tigerscale/internal/clock"
	"github.com/muurk/tigerscale/internal/command"
	"github.com/muurk/tigerscale/internal/session"
	"github.com/muurk/tigerscale/internal/state"
	"github.com/muurk/tigerscale/internal/ui"
)

const (
	// holdTickInterval animates the hold progress bar.
	holdTickInterval = 50 * time.Millisecond

	// releaseGap is how long after the last tare key press the hold is
	// treated as released. Terminals report no key-up events; a held key
	// instead repeats, typically every 30-50ms after an initial delay
	// below this gap.
	releaseGap = 650 * time.Millisecond
)

type holdTickMsg struct{}

// outcomeMsg carries the result of a dashboard command.
type outcomeMsg struct {
	outcome command.Outcome
}

type dashboardMode int

const (
	modeNormal dashboardMode = iota
	modeAPIKey
	modePushWeight
	modeConfirmDeleteAPIKey
	modeConfirmResetWiFi
	modeConfirmFactoryReset
)

// dashboardKeyMap defines key bindings for the dashboard
type dashboardKeyMap struct {
	Tare         key.Binding
	Calibrate    key.Binding
	APIKey       key.Binding
	DeleteAPIKey key.Binding
	PushWeight   key.Binding
	ResetWiFi    key.Binding
	FactoryReset key.Binding
	Back         key.Binding
	Quit         key.Binding
}

func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tare, k.Calibrate, k.APIKey, k.DeleteAPIKey, k.PushWeight, k.ResetWiFi, k.FactoryReset, k.Back, k.Quit}
}

func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tare, k.Calibrate, k.PushWeight},
		{k.APIKey, k.DeleteAPIKey},
		{k.ResetWiFi, k.FactoryReset},
		{k.Back, k.Quit},
	}
}

// inputKeyMap is shown while an inline editor or confirmation is open
type inputKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (k inputKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

func (k inputKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// DashboardModel shows the live state of one scale and runs its commands
type DashboardModel struct {
	Width  int
	Height int

	addr  string
	ctx   context.Context
	sess  *session.Session
	clk   clock.Clock
	hold  *command.Hold
	input textinput.Model
	bar   progress.Model

	mode        dashboardMode
	busy        bool
	lastOutcome *command.Outcome
	notice      string
	lastTareKey time.Time

	help       help.Model
	keys       dashboardKeyMap
	inputKeys  inputKeyMap
	promptKeys inputKeyMap

	backRequested      bool
	quitRequested      bool
	calibrateRequested bool
}

// NewDashboardModel creates the dashboard for a running session. Results of
// the hold-to-tare control arrive through br.
func NewDashboardModel(ctx context.Context, sess *session.Session, br *bridge, clk clock.Clock, holdFor time.Duration) DashboardModel {
	if clk == nil {
		clk = clock.New()
	}
	if holdFor <= 0 {
		holdFor = command.DefaultHoldDuration
	}

	commands := sess.Commands
	hold := command.NewHold(clk,
		func() { br.send(outcomeMsg{outcome: commands.Tare(ctx)}) },
		command.WithHoldDuration(holdFor),
		command.WithOnChange(func(command.HoldState) { br.notify(stateChangedMsg{}) }),
	)

	input := textinput.New()
	input.CharLimit = 128
	input.Width = 40

	bar := progress.New(progress.WithSolidFill(string(PrimaryColor)), progress.WithoutPercentage())
	bar.Width = 30

	return DashboardModel{
		addr:  sess.Client.Addr(),
		ctx:   ctx,
		sess:  sess,
		clk:   clk,
		hold:  hold,
		input: input,
		bar:   bar,
		help:  help.New(),
		keys: dashboardKeyMap{
			Tare: key.NewBinding(
				key.WithKeys("t", " "),
				key.WithHelp("hold t", "tare"),
			),
			Calibrate: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "calibrate"),
			),
			APIKey: key.NewBinding(
				key.WithKeys("k"),
				key.WithHelp("k", "api key"),
			),
			DeleteAPIKey: key.NewBinding(
				key.WithKeys("x"),
				key.WithHelp("x", "delete key"),
			),
			PushWeight: key.NewBinding(
				key.WithKeys("p"),
				key.WithHelp("p", "push weight"),
			),
			ResetWiFi: key.NewBinding(
				key.WithKeys("w"),
				key.WithHelp("w", "reset wifi"),
			),
			FactoryReset: key.NewBinding(
				key.WithKeys("f"),
				key.WithHelp("f", "factory reset"),
			),
			Back: key.NewBinding(
				key.WithKeys("esc"),
				key.WithHelp("esc", "devices"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q"),
				key.WithHelp("q", "quit"),
			),
		},
		inputKeys: inputKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
		promptKeys: inputKeyMap{
			Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
		},
	}
}

// Init initializes the dashboard
func (m DashboardModel) Init() tea.Cmd {
	return nil
}

// Close stops the hold control's timers
func (m DashboardModel) Close() {
	m.hold.Dispose()
}

// IsBackRequested reports whether the user asked to return to discovery
func (m DashboardModel) IsBackRequested() bool { return m.backRequested }

// IsQuitRequested reports whether the user asked to quit
func (m DashboardModel) IsQuitRequested() bool { return m.quitRequested }

// IsCalibrateRequested reports whether the user asked for the calibration wizard
func (m DashboardModel) IsCalibrateRequested() bool { return m.calibrateRequested }

// ClearRequests resets the navigation flags once the app acted on them
func (m *DashboardModel) ClearRequests() {
	m.backRequested = false
	m.quitRequested = false
	m.calibrateRequested = false
}

// Update handles messages for the dashboard
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case outcomeMsg:
		m.busy = false
		o := msg.outcome
		m.lastOutcome = &o
		m.notice = ""
		return m, nil

	case holdTickMsg:
		return m.updateHoldTick()

	case tea.KeyMsg:
		switch m.mode {
		case modeAPIKey, modePushWeight:
			return m.updateInput(msg)
		case modeConfirmDeleteAPIKey, modeConfirmResetWiFi, modeConfirmFactoryReset:
			return m.updateConfirm(msg)
		default:
			return m.updateNormal(msg)
		}
	}

	return m, nil
}

func (m DashboardModel) updateHoldTick() (DashboardModel, tea.Cmd) {
	switch m.hold.State() {
	case command.HoldHolding:
		if m.clk.Now().Sub(m.lastTareKey) > releaseGap {
			if m.hold.Release() {
				m.notice = "Tare cancelled. Keep t held until the bar is full."
			}
			return m, nil
		}
		return m, holdTick()
	case command.HoldConfirmed:
		return m, holdTick()
	}
	return m, nil
}

func holdTick() tea.Cmd {
	return tea.Tick(holdTickInterval, func(time.Time) tea.Msg { return holdTickMsg{} })
}

// updateNormal handles keys on the main dashboard
func (m DashboardModel) updateNormal(msg tea.KeyMsg) (DashboardModel, tea.Cmd) {
	if key.Matches(msg, m.keys.Tare) {
		m.lastTareKey = m.clk.Now()
		if m.hold.Engage() {
			m.notice = ""
			return m, holdTick()
		}
		return m, nil
	}

	// Any other key lets go of the tare control.
	if m.hold.Release() {
		m.notice = "Tare cancelled."
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitRequested = true
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.backRequested = true
		return m, nil

	case key.Matches(msg, m.keys.Calibrate):
		m.calibrateRequested = true
		return m, nil
	}

	if m.busy {
		m.notice = "Waiting for the scale to answer..."
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.APIKey):
		m.mode = modeAPIKey
		m.input.SetValue("")
		m.input.Placeholder = "API key"
		m.input.EchoMode = textinput.EchoPassword
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.PushWeight):
		m.mode = modePushWeight
		st := m.sess.State.State()
		m.input.SetValue("")
		if st.WeightKnown {
			m.input.SetValue(strconv.FormatFloat(math.Round(st.Weight), 'f', 0, 64))
		}
		m.input.Placeholder = "grams"
		m.input.EchoMode = textinput.EchoNormal
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.DeleteAPIKey):
		m.mode = modeConfirmDeleteAPIKey
		return m, nil

	case key.Matches(msg, m.keys.ResetWiFi):
		m.mode = modeConfirmResetWiFi
		return m, nil

	case key.Matches(msg, m.keys.FactoryReset):
		m.mode = modeConfirmFactoryReset
		return m, nil
	}

	return m, nil
}

// updateInput handles the inline API key and push weight editors
func (m DashboardModel) updateInput(msg tea.KeyMsg) (DashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.inputKeys.Cancel):
		m.mode = modeNormal
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.inputKeys.Confirm):
		value := m.input.Value()
		mode := m.mode
		m.mode = modeNormal
		m.input.Blur()
		m.input.SetValue("")

		if mode == modeAPIKey {
			return m.run(func(ctx context.Context) command.Outcome {
				return m.sess.Commands.SetAPIKey(ctx, value)
			})
		}
		grams, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			grams = math.NaN()
		}
		return m.run(func(ctx context.Context) command.Outcome {
			return m.sess.Commands.PushWeight(ctx, grams)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateConfirm handles the destructive operation prompts
func (m DashboardModel) updateConfirm(msg tea.KeyMsg) (DashboardModel, tea.Cmd) {
	mode := m.mode
	switch {
	case key.Matches(msg, m.promptKeys.Confirm):
		m.mode = modeNormal
		confirmed := func() bool { return true }
		switch mode {
		case modeConfirmDeleteAPIKey:
			return m.run(func(ctx context.Context) command.Outcome {
				return m.sess.Commands.DeleteAPIKey(ctx, confirmed)
			})
		case modeConfirmResetWiFi:
			return m.run(func(ctx context.Context) command.Outcome {
				return m.sess.Commands.ResetWiFi(ctx, confirmed)
			})
		}
		return m.run(func(ctx context.Context) command.Outcome {
			return m.sess.Commands.FactoryReset(ctx, confirmed)
		})

	case key.Matches(msg, m.promptKeys.Cancel):
		m.mode = modeNormal
		m.notice = "Cancelled."
	}
	return m, nil
}

// run executes a command off the update loop
func (m DashboardModel) run(fn func(ctx context.Context) command.Outcome) (DashboardModel, tea.Cmd) {
	m.busy = true
	m.notice = ""
	ctx := m.ctx
	return m, func() tea.Msg {
		return outcomeMsg{outcome: fn(ctx)}
	}
}

// View renders the dashboard
func (m DashboardModel) View() string {
	var helpText string
	switch m.mode {
	case modeAPIKey, modePushWeight:
		helpText = m.help.View(m.inputKeys)
	case modeConfirmDeleteAPIKey, modeConfirmResetWiFi, modeConfirmFactoryReset:
		helpText = m.help.View(m.promptKeys)
	default:
		helpText = m.help.View(m.keys)
	}
	return RenderApplicationContainer(m.renderContent(), helpText, m.Width, m.Height)
}

func (m DashboardModel) renderContent() string {
	st := m.sess.State.State()
	view := ui.StatusView{
		Addr:   m.addr,
		State:  st,
		Health: m.sess.Health(),
		Now:    m.clk.Now(),
	}

	var b strings.Builder
	b.WriteString(RenderTitle("  Scale at " + m.addr))
	b.WriteString("\n")
	b.WriteString(WeightStyle.Render(state.FormatWeight(st.Weight, st.WeightKnown)))
	b.WriteString("\n\n")

	for _, row := range view.Rows() {
		if row.Key == "Weight" {
			continue
		}
		b.WriteString(ui.ResultKeyStyle.Render("  "+row.Key+":"))
		b.WriteString(" ")
		b.WriteString(ui.ResultValueStyle.Render(row.Value))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.renderHold())
	b.WriteString("\n\n")

	if panel := m.renderPanel(); panel != "" {
		b.WriteString(panel)
		b.WriteString("\n\n")
	}

	switch {
	case m.busy:
		b.WriteString("  " + SubtitleStyle.Render("Sending..."))
	case m.notice != "":
		b.WriteString("  " + SubtitleStyle.Render(m.notice))
	case m.lastOutcome != nil:
		b.WriteString("  " + renderOutcome(*m.lastOutcome))
	}
	b.WriteString("\n")

	return b.String()
}

func (m DashboardModel) renderHold() string {
	var label string
	switch m.hold.State() {
	case command.HoldHolding:
		label = "Keep holding to tare"
	case command.HoldConfirmed:
		label = RenderSuccess("Tare sent")
	default:
		label = SubtitleStyle.Render(fmt.Sprintf("Hold t for %s to tare", m.hold.Duration()))
	}
	return "  " + m.bar.ViewAs(m.hold.Progress()) + "  " + label
}

func (m DashboardModel) renderPanel() string {
	width := contentWidth(m.Width) - 6
	switch m.mode {
	case modeAPIKey:
		return PanelStyle.Width(width).Render("Set API key\n\n" + m.input.View())
	case modePushWeight:
		return PanelStyle.Width(width).Render("Push weight to the cloud for the tag on the scale\n\n" + m.input.View())
	case modeConfirmDeleteAPIKey:
		return DangerPanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
			WarningTextStyle.Render("Delete API key?"),
			"",
			"The scale forgets its TigerTag API key and stops sending weights",
			"to the cloud until a new key is set.",
			"",
			"Press y to delete, n to cancel.",
		))
	case modeConfirmResetWiFi:
		return DangerPanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
			WarningTextStyle.Render("Reset WiFi?"),
			"",
			"The scale forgets its network and reboots into its setup hotspot.",
			"It will be unreachable here until it is reconfigured.",
			"",
			"Press y to reset, n to cancel.",
		))
	case modeConfirmFactoryReset:
		return DangerPanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left,
			ErrorTextStyle.Render("Factory reset?"),
			"",
			"WiFi credentials, API key and calibration are erased.",
			"The scale reboots and must be set up and calibrated again.",
			"",
			"Press y to erase everything, n to cancel.",
		))
	}
	return ""
}

// renderOutcome renders one command result line
func renderOutcome(o command.Outcome) string {
	switch o.Kind {
	case command.KindOK:
		return RenderSuccess(o.Message())
	case command.KindValidation:
		return RenderWarning(o.Message())
	default:
		return RenderError(o.Message())
	}
}
