package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/calibration"
	"github.com/muurk/tigerscale/internal/clock"
	"github.com/muurk/tigerscale/internal/device"
	"github.com/muurk/tigerscale/internal/discovery"
	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/session"
	"github.com/muurk/tigerscale/internal/state"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery   Screen = "discovery"
	ScreenDashboard   Screen = "dashboard"
	ScreenCalibration Screen = "calibration"
)

// Options configures the application
type Options struct {
	// Device skips discovery and connects straight to this scale.
	Device *discovery.Device
	// Calibrate opens the calibration wizard once connected.
	Calibrate bool
	// Catalog lists the calibration references. Defaults to the built-in ones.
	Catalog      *calibration.Catalog
	PollInterval time.Duration
	HoldDuration time.Duration
	ScanTimeout  time.Duration
	// Clock drives the hold-to-tare control. Defaults to the wall clock.
	Clock clock.Clock
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen
	opts          Options

	DiscoveryModel   DiscoveryModel
	DashboardModel   DashboardModel
	CalibrationModel CalibrationModel

	// Connection to the selected scale; nil on the discovery screen.
	SelectedDevice *discovery.Device
	sess           *session.Session
	br             *bridge
	ctx            context.Context
	cancel         context.CancelFunc

	Width  int
	Height int
}

// NewAppModel creates the application. It opens on the dashboard when
// opts.Device is set and on discovery otherwise.
func NewAppModel(opts Options) AppModel {
	if opts.Catalog == nil {
		opts.Catalog = calibration.DefaultCatalog()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	m := AppModel{
		CurrentScreen:  ScreenDiscovery,
		opts:           opts,
		DiscoveryModel: NewDiscoveryModel(opts.ScanTimeout),
	}
	if opts.Device != nil {
		m = m.connect(opts.Device)
		if opts.Calibrate {
			m = m.openCalibration()
		}
	}
	return m
}

// Init starts the first screen
func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenDashboard:
		return tea.Batch(m.br.listen(), m.DashboardModel.Init())
	case ScreenCalibration:
		return tea.Batch(m.br.listen(), m.CalibrationModel.Init())
	}
	return m.DiscoveryModel.Init()
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DiscoveryModel, _ = m.DiscoveryModel.Update(msg)
		m.DashboardModel.Width, m.DashboardModel.Height = msg.Width, msg.Height
		m.CalibrationModel.Width, m.CalibrationModel.Height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.disconnect()
			return m, tea.Quit
		}

	case bridgeMsg:
		// Messages from a session that was already torn down are dropped.
		if msg.from != m.br {
			return m, nil
		}
		updated, cmd := m.updateCurrentScreen(msg.msg)
		return updated, tea.Batch(cmd, msg.from.listen())
	}

	return m.updateCurrentScreen(msg)
}

// updateCurrentScreen routes updates to the currently active screen
func (m AppModel) updateCurrentScreen(msg tea.Msg) (AppModel, tea.Cmd) {
	var cmd tea.Cmd

	switch m.CurrentScreen {
	case ScreenDiscovery:
		m.DiscoveryModel, cmd = m.DiscoveryModel.Update(msg)

		if dev := m.DiscoveryModel.GetSelectedDevice(); dev != nil {
			m = m.connect(dev)
			return m, tea.Batch(m.br.listen(), m.DashboardModel.Init())
		}

		if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.DiscoveryModel.ManualMode {
			if keyMsg.String() == "q" || keyMsg.String() == "esc" {
				return m, tea.Quit
			}
		}

	case ScreenDashboard:
		m.DashboardModel, cmd = m.DashboardModel.Update(msg)

		switch {
		case m.DashboardModel.IsQuitRequested():
			m.disconnect()
			return m, tea.Quit
		case m.DashboardModel.IsBackRequested():
			m.disconnect()
			m.CurrentScreen = ScreenDiscovery
			m.DiscoveryModel = NewDiscoveryModel(m.opts.ScanTimeout)
			m.DiscoveryModel, _ = m.DiscoveryModel.Update(tea.WindowSizeMsg{Width: m.Width, Height: m.Height})
			return m, m.DiscoveryModel.Init()
		case m.DashboardModel.IsCalibrateRequested():
			m.DashboardModel.ClearRequests()
			m = m.openCalibration()
			return m, tea.Batch(cmd, m.CalibrationModel.Init())
		}

	case ScreenCalibration:
		// The dashboard still owns results of commands it started.
		switch msg.(type) {
		case outcomeMsg, holdTickMsg:
			m.DashboardModel, cmd = m.DashboardModel.Update(msg)
			return m, cmd
		}

		m.CalibrationModel, cmd = m.CalibrationModel.Update(msg)
		if m.CalibrationModel.IsClosed() {
			m.CurrentScreen = ScreenDashboard
		}
	}

	return m, cmd
}

// connect opens a session to dev and shows its dashboard.
func (m AppModel) connect(dev *discovery.Device) AppModel {
	m.disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	sess := session.New(device.NewClient(dev.IP, dev.Port), session.Options{
		PollInterval: m.opts.PollInterval,
	})
	br := newBridge(ctx)
	sess.State.Subscribe(func(_ state.Change) { br.notify(stateChangedMsg{}) })
	sess.OnHealth(func(session.Health) { br.notify(stateChangedMsg{}) })

	go func() {
		if err := sess.Run(ctx); err != nil {
			logging.Warn("Session ended", zap.String("device", dev.Addr()), zap.Error(err))
		}
	}()

	logging.Info("Connected to scale", zap.String("device", dev.Addr()))

	m.SelectedDevice = dev
	m.sess, m.br, m.ctx, m.cancel = sess, br, ctx, cancel
	m.DashboardModel = NewDashboardModel(ctx, sess, br, m.opts.Clock, m.opts.HoldDuration)
	m.DashboardModel.Width, m.DashboardModel.Height = m.Width, m.Height
	m.CurrentScreen = ScreenDashboard
	return m
}

// openCalibration starts a fresh wizard on the connected scale.
func (m AppModel) openCalibration() AppModel {
	m.CalibrationModel.Close()
	m.CurrentScreen = ScreenCalibration
	m.CalibrationModel = NewCalibrationModel(m.ctx, m.sess, m.opts.Catalog, m.br, m.opts.Clock, m.opts.HoldDuration)
	m.CalibrationModel.Width, m.CalibrationModel.Height = m.Width, m.Height
	return m
}

// disconnect stops the current session, if any.
func (m *AppModel) disconnect() {
	if m.cancel == nil {
		return
	}
	m.DashboardModel.Close()
	m.CalibrationModel.Close()
	m.cancel()
	m.cancel = nil
	m.sess = nil
	m.br = nil
	m.SelectedDevice = nil
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDashboard:
		return m.DashboardModel.View()
	case ScreenCalibration:
		return m.CalibrationModel.View()
	default:
		return m.DiscoveryModel.View()
	}
}

// Run starts the full-screen application and blocks until it exits
func Run(opts Options) error {
	program := tea.NewProgram(NewAppModel(opts), tea.WithAltScreen())
	final, err := program.Run()
	if app, ok := final.(AppModel); ok {
		app.disconnect()
	}
	return err
}
