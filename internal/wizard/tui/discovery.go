package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/tigerscale/internal/discovery"
)

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// manualModeKeyMap defines key bindings for manual address entry
type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device *discovery.Device
	manual bool
}

func (d deviceItem) FilterValue() string {
	return d.device.Name + " " + d.device.IP + " " + d.device.Hostname
}

func (d deviceItem) Title() string {
	if d.manual {
		return "Manual: " + d.device.Addr()
	}
	return d.device.Name
}

func (d deviceItem) Description() string {
	return d.device.Addr()
}

// deviceDelegate renders discovered scales as cards
type deviceDelegate struct {
	width int
}

func (d deviceDelegate) Height() int { return 6 }

func (d deviceDelegate) Spacing() int { return 1 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(deviceItem)
	if !ok {
		return
	}

	dev := it.device
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + it.Title()))
	} else {
		content.WriteString("  " + it.Title())
	}
	content.WriteString("\n")

	kind := "Scale"
	switch {
	case it.manual:
		kind = "Entered by hand"
	case dev.Simulated():
		kind = "Simulator"
	}
	content.WriteString(fmt.Sprintf("  Address: %s\n", dev.Addr()))
	content.WriteString(fmt.Sprintf("  Type:    %s", kind))

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(contentWidth(d.width) - 8)
	if selected {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, cardStyle.Render(content.String()))
}

// DiscoveryModel represents the device discovery screen state
type DiscoveryModel struct {
	Scanning   bool
	DeviceList list.Model
	Selected   bool
	Err        error

	ManualMode bool
	AddrInput  textinput.Model
	InputErr   error

	Width         int
	Height        int
	Timeout       time.Duration
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap

	scan func(ctx context.Context, timeout time.Duration) ([]*discovery.Device, error)
}

// NewDiscoveryModel creates a new discovery screen model
func NewDiscoveryModel(timeout time.Duration) DiscoveryModel {
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	addrInput := textinput.New()
	addrInput.Placeholder = "192.168.4.1 or tigerscale.local:80"
	addrInput.CharLimit = 255
	addrInput.Width = 40

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New([]list.Item{}, deviceDelegate{width: MinTerminalWidth}, 0, 0)
	deviceList.Title = "Discovered Scales"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(false)
	deviceList.SetShowHelp(false)
	deviceList.Styles.Title = TitleStyle

	keys := discoveryKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "enter address"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}

	manualKeys := manualModeKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	return DiscoveryModel{
		DeviceList:  deviceList,
		AddrInput:   addrInput,
		Timeout:     timeout,
		Spinner:     s,
		ProgressBar: progressBar,
		Help:        help.New(),
		Keys:        keys,
		ManualKeys:  manualKeys,
		scan:        discovery.ScanForDevices,
	}
}

// Init starts scanning immediately
func (m DiscoveryModel) Init() tea.Cmd {
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	scan, timeout := m.scan, m.Timeout
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			devices, err := scan(context.Background(), timeout)
			return scanCompleteMsg{devices: devices, err: err}
		},
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (DiscoveryModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetDelegate(deviceDelegate{width: msg.Width})
		m.DeviceList.SetWidth(contentWidth(msg.Width))
		m.DeviceList.SetHeight(msg.Height - 10)
		return m, nil

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()
		return m, nil

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, 0, len(msg.devices))
		for _, item := range m.DeviceList.Items() {
			if it, ok := item.(deviceItem); ok && it.manual {
				items = append(items, it)
			}
		}
		for _, dev := range msg.devices {
			items = append(items, deviceItem{device: dev})
		}
		m.DeviceList.SetItems(items)
		return m, nil

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// updateNormalMode handles keyboard input in the device list
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Enter):
		if m.DeviceList.SelectedItem() != nil {
			m.Selected = true
		}
		return m, nil

	case key.Matches(msg, m.Keys.Rescan):
		if m.Scanning {
			return m, nil
		}
		m.Err = nil
		return m, m.startScan()

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.InputErr = nil
		m.AddrInput.SetValue("")
		return m, m.AddrInput.Focus()
	}

	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

// updateManualMode handles keyboard input in manual address entry
func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (DiscoveryModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.ManualKeys.Cancel):
		m.ManualMode = false
		m.AddrInput.SetValue("")
		m.AddrInput.Blur()
		return m, nil

	case key.Matches(msg, m.ManualKeys.Confirm):
		dev, err := discovery.ParseAddress(m.AddrInput.Value())
		if err != nil {
			m.InputErr = err
			return m, nil
		}
		items := append([]list.Item{deviceItem{device: dev, manual: true}}, m.DeviceList.Items()...)
		m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)
		m.ManualMode = false
		m.InputErr = nil
		m.AddrInput.SetValue("")
		m.AddrInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.AddrInput, cmd = m.AddrInput.Update(msg)
	return m, cmd
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning()
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderDeviceResults()
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

// renderScanning renders a centered scanning progress display
func (m DiscoveryModel) renderScanning() string {
	elapsed := time.Since(m.ScanStartTime)
	fraction := float64(elapsed) / float64(m.Timeout)
	if fraction > 1 {
		fraction = 1
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" SEARCHING FOR SCALES"),
		SubtitleStyle.Render("Browsing mDNS for TigerScale devices..."),
		"",
		m.ProgressBar.ViewAs(fraction),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
		"",
	)
	return lipgloss.Place(contentWidth(m.Width), 0, lipgloss.Center, lipgloss.Top, content)
}

// renderDeviceResults renders the device list or "no devices found" message
func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString("  " + RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(troubleshooting)
	case len(m.DeviceList.Items()) == 0:
		b.WriteString("  " + RenderWarning("No scales found on your network"))
		b.WriteString("\n\n")
		b.WriteString(troubleshooting)
	default:
		b.WriteString(m.DeviceList.View())
	}
	return b.String()
}

const troubleshooting = `  Troubleshooting:
    • Ensure the scale is powered on and joined to your WiFi
    • Check that this computer is on the same network
    • Try http://tigerscale.local in a browser
    • Press 'm' to enter the scale's IP address
`

// renderManualEntry renders the manual address entry dialog
func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("  " + RenderSubtitle("Enter the scale's address"))
	b.WriteString("\n\n")
	b.WriteString("  Address: ")
	b.WriteString(m.AddrInput.View())
	b.WriteString("\n")
	if m.InputErr != nil {
		b.WriteString("\n  " + RenderError(m.InputErr.Error()) + "\n")
	}
	return b.String()
}

// GetSelectedDevice returns the selected device (if any)
func (m DiscoveryModel) GetSelectedDevice() *discovery.Device {
	if !m.Selected {
		return nil
	}
	if it, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
		return it.device
	}
	return nil
}
