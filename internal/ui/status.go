package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/muurk/tigerscale/internal/session"
	"github.com/muurk/tigerscale/internal/state"
)

// StatusView is everything the show command and the dashboard know about a
// scale at one instant.
type StatusView struct {
	Addr   string
	State  state.ClientState
	Health session.Health
	Now    time.Time
}

// Rows returns the labelled fields in display order.
func (v StatusView) Rows() []Param {
	st := v.State

	apiKey := st.APIKeyStatus.String()
	if st.APIKeyStatus == state.APIKeyValid && st.DisplayName != "" {
		apiKey += " (" + st.DisplayName + ")"
	}

	tag := state.TagLabel(st.TagID, st.TagKnown)
	if st.TagIDHex != "" && st.TagID != "" {
		tag += " [0x" + st.TagIDHex + "]"
	}

	uptime := state.UptimePlaceholder
	if st.UptimeKnown {
		uptime = state.FormatUptime(st.UptimeSeconds)
	}

	push := st.CloudPush.Label()
	if push == "" {
		push = "idle"
	}

	rows := []Param{
		{Key: "Weight", Value: state.FormatWeight(st.Weight, st.WeightKnown)},
		{Key: "Tag", Value: tag},
		{Key: "Calibration", Value: state.FormatFactor(st.CalibrationFactor, st.FactorKnown)},
		{Key: "API key", Value: apiKey},
		{Key: "Cloud", Value: st.CloudStatus.String()},
		{Key: "Cloud push", Value: push},
		{Key: "Uptime", Value: uptime},
	}
	if st.WiFi != "" {
		rows = append(rows, Param{Key: "WiFi", Value: st.WiFi})
	}
	if st.IP != "" {
		rows = append(rows, Param{Key: "IP", Value: st.IP})
	}
	rows = append(rows, Param{Key: "Link", Value: v.linkLabel()})
	return rows
}

func (v StatusView) linkLabel() string {
	h := v.Health
	now := v.Now
	if now.IsZero() {
		now = time.Now()
	}

	var parts []string
	switch {
	case h.LastSuccess.IsZero():
		parts = append(parts, "never reached")
	case h.Online():
		parts = append(parts, "online, updated "+humanize.RelTime(h.LastSuccess, now, "ago", "from now"))
	default:
		parts = append(parts, "offline since "+humanize.RelTime(h.LastSuccess, now, "ago", "from now"))
	}
	if h.ConsecutiveFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d failed polls", h.ConsecutiveFailures))
	}
	if h.PushConnected {
		parts = append(parts, "push connected")
	}
	return strings.Join(parts, ", ")
}

// RenderDetailed renders a bordered status panel.
func (v StatusView) RenderDetailed(width int) string {
	width = clampWidth(width)

	lines := []string{
		"",
		HeaderTitleStyle.Render("TIGERSCALE  " + v.Addr),
		"",
		"  " + WeightStyle.Render(state.FormatWeight(v.State.Weight, v.State.WeightKnown)),
		"",
	}
	for _, row := range v.Rows() {
		lines = append(lines, ResultKeyStyle.Render("   "+row.Key+":")+" "+ResultValueStyle.Render(row.Value))
	}
	lines = append(lines, "")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Render(strings.Join(lines, "\n"))
}

// RenderCompact renders the status on one line, without styling, for
// scripts and the watch command.
func (v StatusView) RenderCompact() string {
	st := v.State
	fields := []string{
		state.FormatWeight(st.Weight, st.WeightKnown),
		"tag " + state.TagLabel(st.TagID, st.TagKnown),
		"factor " + state.FormatFactor(st.CalibrationFactor, st.FactorKnown),
		"key " + st.APIKeyStatus.String(),
		"cloud " + st.CloudStatus.String(),
	}
	if label := st.CloudPush.Label(); label != "" {
		fields = append(fields, label)
	}
	return strings.Join(fields, " | ")
}
