package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/tigerscale/internal/command"
)

// AgreePhrase must be typed to confirm a destructive operation.
const AgreePhrase = "I AGREE"

// ConfirmDangerousOperation displays a warning box on out and reads one line
// from in. It returns true only if the user typed AgreePhrase.
func ConfirmDangerousOperation(in io.Reader, out io.Writer, title string, warnings []string, disclaimer string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}

	bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range warnings {
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	if disclaimer != "" {
		disclaimerStyle := lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true).
			Width(width - 12).
			PaddingLeft(3)
		lines = append(lines, disclaimerStyle.Render(disclaimer), "")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", AgreePhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.TrimSpace(input) == AgreePhrase {
		return true
	}

	_, _ = fmt.Fprintln(out, lipgloss.NewStyle().Foreground(MutedColor).Render("  Operation cancelled."))
	_, _ = fmt.Fprintln(out)
	return false
}

// FactoryResetConfirmation asks before erasing every setting on the scale.
func FactoryResetConfirmation(in io.Reader, out io.Writer) command.Confirm {
	return func() bool {
		return ConfirmDangerousOperation(in, out,
			"FACTORY RESET",
			[]string{
				"The calibration factor returns to its default",
				"The TigerTag API key is erased",
				"The WiFi credentials are erased and the scale restarts in setup mode",
			},
			"You will need to join the scale's access point again to configure it.",
		)
	}
}

// ResetWiFiConfirmation asks before the scale forgets its network.
func ResetWiFiConfirmation(in io.Reader, out io.Writer) command.Confirm {
	return func() bool {
		return ConfirmDangerousOperation(in, out,
			"RESET WIFI",
			[]string{
				"The scale forgets its WiFi network and restarts in setup mode",
				"This client loses contact until the scale is configured again",
			},
			"",
		)
	}
}

// DeleteAPIKeyConfirmation asks before the scale drops its TigerTag API key.
func DeleteAPIKeyConfirmation(in io.Reader, out io.Writer) command.Confirm {
	return func() bool {
		return ConfirmDangerousOperation(in, out,
			"DELETE API KEY",
			[]string{
				"The scale forgets its TigerTag API key",
				"Weights are no longer sent to the cloud until a new key is set",
			},
			"",
		)
	}
}

// AssumeYes is the confirmation used with --yes.
func AssumeYes() command.Confirm {
	return func() bool { return true }
}
