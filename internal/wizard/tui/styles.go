package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/tigerscale/internal/ui"
	"github.com/muurk/tigerscale/internal/version"
)

// Application branding constants
const (
	AppName   = "TIGERSCALE"
	GitHubURL = "github.com/muurk/tigerscale"
)

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Version
}

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 72 // Minimum supported terminal width
	MaxContentWidth  = 110
)

// Color palette, shared with the CLI output
var (
	PrimaryColor   = ui.PrimaryColor
	SecondaryColor = ui.SuccessColor
	WarningColor   = ui.WarningColor
	ErrorColor     = ui.ErrorColor
	TextColor      = ui.TextColor
	SubtleColor    = ui.MutedColor
	BorderColor    = ui.PrimaryColor
	HighlightColor = ui.SuccessColor
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 0)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	MenuItemStyle = lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(TextColor)

	SelectedMenuItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(HighlightColor).
				Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	// Big weight readout on the dashboard
	WeightStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 2)

	SuccessTextStyle = lipgloss.NewStyle().
				Foreground(SecondaryColor).
				Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningTextStyle = lipgloss.NewStyle().
				Foreground(WarningColor).
				Bold(true)

	// Panel for inline editors and confirmations
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 2).
			MarginLeft(2)

	DangerPanelStyle = PanelStyle.
				BorderForeground(ErrorColor)
)

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// RenderSubtitle renders a subtitle with consistent styling
func RenderSubtitle(text string) string {
	return SubtitleStyle.Render(text)
}

// RenderMenuItem renders a menu item with selection indicator
func RenderMenuItem(text string, selected bool) string {
	if selected {
		return SelectedMenuItemStyle.Render("→ " + text)
	}
	return MenuItemStyle.Render(text)
}

// RenderError renders an error line
func RenderError(text string) string {
	return ErrorTextStyle.Render(ui.FailureMarker + " " + text)
}

// RenderSuccess renders a success line
func RenderSuccess(text string) string {
	return SuccessTextStyle.Render(ui.SuccessMarker + " " + text)
}

// RenderWarning renders a warning line
func RenderWarning(text string) string {
	return WarningTextStyle.Render(ui.WarningMarker + " " + text)
}

// BuildHeaderContent creates header content with app name and GitHub URL
func BuildHeaderContent() string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " v" + AppVersion())

	right := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(GitHubURL)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// RenderApplicationContainer wraps every screen: header with name and
// version, the screen's content, and a footer with context-sensitive help.
// It fills the terminal and pins the footer to the bottom.
func RenderApplicationContainer(content string, footerText string, terminalWidth int, terminalHeight int) string {
	if terminalWidth <= 0 {
		terminalWidth = MinTerminalWidth
	}
	if terminalHeight <= 0 {
		terminalHeight = 24
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Foreground(SubtleColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Width(terminalWidth - 4)

	innerContent := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(BuildHeaderContent()),
		contentStyle.Render(content),
		footerStyle.Render(footerText),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top).
		Render(innerContent)

	return lipgloss.Place(
		terminalWidth,
		terminalHeight,
		lipgloss.Left,
		lipgloss.Top,
		bordered,
	)
}

// contentWidth returns the usable width inside the container.
func contentWidth(terminalWidth int) int {
	if terminalWidth < MinTerminalWidth {
		terminalWidth = MinTerminalWidth
	}
	w := terminalWidth - 4
	if w > MaxContentWidth {
		w = MaxContentWidth
	}
	return w
}
