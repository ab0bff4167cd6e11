package ui

import "github.com/charmbracelet/lipgloss"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	green     = lipgloss.Color("#04B575")
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	fuchsia   = lipgloss.Color("#EE6FF8")
	yellow    = lipgloss.Color("#ECFD65")

	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	faintGray = lipgloss.AdaptiveColor{Light: "#DDDADA", Dark: "#3C3C3C"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(fuchsia).
			Bold(true).
			Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(red).
				Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	titleStyle = lipgloss.NewStyle().
			Foreground(fuchsia).
			Bold(true).
			Render

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(red).
			Padding(0, 1).
			Render

	subtleStyle = lipgloss.NewStyle().
			Foreground(gray).
			Render

	faintStyle = lipgloss.NewStyle().
			Foreground(midGray).
			Render

	selectedTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F1F1F1"}).
				Bold(true).
				Render

	activeTextStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true).
			Render

	translationStyle = lipgloss.NewStyle().
				Foreground(gray).
				Italic(true).
				Render

	phoneticStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#8F8CF2"}).
			Render

	wordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#DDDDDD"}).
			Render

	selectedWordStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1A1A1A")).
				Background(yellow).
				Render

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fuchsia).
			Padding(1, 2)

	cursorStyle = lipgloss.NewStyle().
			Foreground(fuchsia).
			Render

	dividerStyle = lipgloss.NewStyle().
			Foreground(faintGray).
			Render
)

func logoView() string {
	return logoStyle(" EngRepeat ")
}
