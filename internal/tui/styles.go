package tui

import "github.com/charmbracelet/lipgloss"

var (
	teal    = lipgloss.Color("#2a9d8f")
	sand    = lipgloss.Color("#e9c46a")
	olive   = lipgloss.Color("#8ab17d")
	slate   = lipgloss.Color("#9a9a9a")
	brick   = lipgloss.Color("#e76f51")
	inkBlue = lipgloss.Color("#264653")

	primaryColor = teal
	accentColor  = sand
	successColor = olive
	errorColor   = brick
	warningColor = sand
	dimTextColor = slate

	appStyle = lipgloss.NewStyle().
			Padding(1, 2)

	logoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	inputLabelStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	focusedInputStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	blurredInputStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(dimTextColor).
				Padding(0, 1)

	statusOK = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	statusFail = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	statusRunning = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	statusPending = lipgloss.NewStyle().
			Foreground(dimTextColor)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(dimTextColor)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(dimTextColor).
			Italic(true)

	errorMsgStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	successMsgStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	emptyBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimTextColor).
			Foreground(dimTextColor).
			Padding(2, 4).
			Align(lipgloss.Center)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Padding(1, 4).
			Background(inkBlue).
			Align(lipgloss.Center)

	dividerStyle = lipgloss.NewStyle().
			Foreground(dimTextColor)
)
