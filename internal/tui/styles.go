package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/existflow/quizdesk/internal/testsession"
)

// Color palette
var (
	// Countdown bands
	BandGreenColor  = lipgloss.Color("#95E1A3")
	BandOrangeColor = lipgloss.Color("#FFB347")
	BandRedColor    = lipgloss.Color("#FF6B6B")

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
	ErrorRed  = lipgloss.Color("#FF6B6B")
)

// Styles
var (
	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	// Question body
	QuestionStyle = lipgloss.NewStyle().
			Padding(1, 2)

	OptionStyle = lipgloss.NewStyle().
			Padding(0, 1)

	OptionCursorStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	OptionChosenStyle = lipgloss.NewStyle().
				Foreground(Primary).
				Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Confirm modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	TimesUpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(BandRedColor).
			Bold(true).
			Padding(0, 1)

	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorRed)
	SpinnerStyle = lipgloss.NewStyle().Foreground(Primary)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// BandColor returns the colour of a countdown band
func BandColor(b testsession.Band) lipgloss.Color {
	switch b {
	case testsession.BandRed:
		return BandRedColor
	case testsession.BandOrange:
		return BandOrangeColor
	default:
		return BandGreenColor
	}
}

// CountdownStyle renders the countdown text in its band colour
func CountdownStyle(b testsession.Band) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(BandColor(b)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BandColor(b)).
		Padding(0, 1)
}
