package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/normanking/buddy/internal/alert"
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7")).Bold(true)
	buddyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")).Italic(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)

	alertBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var severityColors = map[alert.Severity]lipgloss.Color{
	alert.SeverityInfo:     lipgloss.Color("#7dcfff"),
	alert.SeverityLow:      lipgloss.Color("#9ece6a"),
	alert.SeverityMedium:   lipgloss.Color("#e0af68"),
	alert.SeverityHigh:     lipgloss.Color("#ff9e64"),
	alert.SeverityCritical: lipgloss.Color("#f7768e"),
}

// initStyles picks the color profile from the terminal unless color is off.
func initStyles(disable bool) {
	if disable || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}

func severityStyle(s alert.Severity) lipgloss.Style {
	c, ok := severityColors[s]
	if !ok {
		c = severityColors[alert.SeverityInfo]
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func renderAlert(a alert.Alert) string {
	c := severityColors[a.Severity]
	return alertBox.BorderForeground(c).Render(alert.FormatAlert(a))
}
