package ui

import "github.com/charmbracelet/lipgloss"

// styles holds the Lipgloss styles used by the views.
type styles struct {
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Label     lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Help      lipgloss.Style
	Dialog    lipgloss.Style
	Focused   lipgloss.Style
	FieldErr  lipgloss.Style
	StatusBar lipgloss.Style
}

func defaultStyles() styles {
	accent := lipgloss.Color("#7AA2F7")
	danger := lipgloss.Color("#F7768E")
	muted := lipgloss.Color("#565F89")
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Label:   lipgloss.NewStyle().Width(15).Foreground(muted),
		Error:   lipgloss.NewStyle().Foreground(danger).Bold(true),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A")),
		Help:    lipgloss.NewStyle().Foreground(muted),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2),
		Focused:   lipgloss.NewStyle().Foreground(accent),
		FieldErr:  lipgloss.NewStyle().Foreground(danger),
		StatusBar: lipgloss.NewStyle().Foreground(muted).MarginTop(1),
	}
}
