package tui

import (
	"charm.land/lipgloss/v2"

	"contacts/internal/tui/state"
)

var (
	accent = lipgloss.Color("#874BFD")
	muted  = lipgloss.Color("240")

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle      = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(accent)
	mutedStyle       = lipgloss.NewStyle().Foreground(muted)

	panelStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
	focusedPanelStyle = panelStyle.BorderForeground(lipgloss.Color("205"))

	statusStyles = map[state.StatusLevel]lipgloss.Style{
		state.StatusInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		state.StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		state.StatusWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		state.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)
