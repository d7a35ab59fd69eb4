package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#6366F1")
	muted  = lipgloss.Color("#9CA3AF")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 1)
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	offlineStyle = lipgloss.NewStyle().Foreground(muted)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginBottom(1)

	ownBubble = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 1)
	otherBubble = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB")).
			Background(lipgloss.Color("#374151")).
			Padding(0, 1)

	labelStyle   = lipgloss.NewStyle().Foreground(muted)
	focusedLabel = lipgloss.NewStyle().Foreground(accent).Bold(true)

	toastInfo = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#333333")).
			Padding(0, 1)
	toastSuccess = toastInfo.Background(lipgloss.Color("#15803D"))

	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 3)
)
