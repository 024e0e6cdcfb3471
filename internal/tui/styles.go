package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorFrost  = lipgloss.Color("#88C0D0")
	colorAurora = lipgloss.Color("#B48EAD")
	colorEmber  = lipgloss.Color("#D08770")
	colorMoss   = lipgloss.Color("#A3BE8C")
	colorAsh    = lipgloss.Color("#4C566A")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorFrost)
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorMoss)
	sagaStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAurora)
	systemStyle = lipgloss.NewStyle().Italic(true).Foreground(colorAsh)
	errorStyle  = lipgloss.NewStyle().Foreground(colorEmber)
	promptStyle = lipgloss.NewStyle().Foreground(colorEmber).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(colorAsh)
)
