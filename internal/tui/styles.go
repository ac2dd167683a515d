package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/acme/outreach-monitor/internal/projector"
)

var (
	colorDanger  = lipgloss.Color("#e53935")
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorInfo    = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#7a8699")
)

// Styles holds the dashboard's lipgloss styles.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Header  lipgloss.Style
}

// DefaultStyles returns the dashboard palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#f2f2f2")).Background(lipgloss.Color("#101F38")),
		Label:   lipgloss.NewStyle().Foreground(colorMuted),
		Value:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Error:   lipgloss.NewStyle().Foreground(colorDanger),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Header:  lipgloss.NewStyle().Bold(true).Underline(true),
	}
}

// Badge renders a status badge in its category colour.
func (s Styles) Badge(b projector.Badge) string {
	style := lipgloss.NewStyle().Bold(true)
	switch b.Category {
	case projector.CategorySuccess:
		style = style.Foreground(colorSuccess)
	case projector.CategoryDanger:
		style = style.Foreground(colorDanger)
	case projector.CategoryWarning, projector.CategoryWaiting:
		style = style.Foreground(colorWarning)
	case projector.CategoryProgress, projector.CategoryInfo:
		style = style.Foreground(colorInfo)
	default:
		style = style.Foreground(colorMuted)
	}
	return style.Render(b.Label)
}
