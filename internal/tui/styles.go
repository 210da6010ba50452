package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary = lipgloss.Color("#8BC34A")
	Muted   = lipgloss.Color("#6B7280")
	Danger  = lipgloss.Color("#e53935")
	Accent  = lipgloss.Color("#2196F3")
)

// Styles groups the lipgloss styles used by the browser.
type Styles struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Cell     lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	End      lipgloss.Style
	Label    lipgloss.Style
	Link     lipgloss.Style
}

// DefaultStyles returns the browser's default styles.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Subtle:   lipgloss.NewStyle().Foreground(Muted),
		Cell:     lipgloss.NewStyle().Width(cellWidth).MaxWidth(cellWidth).MaxHeight(1).PaddingRight(1),
		Selected: lipgloss.NewStyle().Width(cellWidth).MaxWidth(cellWidth).MaxHeight(1).PaddingRight(1).Bold(true).Reverse(true),
		Error:    lipgloss.NewStyle().Foreground(Danger),
		End:      lipgloss.NewStyle().Foreground(Primary).Italic(true),
		Label:    lipgloss.NewStyle().Foreground(Muted).Width(16),
		Link:     lipgloss.NewStyle().Foreground(Accent).Underline(true),
	}
}
