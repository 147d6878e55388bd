package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/husk/internal/counter"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#89b4fa")).
			Padding(0, 2)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c")).Width(10)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4"))
	sessionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c")).Italic(true)
)

// renderView paints a view snapshot as a bordered panel.
func renderView(view counter.ViewModel, session string) string {
	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	rows := []string{
		titleStyle.Render("counter"),
		row("count", strconv.FormatInt(view.Count, 10)),
		row("ticks", strconv.FormatInt(view.Ticks, 10)),
	}
	if view.Remote != "" {
		rows = append(rows, row("remote", view.Remote))
	}
	if view.Platform != "" {
		rows = append(rows, row("platform", view.Platform))
	}
	rows = append(rows, sessionStyle.Render("session "+session))

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
