package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"mandelview/fractal"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

// summary describes a finished render.
type summary struct {
	Path       string
	Viewport   fractal.Viewport
	Iterations int
	Field      *fractal.Field
	Backend    string
	Elapsed    time.Duration
}

func renderSummary(s summary) string {
	total := s.Field.Width * s.Field.Height
	escaped := s.Field.Escaped()
	rows := [][2]string{
		{"size", fmt.Sprintf("%dx%d", s.Viewport.Width, s.Viewport.Height)},
		{"re", fmt.Sprintf("[%.6g, %.6g]", s.Viewport.Xmin, s.Viewport.Xmax)},
		{"im", fmt.Sprintf("[%.6g, %.6g]", s.Viewport.Ymin, s.Viewport.Ymax)},
		{"iterations", fmt.Sprint(s.Iterations)},
		{"escaped", fmt.Sprintf("%d/%d (%.1f%%)", escaped, total, 100*float64(escaped)/float64(total))},
		{"backend", s.Backend},
		{"elapsed", s.Elapsed.Round(time.Millisecond).String()},
	}
	lines := []string{headerStyle.Render("wrote " + s.Path)}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), valueStyle.Render(r[1])))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
