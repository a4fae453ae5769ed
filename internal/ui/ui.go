// Package ui renders terminal output for mdk.
package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// Init selects the colour profile for w, honouring NO_COLOR and
// CLICOLOR_FORCE.
func Init(w io.Writer) {
	lipgloss.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())
}

// RenderPass styles a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles a warning marker.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles an error marker.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles headings and ids.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary details.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// Column is one boxed column in RenderColumns.
type Column struct {
	Title string
	Lines []string
}

// RenderColumns lays the columns out side by side, each width cells wide.
// A width of 0 sizes columns to their content.
func RenderColumns(cols []Column, width int) string {
	boxes := make([]string, len(cols))
	for i, col := range cols {
		body := []string{headerStyle.Render(col.Title)}
		if len(col.Lines) == 0 {
			body = append(body, RenderMuted("(empty)"))
		}
		body = append(body, col.Lines...)

		style := columnStyle
		if width > 0 {
			style = style.Width(width)
		}
		boxes[i] = style.Render(strings.Join(body, "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}
