// Package ui provides styled terminal output helpers for the CLI.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// noColor honors NO_COLOR and friends
var noColor = termenv.EnvNoColor()

func render(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}

// RenderPass styles a success marker.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn styles a warning marker.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderErr styles an error marker.
func RenderErr(s string) string { return render(errStyle, s) }

// RenderAccent styles an informational marker.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderDim styles secondary detail text.
func RenderDim(s string) string { return render(dimStyle, s) }
