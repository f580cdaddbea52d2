package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Never use inline lipgloss.Color literals outside this block.
var (
	// ColorCyan is used for identifiable nouns: project ids, paths, archive names.
	ColorCyan = lipgloss.Color("14")

	// ColorGreen is used for the "completed" run status.
	ColorGreen = lipgloss.Color("82")

	// ColorYellow is used for the "generating" run status.
	ColorYellow = lipgloss.Color("220")

	// ColorBoldRed is used for the "failed" run status (matches ERROR level).
	ColorBoldRed = lipgloss.Color("204")

	// ColorGreenCheck is used for the completion checkmark.
	ColorGreenCheck = lipgloss.Color("10")

	// ColorBlue is used for table headers.
	ColorBlue = lipgloss.Color("12")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns (project ids, file paths).
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleDim styles structural chrome (prefixes, separators, digests).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleBold styles directory names and summary lines.
	StyleBold = lipgloss.NewStyle().Bold(true)
)

// Run status values as they appear in the registry.
const (
	StatusPending    = "pending"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// StatusStyle returns the lipgloss style for a run status.
// Unknown statuses return an unstyled default.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case StatusPending:
		return lipgloss.NewStyle().Faint(true)
	case StatusGenerating:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case StatusCompleted:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case StatusFailed:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorBoldRed)
	default:
		return lipgloss.NewStyle()
	}
}

// minRunColumnWidth keeps status words aligned across run lines.
const minRunColumnWidth = 40

// FormatRunLine renders a project id and run id with a right-aligned,
// color-coded status suffix.
//
// Format: p:<project>/<run>  <status>
func FormatRunLine(projectID, runID, status string) string {
	path := fmt.Sprintf("%s/%s", projectID, runID)

	padding := minRunColumnWidth - len(path)
	if padding < 2 {
		padding = 2
	}

	return StyleDim.Render("p:") +
		StyleNoun.Render(path) +
		strings.Repeat(" ", padding) +
		StatusStyle(status).Render(status)
}

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(ColorGreenCheck).Render("✔")
	return check + " " + msg
}
