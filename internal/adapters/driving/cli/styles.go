package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Colour palette for terminal output.
var (
	colourPrimary   = lipgloss.Color("#7C3AED")
	colourSecondary = lipgloss.Color("#06B6D4")
	colourMuted     = lipgloss.Color("#6C7086")
	colourSuccess   = lipgloss.Color("#A6E3A1")
	colourWarning   = lipgloss.Color("#F9E2AF")
	colourError     = lipgloss.Color("#F38BA8")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colourPrimary)
	headingStyle = lipgloss.NewStyle().Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(colourSecondary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colourMuted)
	successStyle = lipgloss.NewStyle().Foreground(colourSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colourWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colourError)
)

// sectionHeader renders a "[Name]" settings section header.
func sectionHeader(name string) string {
	return headingStyle.Render("[" + name + "]")
}

// actionStyle picks a colour for a suggested duplicate action.
func actionStyle(action domain.SuggestedAction) lipgloss.Style {
	switch action {
	case domain.ActionMerge:
		return errorStyle
	case domain.ActionReview:
		return warningStyle
	default:
		return mutedStyle
	}
}

// statusStyle picks a colour for a job status.
func statusStyle(status domain.JobStatus) lipgloss.Style {
	switch status {
	case domain.JobCompleted:
		return successStyle
	case domain.JobFailed:
		return errorStyle
	case domain.JobRunning:
		return warningStyle
	default:
		return mutedStyle
	}
}

// importStyle picks a colour for a file import outcome.
func importStyle(action domain.ImportAction) lipgloss.Style {
	switch action {
	case domain.ImportCreated, domain.ImportUpdated:
		return successStyle
	case domain.ImportDeleted:
		return warningStyle
	case domain.ImportFailed:
		return errorStyle
	default:
		return mutedStyle
	}
}
