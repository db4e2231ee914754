// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// Theme is the colour palette.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Muted:     lipgloss.Color("#6C7086"), // Medium gray
		Success:   lipgloss.Color("#A6E3A1"), // Green
		Warning:   lipgloss.Color("#F9E2AF"), // Yellow
		Error:     lipgloss.Color("#F38BA8"), // Red
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title   lipgloss.Style
	Running lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
}

// NewStyles creates styles from a theme. A nil theme uses DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	return &Styles{
		theme:   theme,
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Running: lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Error:   lipgloss.NewStyle().Foreground(theme.Error),
		Success: lipgloss.NewStyle().Foreground(theme.Success),
		Warning: lipgloss.NewStyle().Foreground(theme.Warning),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// ProgressBar returns a step progress bar in the theme's accent colours.
func (s *Styles) ProgressBar(width int) progress.Model {
	return progress.New(
		progress.WithGradient(string(s.theme.Primary), string(s.theme.Secondary)),
		progress.WithWidth(width),
	)
}

// StepStatus renders a step status with a glyph and colour.
func (s *Styles) StepStatus(status domain.StepStatus) string {
	switch status {
	case domain.StepCompleted:
		return s.Success.Render("✓ done")
	case domain.StepFailed:
		return s.Error.Render("✗ failed")
	case domain.StepRunning:
		return s.Running.Render("● running")
	default:
		return s.Muted.Render("○ pending")
	}
}

// Outcome renders a run outcome.
func (s *Styles) Outcome(o domain.Outcome) string {
	switch o {
	case domain.OutcomeClean:
		return s.Success.Render(string(o))
	case domain.OutcomeDegraded, domain.OutcomePaused:
		return s.Warning.Render(string(o))
	default:
		return s.Error.Render(string(o))
	}
}
