package tui

import "github.com/charmbracelet/lipgloss"

// Theme uses ANSI 256-color codes.
type Theme struct {
	NormalText  lipgloss.Color
	FaintText   lipgloss.Color
	Accent      lipgloss.Color
	OwnMessage  lipgloss.Color
	Warning     lipgloss.Color
	Error       lipgloss.Color
	BorderColor lipgloss.Color
}

var DefaultTheme = Theme{
	NormalText:  lipgloss.Color("252"),
	FaintText:   lipgloss.Color("243"),
	Accent:      lipgloss.Color("39"),
	OwnMessage:  lipgloss.Color("114"),
	Warning:     lipgloss.Color("214"),
	Error:       lipgloss.Color("203"),
	BorderColor: lipgloss.Color("238"),
}

type styles struct {
	title    lipgloss.Style
	label    lipgloss.Style
	focused  lipgloss.Style
	chosen   lipgloss.Style
	faint    lipgloss.Style
	system   lipgloss.Style
	own      lipgloss.Style
	sender   lipgloss.Style
	notice   lipgloss.Style
	blocking lipgloss.Style
	border   lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		label:   lipgloss.NewStyle().Foreground(theme.NormalText),
		focused: lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		chosen:  lipgloss.NewStyle().Bold(true).Underline(true).Foreground(theme.NormalText),
		faint:   lipgloss.NewStyle().Foreground(theme.FaintText),
		system:  lipgloss.NewStyle().Foreground(theme.FaintText).Italic(true).Align(lipgloss.Center),
		own:     lipgloss.NewStyle().Foreground(theme.OwnMessage),
		sender:  lipgloss.NewStyle().Bold(true).Foreground(theme.NormalText),
		notice:  lipgloss.NewStyle().Foreground(theme.Warning),
		blocking: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Error).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Error).
			Padding(0, 1),
		border: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false).
			BorderForeground(theme.BorderColor),
	}
}
