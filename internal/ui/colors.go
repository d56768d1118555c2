package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/stackr/internal/models"
)

var styles = newPalette()

// Palette holds the TUI stylesheet.
//
// Badges are keyed by [models.SourceKind] so each source keeps one colour across views.
type Palette struct {
	title  lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
	badges map[models.SourceKind]lipgloss.Style
}

func newPalette() *Palette {
	return &Palette{
		title: bold("#7D56F4").MarginBottom(1),
		ok:    bold("#04B575"),
		err:   bold("#FF0000"),
		warn:  fg("#FFA500"),
		help:  fg("#626262").Italic(true),
		badges: map[models.SourceKind]lipgloss.Style{
			models.SourceRadio: badge("#1A1A1A", "#F2F2F2"),
			models.SourceDJSet: badge("#FFFFFF", "#D6336C"),
		},
	}
}

// Badge renders kind's display name, falling back to the help style for unknown kinds.
func (p *Palette) Badge(kind models.SourceKind) string {
	style, ok := p.badges[kind]
	if !ok {
		return p.help.Render(kind.DisplayName())
	}
	return style.Render(kind.DisplayName())
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

func bold(color string) lipgloss.Style {
	return fg(color).Bold(true)
}

func badge(text, background string) lipgloss.Style {
	return fg(text).Background(lipgloss.Color(background)).Padding(0, 1)
}
