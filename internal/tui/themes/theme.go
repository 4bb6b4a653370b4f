// Package themes holds the color themes of the browse TUI.
package themes

import "github.com/charmbracelet/lipgloss"

// Palette is the set of base colors a theme is derived from.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Info       lipgloss.Color
	Foreground lipgloss.Color
	Subtle     lipgloss.Color
	Border     lipgloss.Color
	Surface    lipgloss.Color
}

// Theme defines the visual style for the TUI.
type Theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Muted         lipgloss.Style
	Bold          lipgloss.Style
	Selected      lipgloss.Style
	Card          lipgloss.Style
	SelectedCard  lipgloss.Style
	Dialog        lipgloss.Style
	Badge         lipgloss.Style
	Key           lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusWarning lipgloss.Style
	StatusError   lipgloss.Style
	StatusInfo    lipgloss.Style
	Palette       Palette
}

// New derives a theme from p.
func New(p Palette) Theme {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1)

	return Theme{
		Palette: p,
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),
		Subtitle: lipgloss.NewStyle().
			Foreground(p.Subtle),
		Normal: lipgloss.NewStyle().
			Foreground(p.Foreground),
		Muted: lipgloss.NewStyle().
			Foreground(p.Subtle).
			Italic(true),
		Bold: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Foreground),
		Selected: lipgloss.NewStyle().
			Background(p.Primary).
			Foreground(p.Surface).
			Bold(true),
		Card:         card,
		SelectedCard: card.BorderForeground(p.Primary),
		Dialog: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(p.Primary).
			Padding(1, 2),
		Badge: lipgloss.NewStyle().
			Foreground(p.Surface).
			Background(p.Error).
			Bold(true).
			Padding(0, 1),
		Key: lipgloss.NewStyle().
			Foreground(p.Secondary).
			Bold(true),
		StatusSuccess: lipgloss.NewStyle().Foreground(p.Success).Bold(true),
		StatusWarning: lipgloss.NewStyle().Foreground(p.Warning).Bold(true),
		StatusError:   lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		StatusInfo:    lipgloss.NewStyle().Foreground(p.Info).Bold(true),
	}
}

// Default follows the colors of the web client.
var Default = New(Palette{
	Primary:    lipgloss.Color("#0d6efd"),
	Secondary:  lipgloss.Color("#6ea8fe"),
	Success:    lipgloss.Color("#198754"),
	Warning:    lipgloss.Color("#ffc107"),
	Error:      lipgloss.Color("#dc3545"),
	Info:       lipgloss.Color("#0dcaf0"),
	Foreground: lipgloss.Color("#f8f9fa"),
	Subtle:     lipgloss.Color("#6c757d"),
	Border:     lipgloss.Color("#495057"),
	Surface:    lipgloss.Color("#212529"),
})

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = New(Palette{
	Primary:    lipgloss.Color("#cba6f7"),
	Secondary:  lipgloss.Color("#f5c2e7"),
	Success:    lipgloss.Color("#a6e3a1"),
	Warning:    lipgloss.Color("#f9e2af"),
	Error:      lipgloss.Color("#f38ba8"),
	Info:       lipgloss.Color("#89dceb"),
	Foreground: lipgloss.Color("#cdd6f4"),
	Subtle:     lipgloss.Color("#6c7086"),
	Border:     lipgloss.Color("#45475a"),
	Surface:    lipgloss.Color("#1e1e2e"),
})

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}
