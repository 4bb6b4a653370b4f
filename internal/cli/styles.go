// Package cli renders escrow data for the terminal using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette shared by badges, alerts and boxes.
var (
	PrimaryColor = lipgloss.Color("#3D7BFD")
	SuccessColor = lipgloss.Color("#2EB67D")
	WarningColor = lipgloss.Color("#F2C94C")
	ErrorColor   = lipgloss.Color("#EB5757")
	InfoColor    = lipgloss.Color("#56CCF2")
	SubtleColor  = lipgloss.Color("#6C757D")

	borderColor = lipgloss.Color("#333")
	white       = lipgloss.Color("#FFFFFF")
)

var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)
	InfoStyle   = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle   = lipgloss.NewStyle().Bold(true)
	PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// BadgeStyle is the base of status badges. Render sets the background.
	BadgeStyle = lipgloss.NewStyle().Foreground(white).Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444")).
			Padding(0, 1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(borderColor)

	// ActivePageStyle highlights the current page; PageStyle the other links.
	ActivePageStyle = lipgloss.NewStyle().Bold(true).Foreground(white).Background(PrimaryColor).Padding(0, 1)
	PageStyle       = lipgloss.NewStyle().Foreground(PrimaryColor).Padding(0, 1)
)

// Icons.
const (
	LockIcon   = "🔒"
	PhoneIcon  = "📱"
	BellIcon   = "🔔"
	ChartIcon  = "📊"
	SearchIcon = "🔍"
)

// AlertKind is the severity of a transient message.
type AlertKind string

// Alert kinds.
const (
	AlertSuccess AlertKind = "success"
	AlertInfo    AlertKind = "info"
	AlertWarning AlertKind = "warning"
	AlertDanger  AlertKind = "danger"
)

type alertLook struct {
	style lipgloss.Style
	icon  string
}

var alertLooks = map[AlertKind]alertLook{
	AlertSuccess: {lipgloss.NewStyle().Foreground(SuccessColor), "✓"},
	AlertInfo:    {InfoStyle, "ℹ️"},
	AlertWarning: {lipgloss.NewStyle().Foreground(WarningColor), "⚠️"},
	AlertDanger:  {lipgloss.NewStyle().Foreground(ErrorColor), "✗"},
}

// FormatAlert renders a message with the icon and color of its severity.
// Unknown kinds render as info.
func FormatAlert(kind AlertKind, message string) string {
	look, ok := alertLooks[kind]
	if !ok {
		look = alertLooks[AlertInfo]
	}
	return look.style.Render(look.icon + " " + message)
}

func FormatSuccess(message string) string { return FormatAlert(AlertSuccess, message) }
func FormatInfo(message string) string    { return FormatAlert(AlertInfo, message) }
func FormatWarning(message string) string { return FormatAlert(AlertWarning, message) }
func FormatError(message string) string   { return FormatAlert(AlertDanger, message) }

// FormatPrompt renders a question awaiting input.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox frames content under a title.
func RenderBox(title, content string) string {
	heading := TitleStyle.UnsetMargins().Render(title)
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, content))
}
