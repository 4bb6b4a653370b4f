package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	GoToPage key.Binding

	// Transaction actions
	Pay     key.Binding
	Confirm key.Binding
	Dispute key.Binding
	Deliver key.Binding

	// List controls
	Filter  key.Binding
	Search  key.Binding
	Refresh key.Binding

	// Dialogs
	Submit   key.Binding
	Cancel   key.Binding
	Provider key.Binding

	// Application
	Notifications key.Binding
	DismissAlert  key.Binding
	Help          key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "précédente"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "suivante"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "pgup"),
			key.WithHelp("[", "page précédente"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "pgdown"),
			key.WithHelp("]", "page suivante"),
		),
		GoToPage: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "aller à la page"),
		),
		Pay: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "payer"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "confirmer"),
		),
		Dispute: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "litige"),
		),
		Deliver: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "marquer livré"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filtrer par statut"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "rechercher"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "actualiser"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "valider"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "fermer"),
		),
		Provider: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "opérateur"),
		),
		Notifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		DismissAlert: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "masquer l'alerte"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "aide"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quitter"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pay, k.Confirm, k.Dispute, k.Deliver, k.Filter, k.Search, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PrevPage, k.NextPage, k.GoToPage},
		{k.Pay, k.Confirm, k.Dispute, k.Deliver},
		{k.Filter, k.Search, k.Refresh, k.Notifications},
		{k.DismissAlert, k.Help, k.Quit},
	}
}
