package tui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Left      key.Binding
	Right     key.Binding
	Submit    key.Binding
	// CreateMode switches the join screen to room creation; Back leaves it.
	CreateMode key.Binding
	Back       key.Binding
	Refresh    key.Binding

	Leave    key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("tab", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("S-tab", "previous field"),
	),
	Left: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "previous choice"),
	),
	Right: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "next choice"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	CreateMode: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("C-n", "create a room"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "list rooms"),
	),
	Leave: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("C-l", "leave"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdown", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("C-c", "quit"),
	),
}
