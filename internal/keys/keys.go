// Package keys centralizes keybindings for the editor and its components.
package keys

import "github.com/charmbracelet/bubbles/key"

// CommonKeyMap holds bindings shared across components.
type CommonKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Escape key.Binding
	Quit   key.Binding
}

// EditorKeyMap holds bindings for the card editor.
type EditorKeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
	Toggle    key.Binding
}

// Common is the shared keymap instance.
var Common = CommonKeyMap{
	Up:     key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "move up")),
	Down:   key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "move down")),
	Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Escape: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

// Editor is the card editor keymap instance.
var Editor = EditorKeyMap{
	NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous field")),
	Submit:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save card")),
	Toggle:    key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "toggle options")),
}
