package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Prev    key.Binding
	Next    key.Binding
	Select  key.Binding
	Submit  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "option up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "option down")),
	Prev:    key.NewBinding(key.WithKeys("left", "h", "p"), key.WithHelp("←/h", "previous question")),
	Next:    key.NewBinding(key.WithKeys("right", "l", "n"), key.WithHelp("→/l", "next question")),
	Select:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "choose option")),
	Submit:  key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "submit test")),
	Confirm: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "confirm")),
	Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "cancel")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
