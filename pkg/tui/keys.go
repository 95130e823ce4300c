// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding the model reacts to. List-focus bindings only
// apply while the source (or suggestion) list has focus, so they never eat
// characters typed into the query input.
type keyMap struct {
	Submit    key.Binding
	NewSearch key.Binding
	Focus     key.Binding
	Up        key.Binding
	Down      key.Binding
	Toggle    key.Binding
	OpenLink  key.Binding
	VoteUp    key.Binding
	VoteDown  key.Binding
	Stop      key.Binding
	Retry     key.Binding
	Clear     key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ask")),
		NewSearch: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new search")),
		Focus:     key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "sources")),
		Up:        key.NewBinding(key.WithKeys("up", "k")),
		Down:      key.NewBinding(key.WithKeys("down", "j")),
		Toggle:    key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand")),
		OpenLink:  key.NewBinding(key.WithKeys("o", "ctrl+o"), key.WithHelp("o", "link")),
		VoteUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "vote")),
		VoteDown:  key.NewBinding(key.WithKeys("-", "_")),
		Stop:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "stop")),
		Retry:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry")),
		Clear:     key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
		PageUp:    key.NewBinding(key.WithKeys("pgup")),
		PageDown:  key.NewBinding(key.WithKeys("pgdown")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// help returns the footer bindings for the focused area.
func (k keyMap) help(listFocus bool) []key.Binding {
	if listFocus {
		return []key.Binding{k.Toggle, k.OpenLink, k.VoteUp, k.Focus, k.Stop, k.Retry, k.Clear, k.Quit}
	}
	return []key.Binding{k.Submit, k.NewSearch, k.Focus, k.Stop, k.Retry, k.Clear, k.Quit}
}
