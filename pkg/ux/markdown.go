// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultWrapWidth is the markdown word-wrap width when none is known.
const DefaultWrapWidth = 80

// FormatAnswer turns the backend's double-space line markers into paragraph
// breaks before markdown rendering.
func FormatAnswer(text string) string {
	return strings.ReplaceAll(text, "  ", "\n\n")
}

// MarkdownRenderer renders answer markdown for the terminal.
//
// In machine mode, or when no glamour renderer could be built, Render returns
// its input unchanged.
type MarkdownRenderer struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	width    int
}

// NewMarkdownRenderer builds a renderer wrapping at width columns.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	m := &MarkdownRenderer{}
	m.SetWidth(width)
	return m
}

// SetWidth rebuilds the underlying renderer for a new terminal width.
func (m *MarkdownRenderer) SetWidth(width int) {
	if width <= 0 {
		width = DefaultWrapWidth
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renderer != nil && m.width == width {
		return
	}

	style := glamour.WithAutoStyle()
	if !ShouldShowColors() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
	m.width = width
}

// Render renders md. Rendering errors fall back to the raw text.
func (m *MarkdownRenderer) Render(md string) string {
	if GetPersonality().Level == PersonalityMachine {
		return md
	}

	m.mu.Lock()
	r := m.renderer
	m.mu.Unlock()
	if r == nil {
		return md
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
