// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides rich terminal output styling for the askdesk CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// askdesk palette: desk blues with zinc neutrals
var (
	ColorBlueBright  = lipgloss.Color("#60A5FA") // Links, focused elements
	ColorBluePrimary = lipgloss.Color("#3B82F6") // Primary brand color
	ColorBlueDeep    = lipgloss.Color("#1D4ED8") // Borders, accents
	ColorBluePale    = lipgloss.Color("#DBEAFE") // Human message background

	ColorZinc     = lipgloss.Color("#A1A1AA") // Muted text
	ColorZincDark = lipgloss.Color("#3F3F46") // Body text on light terminals

	ColorSuccess = lipgloss.Color("#22C55E")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = ColorZinc
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Link      lipgloss.Style
	Caption   lipgloss.Style

	// Box styles
	Box         lipgloss.Style
	ErrorBox    lipgloss.Style
	SourceBlock lipgloss.Style
	SourceFocus lipgloss.Style
	Chip        lipgloss.Style
	HumanBubble lipgloss.Style
	BotBubble   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorBluePrimary),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorZinc),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorMuted),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorBlueBright).Bold(true),
	Link:      lipgloss.NewStyle().Foreground(ColorBlueBright).Underline(true),
	Caption:   lipgloss.NewStyle().Foreground(ColorZinc).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBlueDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
	SourceBlock: lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorZinc).
		PaddingLeft(1),
	SourceFocus: lipgloss.NewStyle().
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(ColorBlueBright).
		PaddingLeft(1),
	Chip: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBluePrimary).
		Foreground(ColorBluePrimary).
		Padding(0, 1),
	HumanBubble: lipgloss.NewStyle().
		Foreground(ColorBluePrimary).
		Bold(true),
	BotBubble: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBluePale).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess   Icon = "✓"
	IconWarning   Icon = "⚠"
	IconError     Icon = "✗"
	IconPending   Icon = "○"
	IconArrow     Icon = "→"
	IconBullet    Icon = "•"
	IconExpanded  Icon = "▾"
	IconCollapsed Icon = "▸"
	IconThumbUp   Icon = "▲"
	IconThumbDown Icon = "▼"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// sourceIcons maps backend icon identifiers to terminal glyphs.
var sourceIcons = map[string]string{
	"pdf":        "▤",
	"doc":        "▤",
	"document":   "▤",
	"web":        "◍",
	"confluence": "◈",
	"sharepoint": "◈",
	"drive":      "◆",
	"email":      "✉",
}

// SourceIcon returns the glyph for a source icon identifier.
func SourceIcon(icon string) string {
	if g, ok := sourceIcons[strings.ToLower(icon)]; ok {
		return g
	}
	return string(IconBullet)
}

// FormatConfidence renders a confidence score as "Confidence: 87.5%".
func FormatConfidence(c float64) string {
	return fmt.Sprintf("Confidence: %.1f%%", c)
}

// FormatUpdatedAt renders "LAST UPDATED Jan 2, 2006" in the local zone.
func FormatUpdatedAt(t time.Time) string {
	return "LAST UPDATED " + strings.ToUpper(t.Local().Format("Jan 2, 2006"))
}

// Out and ErrOut are where the print helpers write.
var (
	Out    io.Writer = os.Stdout
	ErrOut io.Writer = os.Stderr
)

// Print helpers that respect personality level

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Fprintln(Out, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(Out, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Out, "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(Out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(ErrOut, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(ErrOut, "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(ErrOut, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(ErrOut, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(ErrOut, "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(ErrOut, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintln(Out, text)
		return
	}
	fmt.Fprintf(Out, "%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Fprintln(Out, Styles.Muted.Render(text))
}

// Hint prints a muted usage hint when hints are enabled
func Hint(text string) {
	p := GetPersonality()
	if !p.ShowHints || p.Level == PersonalityMachine {
		return
	}
	fmt.Fprintln(Out, Styles.Muted.Render("Hint: "+text))
}

// Box prints text in a rounded box
func Box(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(Out, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(Out, Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
}

// ErrorBox prints a blocking error in a red box
func ErrorBox(title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(ErrOut, "ERROR %s: %s\n", title, content)
		return
	}
	fmt.Fprintln(ErrOut, Styles.ErrorBox.Width(60).Render(Styles.Error.Bold(true).Render(title)+"\n"+content))
}
