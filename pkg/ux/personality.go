// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityEnv overrides the configured personality level.
const PersonalityEnv = "ASKDESK_PERSONALITY"

// PersonalityLevel defines the verbosity and richness of CLI output
type PersonalityLevel string

const (
	// PersonalityFull enables boxes, colors, markdown rendering and hints
	PersonalityFull PersonalityLevel = "full"

	// PersonalityStandard enables colors and markdown but no boxes
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal prints plain text with icons
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs KEY: value lines for scripting
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the current UX personality configuration
type Personality struct {
	// Level controls overall verbosity (full, standard, minimal, machine)
	Level PersonalityLevel

	// ShowHints prints key binding and command hints
	ShowHints bool
}

var (
	currentPersonality = DefaultPersonality()
	personalityMu      sync.RWMutex
)

// GetPersonality returns the current personality settings
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality updates the current personality settings
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel updates just the personality level
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// SetShowHints turns command and key binding hints on or off
func SetShowHints(show bool) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.ShowHints = show
}

// ParsePersonalityLevel converts a string to PersonalityLevel
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "f":
		return PersonalityFull
	case "standard", "std", "s":
		return PersonalityStandard
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality picks the level from, in order: the ASKDESK_PERSONALITY
// environment variable, machine mode when stdout is not a terminal, and the
// configured level (empty means full).
func InitPersonality(configured string) {
	if envLevel := os.Getenv(PersonalityEnv); envLevel != "" {
		SetPersonalityLevel(ParsePersonalityLevel(envLevel))
		return
	}

	if !isTerminal(os.Stdout.Fd()) {
		SetPersonalityLevel(PersonalityMachine)
		return
	}

	if configured == "" {
		SetPersonalityLevel(PersonalityFull)
		return
	}
	SetPersonalityLevel(ParsePersonalityLevel(configured))
}

// isTerminal reports whether fd is a terminal, Cygwin/MSYS included.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive returns true if we should show interactive prompts
func IsInteractive() bool {
	p := GetPersonality()
	return p.Level != PersonalityMachine && isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

// ShouldShowColors returns true if we should use colors
func ShouldShowColors() bool {
	return GetPersonality().Level != PersonalityMachine
}

// DefaultPersonality returns the default personality settings
func DefaultPersonality() Personality {
	return Personality{
		Level:     PersonalityFull,
		ShowHints: true,
	}
}
