// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"testing"
)

// =============================================================================
// GetPersonality / SetPersonality Tests
// =============================================================================

func TestSetPersonality_AndGet(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityMinimal, ShowHints: false})

	retrieved := GetPersonality()
	if retrieved.Level != PersonalityMinimal {
		t.Errorf("expected level %v, got %v", PersonalityMinimal, retrieved.Level)
	}
	if retrieved.ShowHints {
		t.Errorf("expected ShowHints false, got %v", retrieved.ShowHints)
	}
}

func TestSetPersonalityLevel_KeepsHints(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityFull, ShowHints: true})
	SetPersonalityLevel(PersonalityStandard)

	p := GetPersonality()
	if p.Level != PersonalityStandard {
		t.Errorf("expected PersonalityStandard, got %v", p.Level)
	}
	if !p.ShowHints {
		t.Error("SetPersonalityLevel should not reset ShowHints")
	}
}

// =============================================================================
// ParsePersonalityLevel Tests
// =============================================================================

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"F", PersonalityFull},
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{" min ", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"q", PersonalityMachine},
		{"", PersonalityStandard},
		{"nonsense", PersonalityStandard},
	}

	for _, tt := range tests {
		if got := ParsePersonalityLevel(tt.in); got != tt.want {
			t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// InitPersonality Tests
// =============================================================================

func TestInitPersonality_EnvOverrides(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv(PersonalityEnv, "minimal")
	InitPersonality("full")

	if GetPersonality().Level != PersonalityMinimal {
		t.Errorf("expected env level minimal, got %v", GetPersonality().Level)
	}
}

func TestInitPersonality_NonTerminalIsMachine(t *testing.T) {
	if isTerminal(os.Stdout.Fd()) {
		t.Skip("stdout is a terminal")
	}
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv(PersonalityEnv, "")
	InitPersonality("full")

	if GetPersonality().Level != PersonalityMachine {
		t.Errorf("expected machine level off a terminal, got %v", GetPersonality().Level)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestShouldShowColors(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowColors() {
		t.Error("machine mode should not show colors")
	}

	SetPersonalityLevel(PersonalityMinimal)
	if !ShouldShowColors() {
		t.Error("minimal mode should show colors")
	}
}

func TestIsInteractive_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if IsInteractive() {
		t.Error("machine mode is never interactive")
	}
}

func TestDefaultPersonality(t *testing.T) {
	p := DefaultPersonality()
	if p.Level != PersonalityFull {
		t.Errorf("expected PersonalityFull, got %v", p.Level)
	}
	if !p.ShowHints {
		t.Error("expected ShowHints by default")
	}
}
